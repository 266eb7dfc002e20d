package behavior

import "math"

// invert computes the matrix inverse via Gauss-Jordan elimination with
// partial pivoting. ok is false when the matrix is (near-)singular.
func invert(m [EmbeddingDim][EmbeddingDim]float64) (inv [EmbeddingDim][EmbeddingDim]float64, ok bool) {
	const singularEpsilon = 1e-12

	var a [EmbeddingDim][2 * EmbeddingDim]float64
	for i := 0; i < EmbeddingDim; i++ {
		copy(a[i][:EmbeddingDim], m[i][:])
		a[i][EmbeddingDim+i] = 1
	}

	for col := 0; col < EmbeddingDim; col++ {
		pivotRow := col
		maxVal := math.Abs(a[col][col])
		for r := col + 1; r < EmbeddingDim; r++ {
			if v := math.Abs(a[r][col]); v > maxVal {
				maxVal = v
				pivotRow = r
			}
		}
		if maxVal < singularEpsilon {
			return inv, false
		}
		a[col], a[pivotRow] = a[pivotRow], a[col]

		pivot := a[col][col]
		for c := 0; c < 2*EmbeddingDim; c++ {
			a[col][c] /= pivot
		}

		for r := 0; r < EmbeddingDim; r++ {
			if r == col {
				continue
			}
			factor := a[r][col]
			if factor == 0 {
				continue
			}
			for c := 0; c < 2*EmbeddingDim; c++ {
				a[r][c] -= factor * a[col][c]
			}
		}
	}

	for i := 0; i < EmbeddingDim; i++ {
		copy(inv[i][:], a[i][EmbeddingDim:])
	}
	return inv, true
}

// pseudoInvert returns a best-effort inverse for a near-singular matrix
// by increasing the Tikhonov regularization term until inversion
// succeeds, standing in for a full SVD-based pseudoinverse.
func pseudoInvert(m [EmbeddingDim][EmbeddingDim]float64, startEpsilon float64) [EmbeddingDim][EmbeddingDim]float64 {
	epsilon := startEpsilon
	for attempt := 0; attempt < 8; attempt++ {
		epsilon *= 10
		regularized := m
		for i := 0; i < EmbeddingDim; i++ {
			regularized[i][i] += epsilon
		}
		if inv, ok := invert(regularized); ok {
			return inv
		}
	}
	// Last resort: identity, equivalent to an uninformative prior.
	var identity [EmbeddingDim][EmbeddingDim]float64
	for i := 0; i < EmbeddingDim; i++ {
		identity[i][i] = 1
	}
	return identity
}
