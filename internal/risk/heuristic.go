package risk

import "sort"

// weighted pairs a risk tag with its contribution and the feature index
// it is derived from, for tie-breaking (spec §4.2: "equal weight ->
// feature-vector order").
type weighted struct {
	tag          string
	contribution float64
	featureIndex int
}

// heuristicScore implements the additive weighted-indicator path.
// Weights: new-device 0.25, new-ip 0.15, new-location 0.30,
// failed-attempts 0.10 x min(n,3), vpn 0.10, tor 0.35, long-absence 0.10.
// The result is clamped to [0,1]; tags are emitted in descending
// contribution order.
func heuristicScore(f [14]float64) (float64, []string) {
	var candidates []weighted

	if f[idxNewDevice] != 0 {
		candidates = append(candidates, weighted{"new_device_detected", 0.25, idxNewDevice})
	}
	if f[idxNewIP] != 0 {
		candidates = append(candidates, weighted{"login_from_new_ip", 0.15, idxNewIP})
	}
	if f[idxNewLocation] != 0 {
		candidates = append(candidates, weighted{"login_from_new_country", 0.30, idxNewLocation})
	}
	if f[idxFailedAttempts] > 0 {
		candidates = append(candidates, weighted{"excessive_failed_attempts", 0.10 * f[idxFailedAttempts], idxFailedAttempts})
	}
	if f[idxVPN] != 0 {
		candidates = append(candidates, weighted{"vpn_or_proxy_detected", 0.10, idxVPN})
	}
	if f[idxTor] != 0 {
		candidates = append(candidates, weighted{"tor_exit_node_detected", 0.35, idxTor})
	}
	if f[idxLongAbsence] != 0 {
		candidates = append(candidates, weighted{"login_after_extended_absence", 0.10, idxLongAbsence})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].contribution != candidates[j].contribution {
			return candidates[i].contribution > candidates[j].contribution
		}
		return candidates[i].featureIndex < candidates[j].featureIndex
	})

	var sum float64
	tags := make([]string, 0, len(candidates))
	for _, c := range candidates {
		sum += c.contribution
		tags = append(tags, c.tag)
	}

	if sum < 0 {
		sum = 0
	}
	if sum > 1 {
		sum = 1
	}

	return sum, tags
}
