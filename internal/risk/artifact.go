package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// metadataSchema is the JSON Schema every model artifact's metadata.json
// must satisfy. It requires feature_names to hold exactly 14 strings;
// LoadArtifact then compares the names and their order with
// FeatureNames, so a stale or mismatched artifact is rejected at load
// time rather than silently scoring against the wrong columns.
const metadataSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["model_type", "feature_names", "has_calibrator", "model_params"],
  "properties": {
    "model_type": {"type": "string", "enum": ["xgboost", "lightgbm", "linear"]},
    "feature_names": {
      "type": "array",
      "items": {"type": "string"},
      "minItems": 14,
      "maxItems": 14
    },
    "has_calibrator": {"type": "boolean"},
    "model_params": {"type": "object"}
  }
}`

// Metadata mirrors the model artifact's metadata.json contract.
type Metadata struct {
	ModelType     string         `json:"model_type"`
	FeatureNames  []string       `json:"feature_names"`
	HasCalibrator bool           `json:"has_calibrator"`
	ModelParams   map[string]any `json:"model_params"`
}

// Artifact is a loaded model artifact: its metadata, linear scoring
// weights (the Go stand-in for a serialized GBDT's additive leaf-value
// contribution), and an optional isotonic calibrator.
type Artifact struct {
	Metadata   Metadata
	Weights    [14]float64
	Intercept  float64
	Calibrator *Isotonic
}

var metadataValidator *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("mem://risk/metadata-schema.json", strings.NewReader(metadataSchema)); err != nil {
		panic(fmt.Sprintf("risk: invalid embedded metadata schema: %v", err))
	}
	schema, err := compiler.Compile("mem://risk/metadata-schema.json")
	if err != nil {
		panic(fmt.Sprintf("risk: failed to compile embedded metadata schema: %v", err))
	}
	metadataValidator = schema
}

// LoadArtifact reads metadata.json, weights.json, and an optional
// calibrator.json from dir, validating the metadata against
// metadataSchema and rejecting any artifact whose feature list disagrees
// with FeatureNames.
func LoadArtifact(dir string) (*Artifact, error) {
	metaBytes, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("reading metadata.json: %w", err)
	}

	var rawMeta any
	if err := json.Unmarshal(metaBytes, &rawMeta); err != nil {
		return nil, fmt.Errorf("parsing metadata.json: %w", err)
	}
	if err := metadataValidator.Validate(rawMeta); err != nil {
		return nil, fmt.Errorf("metadata.json failed schema validation: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("decoding metadata.json: %w", err)
	}

	if !sameFeatureOrder(meta.FeatureNames, FeatureNames) {
		return nil, fmt.Errorf("artifact feature_names disagree with expected 14-feature schema")
	}

	weightsBytes, err := os.ReadFile(filepath.Join(dir, "weights.json"))
	if err != nil {
		return nil, fmt.Errorf("reading weights.json: %w", err)
	}
	var weightsDoc struct {
		Weights   [14]float64 `json:"weights"`
		Intercept float64     `json:"intercept"`
	}
	if err := json.Unmarshal(weightsBytes, &weightsDoc); err != nil {
		return nil, fmt.Errorf("decoding weights.json: %w", err)
	}

	artifact := &Artifact{
		Metadata:  meta,
		Weights:   weightsDoc.Weights,
		Intercept: weightsDoc.Intercept,
	}

	if meta.HasCalibrator {
		calibBytes, err := os.ReadFile(filepath.Join(dir, "calibrator.json"))
		if err != nil {
			return nil, fmt.Errorf("reading calibrator.json: %w", err)
		}
		iso, err := LoadIsotonic(calibBytes)
		if err != nil {
			return nil, fmt.Errorf("decoding calibrator.json: %w", err)
		}
		artifact.Calibrator = iso
	}

	return artifact, nil
}

func sameFeatureOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
