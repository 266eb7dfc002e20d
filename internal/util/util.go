// Package util provides canonical JSON encoding for the audit ledger's
// hash chain: a deterministic byte representation so two processes
// hashing the same entry always agree.
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// CanonicalJSON returns a canonical (deterministic) JSON representation.
// Keys are sorted alphabetically at all levels.
func CanonicalJSON(v any) ([]byte, error) {
	// First marshal to JSON, then unmarshal to interface{} to normalize
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, err
	}

	return canonicalMarshal(normalized)
}

func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		return canonicalMarshalMap(val)
	case []any:
		return canonicalMarshalSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalMarshalMap(m map[string]any) ([]byte, error) {
	// Get sorted keys
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Build canonical object
	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, _ := json.Marshal(k)
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalMarshal(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')
	return result, nil
}

func canonicalMarshalSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, item := range s {
		if i > 0 {
			result = append(result, ',')
		}
		itemBytes, err := canonicalMarshal(item)
		if err != nil {
			return nil, err
		}
		result = append(result, itemBytes...)
	}
	result = append(result, ']')
	return result, nil
}

// HashJSON computes SHA256 hash of canonical JSON representation.
func HashJSON(v any) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(canonical)
	return hex.EncodeToString(hash[:]), nil
}
