// Package store provides persistence bindings for the decision core's
// optional external collaborators (spec §6): a DynamoDB-backed
// behavioral-profile store, a DynamoDB-backed operational metadata
// index, a Redis-backed network-context provider, and an S3-backed
// audit partition store.
package store

import "time"

// profileItem is the DynamoDB item shape for a behavioral profile,
// keyed by user_id. Profile's fixed-size arrays are flattened to
// slices via behavior.ProfileState since DynamoDB attribute values
// have no notion of a fixed-length array type.
type profileItem struct {
	UserID        string      `dynamodbav:"user_id"`
	Centroid      []float64   `dynamodbav:"centroid"`
	Covariance    []float64   `dynamodbav:"covariance"`
	CovarianceInv []float64   `dynamodbav:"covariance_inv"`
	CovarianceSet bool        `dynamodbav:"covariance_set"`
	SessionCount  int         `dynamodbav:"session_count"`
	LastUpdated   time.Time   `dynamodbav:"last_updated"`
	History       []embedding `dynamodbav:"history"`
}

// embedding wraps a single behavioral-embedding row; attributevalue
// needs a named field to marshal a list of float lists cleanly.
type embedding struct {
	Values []float64 `dynamodbav:"values"`
}

// metadataItem is the DynamoDB item shape for one entry in the
// operational metadata index: a lightweight secondary record of a
// decision's identifying fields, written alongside (not instead of)
// the audit ledger entry so operators can query by user or session
// without scanning audit partitions.
type metadataItem struct {
	DecisionID    string    `dynamodbav:"decision_id"`
	UserID        string    `dynamodbav:"user_id"`
	SessionID     string    `dynamodbav:"session_id"`
	Action        string    `dynamodbav:"action"`
	DecidedBy     string    `dynamodbav:"decided_by"`
	Confidence    float64   `dynamodbav:"confidence"`
	PolicyVersion string    `dynamodbav:"policy_version"`
	Timestamp     time.Time `dynamodbav:"timestamp"`
}
