package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"sentrydesk/internal/behavior"
)

// BehavioralProfileStore is the DynamoDB-backed behavior.Store
// collaborator named in spec §6: each user's profile lives in its own
// item, loaded, mutated under a process-local per-user lock exactly
// like InMemoryStore, and written back after every evaluation.
//
// DynamoDB provides durability across process restarts, not the
// exclusivity guarantee itself -- concurrent evaluations for the same
// user from different processes can still race on the read-modify-write.
// Spec §6 scopes the store to a single decision-core process, so this
// is an accepted limitation, not a bug: a future multi-process
// deployment would need conditional writes keyed on a version attribute.
type BehavioralProfileStore struct {
	client *dynamodb.Client
	table  string

	locks lockTable
}

// NewBehavioralProfileStore constructs a BehavioralProfileStore over
// the given table.
func NewBehavioralProfileStore(client *dynamodb.Client, table string) *BehavioralProfileStore {
	return &BehavioralProfileStore{client: client, table: table, locks: newLockTable()}
}

// WithProfile implements behavior.Store.
func (s *BehavioralProfileStore) WithProfile(ctx context.Context, userID string, fn func(*behavior.Profile)) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	profile, err := s.load(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading behavioral profile: %w", err)
	}
	fn(profile)
	if err := s.save(ctx, profile); err != nil {
		return fmt.Errorf("saving behavioral profile: %w", err)
	}
	return nil
}

func (s *BehavioralProfileStore) load(ctx context.Context, userID string) (*behavior.Profile, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]ddbtypes.AttributeValue{
			"user_id": &ddbtypes.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return behavior.NewProfile(userID), nil
	}

	var item profileItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling profile item: %w", err)
	}
	return behavior.RestoreState(itemToState(item)), nil
}

func (s *BehavioralProfileStore) save(ctx context.Context, profile *behavior.Profile) error {
	item := stateToItem(profile.MarshalState())
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling profile item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	return err
}

func itemToState(item profileItem) behavior.ProfileState {
	history := make([][]float64, len(item.History))
	for i, row := range item.History {
		history[i] = row.Values
	}
	return behavior.ProfileState{
		UserID:        item.UserID,
		Centroid:      item.Centroid,
		Covariance:    item.Covariance,
		CovarianceInv: item.CovarianceInv,
		CovarianceSet: item.CovarianceSet,
		SessionCount:  item.SessionCount,
		LastUpdated:   item.LastUpdated,
		History:       history,
	}
}

func stateToItem(state behavior.ProfileState) profileItem {
	history := make([]embedding, len(state.History))
	for i, row := range state.History {
		history[i] = embedding{Values: row}
	}
	return profileItem{
		UserID:        state.UserID,
		Centroid:      state.Centroid,
		Covariance:    state.Covariance,
		CovarianceInv: state.CovarianceInv,
		CovarianceSet: state.CovarianceSet,
		SessionCount:  state.SessionCount,
		LastUpdated:   state.LastUpdated,
		History:       history,
	}
}

// MetadataIndex is the DynamoDB-backed operational metadata index
// named in spec §6: a secondary, queryable record of each decision's
// identifying fields, written after the audit ledger append succeeds.
// It exists for operational lookups (by user, by session) that would
// otherwise require scanning audit log partitions; it is never the
// system of record, and its failures are logged, never surfaced to the
// caller of the decision core.
type MetadataIndex struct {
	client *dynamodb.Client
	table  string
}

// NewMetadataIndex constructs a MetadataIndex over the given table.
func NewMetadataIndex(client *dynamodb.Client, table string) *MetadataIndex {
	return &MetadataIndex{client: client, table: table}
}

// Record writes one decision's identifying fields to the index.
func (m *MetadataIndex) Record(ctx context.Context, decisionID, userID, sessionID, action, decidedBy, policyVersion string, confidence float64, ts time.Time) error {
	item := metadataItem{
		DecisionID:    decisionID,
		UserID:        userID,
		SessionID:     sessionID,
		Action:        action,
		DecidedBy:     decidedBy,
		Confidence:    confidence,
		PolicyVersion: policyVersion,
		Timestamp:     ts,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling metadata item: %w", err)
	}
	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("writing metadata index entry: %w", err)
	}
	return nil
}

// lockTable is a striped set of per-key mutexes, the same pattern
// behavior.InMemoryStore uses for its process-local profile map,
// reused here so a remote-backed store still serializes concurrent
// evaluations for the same user within this process.
type lockTable struct {
	locks *keyedMutexes
}

func newLockTable() lockTable {
	return lockTable{locks: newKeyedMutexes()}
}

func (l lockTable) lock(key string) func() {
	return l.locks.lock(key)
}
