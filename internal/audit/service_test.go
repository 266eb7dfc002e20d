package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"sentrydesk/internal/types"
)

type recordingIndex struct {
	calls []string
	err   error
}

func (r *recordingIndex) Record(ctx context.Context, decisionID, userID, sessionID, action, decidedBy, policyVersion string, confidence float64, ts time.Time) error {
	r.calls = append(r.calls, decisionID)
	return r.err
}

func TestServiceSubmitAssignsIDAndTimestamp(t *testing.T) {
	svc := NewService(NewInMemoryStore(), testWriterConfig(4, false))
	defer svc.Shutdown(context.Background())

	id, err := svc.Submit(context.Background(), types.AuditEntry{
		EventType: types.EventDecision,
		Action:    types.DecisionAllow,
		DecidedBy: types.DecidedByAI,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" {
		t.Fatal("submit returned an empty entry ID")
	}
}

func TestServiceWritesThroughToMetadataIndex(t *testing.T) {
	idx := &recordingIndex{}
	svc := NewService(NewInMemoryStore(), testWriterConfig(4, false)).WithMetadataIndex(idx)
	defer svc.Shutdown(context.Background())

	_, err := svc.Submit(context.Background(), types.AuditEntry{
		EventType:  types.EventDecision,
		DecisionID: "dec-42",
		Action:     types.DecisionAllow,
		DecidedBy:  types.DecidedByAI,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(idx.calls) != 1 || idx.calls[0] != "dec-42" {
		t.Fatalf("metadata index calls = %v, want one call for dec-42", idx.calls)
	}
}

func TestServiceToleratesMetadataIndexFailure(t *testing.T) {
	idx := &recordingIndex{err: errors.New("index unavailable")}
	cfg := testWriterConfig(4, false)
	cfg.Logger = zap.NewNop()
	svc := NewService(NewInMemoryStore(), cfg).WithMetadataIndex(idx)
	defer svc.Shutdown(context.Background())

	id, err := svc.Submit(context.Background(), types.AuditEntry{
		EventType:  types.EventDecision,
		DecisionID: "dec-1",
		Action:     types.DecisionAllow,
		DecidedBy:  types.DecidedByAI,
	})
	if err != nil {
		t.Fatalf("submit should succeed even when the metadata index fails: %v", err)
	}
	if id == "" {
		t.Fatal("submit returned an empty entry ID despite the ledger write succeeding")
	}
}

// failingStore always errors on Append, forcing Submit onto the
// placeholder-ID path.
type failingStore struct {
	Store
}

func (failingStore) Append(ctx context.Context, partition string, entry types.AuditEntry) error {
	return errors.New("disk full")
}

func TestServiceReturnsPlaceholderIDOnLedgerFailure(t *testing.T) {
	svc := NewService(failingStore{Store: NewInMemoryStore()}, testWriterConfig(4, false))
	defer svc.Shutdown(context.Background())

	id, err := svc.Submit(context.Background(), types.AuditEntry{
		EntryID:   "known-id",
		EventType: types.EventDecision,
		Action:    types.DecisionAllow,
		DecidedBy: types.DecidedByAI,
	})
	if err == nil {
		t.Fatal("submit succeeded despite a failing ledger store")
	}
	if !strings.HasPrefix(id, "audit-unavailable-") {
		t.Fatalf("placeholder id = %q, want prefix audit-unavailable-", id)
	}
}
