package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sentrydesk/internal/types"
)

// MetadataIndex is the operational metadata index collaborator of spec
// §6: an optional secondary write of a decision's identifying fields,
// kept for fast point/GSI-style queries. The ledger remains canonical;
// index failures are logged and tolerated, never surfaced to callers.
type MetadataIndex interface {
	Record(ctx context.Context, decisionID, userID, sessionID, action, decidedBy, policyVersion string, confidence float64, ts time.Time) error
}

// Service is the audit ledger's public entry point: it stamps an entry
// ID and timestamp if absent, then hands the entry to the async writer.
// Audit failures are logged and counted but never fail the caller's
// request, per spec §7 -- Submit always returns an entry ID, falling
// back to a placeholder on error.
type Service struct {
	writer *Writer
	index  MetadataIndex
	logger *zap.Logger
}

// NewService constructs a Service backed by a Ledger over store.
func NewService(store Store, cfg WriterConfig) *Service {
	return &Service{
		writer: NewWriter(NewLedger(store), cfg),
		logger: cfg.Logger,
	}
}

// WithMetadataIndex attaches the optional operational metadata index,
// returning s for chaining at composition time.
func (s *Service) WithMetadataIndex(index MetadataIndex) *Service {
	s.index = index
	return s
}

// Submit appends entry to the ledger, returning the entry's ID
// (assigned if not already set). On failure it logs the error and
// returns a placeholder ID with the error, per spec §7's "response
// carries a placeholder audit identifier" rule -- callers decide
// whether to surface that placeholder.
func (s *Service) Submit(ctx context.Context, entry types.AuditEntry) (string, error) {
	if entry.EntryID == "" {
		entry.EntryID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.writer.Submit(ctx, entry)
	if err != nil {
		s.logger.Error("audit submission failed, returning placeholder audit id", zap.Error(err), zap.String("entry_id", entry.EntryID))
		return "audit-unavailable-" + entry.EntryID, err
	}

	if s.index != nil {
		if ierr := s.index.Record(ctx, entry.DecisionID, entry.UserID, entry.SessionID,
			string(entry.Action), string(entry.DecidedBy), entry.PolicyVersion, entry.Confidence, entry.Timestamp); ierr != nil {
			s.logger.Warn("operational metadata index write failed, ledger remains canonical",
				zap.Error(ierr), zap.String("decision_id", entry.DecisionID))
		}
	}

	return entry.EntryID, nil
}

// Shutdown drains the underlying writer.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.writer.Shutdown(ctx)
}
