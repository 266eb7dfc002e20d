package audit

import (
	"context"
	"fmt"
)

// IntegrityError names the offending entry when verification fails.
type IntegrityError struct {
	Partition string
	Line      int // 1-indexed position within the partition
	Reason    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("audit: integrity violation in partition %s at line %d: %s", e.Partition, e.Line, e.Reason)
}

// Verify walks partition in append order, recomputing each entry's
// hash and checking the chain, per spec §4.8/§8. It always recomputes
// from the log itself rather than trusting the metadata sidecar.
func Verify(ctx context.Context, store Store, partition string) error {
	entries, err := store.ReadAll(ctx, partition)
	if err != nil {
		return fmt.Errorf("reading partition for verification: %w", err)
	}

	var previousHash string
	for i, entry := range entries {
		line := i + 1
		if entry.PreviousHash != previousHash {
			return &IntegrityError{Partition: partition, Line: line, Reason: "previous_hash does not match predecessor's entry_hash"}
		}
		want := entry.EntryHash
		got, err := entryHash(entry)
		if err != nil {
			return fmt.Errorf("recomputing hash at line %d: %w", line, err)
		}
		if got != want {
			return &IntegrityError{Partition: partition, Line: line, Reason: "stored entry_hash does not match recomputed hash"}
		}
		previousHash = entry.EntryHash
	}
	return nil
}
