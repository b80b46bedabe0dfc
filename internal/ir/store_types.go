package ir

import (
	"context"
	"errors"
)

// Adapter conditions every RecordStore implementation reports with these
// sentinels, wrapped with context.
var (
	// ErrRecordNotFound is returned by UpdateForks when no record exists
	// for the DocID.
	ErrRecordNotFound = errors.New("record not found")

	// ErrSchemaMismatch is returned by CheckSchema when the storage target
	// lacks the fields or shape the engine requires.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// RecordTx is the view of a record store inside one unit of work.
// Reads observe writes made earlier in the same unit of work.
type RecordTx interface {
	// GetCanonical returns the record for docID; found is false if none exists.
	GetCanonical(ctx context.Context, docID string) (rec CanonicalRecord, found bool, err error)

	// PutCanonical upserts rec, replacing any record with the same DocID.
	PutCanonical(ctx context.Context, rec CanonicalRecord) error

	// UpdateForks replaces only the fork set of an existing record.
	// Returns an error wrapping ErrRecordNotFound if there is no record.
	UpdateForks(ctx context.Context, docID string, forks []string) error

	// IsLinked reports whether versionID has been named by some link.
	IsLinked(ctx context.Context, versionID string) (bool, error)

	// MarkLinked records versionID as linked. Idempotent.
	MarkLinked(ctx context.Context, versionID string) error
}

// RecordStore is the storage collaborator of the merge engine.
//
// Implementations serialize concurrent writers themselves; the engine
// performs no locking on their behalf beyond calling RunAtomic.
type RecordStore interface {
	// RunAtomic runs fn inside one all-or-nothing unit of work. If fn
	// returns an error, nothing it wrote is persisted and the error is
	// returned.
	RunAtomic(ctx context.Context, fn func(tx RecordTx) error) error

	// DeleteAll removes every canonical record and every backlink.
	DeleteAll(ctx context.Context) error

	// CheckSchema verifies the storage target exposes the shape the engine
	// needs. Failures wrap ErrSchemaMismatch.
	CheckSchema(ctx context.Context) error
}

// RecordLister is implemented by stores that can enumerate their records.
type RecordLister interface {
	// Records returns every canonical record ordered by DocID.
	Records(ctx context.Context) ([]CanonicalRecord, error)
}

// BacklinkLister is implemented by stores that can enumerate the backlink set.
type BacklinkLister interface {
	// Backlinks returns every linked version id in sorted order.
	Backlinks(ctx context.Context) ([]string, error)
}
