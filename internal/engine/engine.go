package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/docindex/internal/ir"
	"github.com/roach88/docindex/internal/notify"
)

// InvalidPolicy decides what a batch does with malformed versions.
type InvalidPolicy int

const (
	// AbortOnInvalid rejects the whole batch before anything is written.
	AbortOnInvalid InvalidPolicy = iota
	// SkipInvalid drops malformed versions and ingests the rest.
	SkipInvalid
)

// ParseInvalidPolicy maps "abort" and "skip" to a policy. The empty string
// selects AbortOnInvalid.
func ParseInvalidPolicy(s string) (InvalidPolicy, error) {
	switch s {
	case "", "abort":
		return AbortOnInvalid, nil
	case "skip":
		return SkipInvalid, nil
	default:
		return AbortOnInvalid, fmt.Errorf("unknown invalid policy %q (want \"abort\" or \"skip\")", s)
	}
}

// String returns the config spelling of p.
func (p InvalidPolicy) String() string {
	if p == SkipInvalid {
		return "skip"
	}
	return "abort"
}

// Engine merges batches of document versions into a RecordStore.
//
// Thread-safety model:
//   - Batch, DeleteAll, Head, IsLinked: safe from any goroutine; batches
//     are serialized, one unit of work at a time
//   - OnceWritten: safe from any goroutine
//
// INVARIANTS:
//   - a batch is committed entirely or not at all
//   - listeners fire only after the batch that wrote their version commits
//   - the result depends on the set of versions ingested, never their order
type Engine struct {
	mu sync.Mutex

	store    ir.RecordStore
	selector Selector
	policy   InvalidPolicy
	notifier *notify.Notifier
	metrics  *Metrics
	logger   *slog.Logger

	ownsNotifier bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithSelector replaces DefaultSelector.
func WithSelector(s Selector) Option {
	return func(e *Engine) {
		if s != nil {
			e.selector = s
		}
	}
}

// WithInvalidPolicy sets how malformed versions are handled.
// Default: AbortOnInvalid.
func WithInvalidPolicy(p InvalidPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithNotifier shares an existing notifier. The caller keeps ownership and
// must Close it; Engine.Close leaves it running.
func WithNotifier(n *notify.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithMetrics records batch metrics. A nil *Metrics disables them.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// BatchResult summarizes a committed batch.
type BatchResult struct {
	// Outcomes has one entry per accepted version, in input order.
	Outcomes []Outcome

	// Rejected holds one INVALID_VERSION error per version dropped under
	// SkipInvalid, or nil. It is a *multierror.Error when set.
	Rejected error
}

// Count returns how many outcomes have kind k.
func (r BatchResult) Count(k OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}

// New creates an engine over s.
//
// The store's schema is checked first; a store that cannot hold canonical
// records fails with SCHEMA_MISMATCH. Without WithNotifier the engine runs
// its own notifier, stopped by Close.
func New(ctx context.Context, s ir.RecordStore, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:    s,
		selector: DefaultSelector,
		policy:   AbortOnInvalid,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := s.CheckSchema(ctx); err != nil {
		return nil, newSchemaError(err)
	}

	if e.notifier == nil {
		e.notifier = notify.New(notify.WithLogger(e.logger))
		e.ownsNotifier = true
	}
	return e, nil
}

// Close stops the engine's own notifier after running every queued
// listener. It does not close the store.
func (e *Engine) Close() {
	if e.ownsNotifier {
		e.notifier.Close()
	}
}

// OnceWritten registers l to fire after the next committed batch that
// stores versionID, either as the canonical version or as a fork.
func (e *Engine) OnceWritten(versionID string, l *notify.Listener) {
	e.notifier.OnceWritten(versionID, l)
}

// Batch ingests versions in order inside one unit of work.
//
// On error nothing from the batch is persisted and no listener fires. A
// STORAGE_UNAVAILABLE batch can be retried as is.
func (e *Engine) Batch(ctx context.Context, versions []ir.DocumentVersion) (BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	accepted, rejected, err := e.screen(versions)
	if err != nil {
		e.metrics.observeBatch(batchRejected, start)
		e.logger.Warn("batch rejected", "versions", len(versions), "error", err)
		return BatchResult{}, err
	}
	skipped := len(versions) - len(accepted)

	var (
		outcomes []Outcome
		writes   []notify.Write
		marked   int
	)
	if len(accepted) > 0 {
		err = e.store.RunAtomic(ctx, func(tx ir.RecordTx) error {
			// Reset so a store that retries fn starts clean.
			outcomes = make([]Outcome, 0, len(accepted))
			writes = writes[:0]

			bl := newBacklinks(tx)
			for _, v := range accepted {
				out, w, err := e.ingest(ctx, tx, bl, v)
				if err != nil {
					return err
				}
				outcomes = append(outcomes, out)
				if w != nil {
					writes = append(writes, *w)
				}
				e.logger.Debug("version ingested",
					"doc_id", v.DocID,
					"version_id", v.VersionID,
					"outcome", out.Kind.String(),
					"repaired", len(out.Repaired))
			}
			marked = bl.marked
			return nil
		})
		if err != nil {
			err = asStorageError("commit batch", err)
			e.metrics.observeBatch(batchFailed, start)
			e.logger.Error("batch failed", "versions", len(accepted), "error", err)
			return BatchResult{}, err
		}
	}

	e.notifier.Notify(writes)

	e.metrics.observeOutcomes(outcomes, skipped, marked)
	e.metrics.observeBatch(batchCommitted, start)
	e.logger.Info("batch committed",
		"versions", len(accepted),
		"skipped", skipped,
		"writes", len(writes),
		"duration", time.Since(start))

	return BatchResult{Outcomes: outcomes, Rejected: rejected}, nil
}

// screen validates every version before any storage access. Under
// AbortOnInvalid the first malformed version fails the batch; under
// SkipInvalid malformed versions are collected into rejected.
func (e *Engine) screen(versions []ir.DocumentVersion) (accepted []ir.DocumentVersion, rejected error, err error) {
	var merr *multierror.Error
	accepted = make([]ir.DocumentVersion, 0, len(versions))
	for i, v := range versions {
		if verr := v.Validate(); verr != nil {
			ierr := newInvalidVersionError(i, v, verr)
			if e.policy == AbortOnInvalid {
				return nil, nil, ierr
			}
			merr = multierror.Append(merr, ierr)
			continue
		}
		accepted = append(accepted, v.Clone())
	}
	return accepted, merr.ErrorOrNil(), nil
}

// Head returns the canonical record for docID.
func (e *Engine) Head(ctx context.Context, docID string) (rec ir.CanonicalRecord, found bool, err error) {
	err = e.store.RunAtomic(ctx, func(tx ir.RecordTx) error {
		var err error
		rec, found, err = tx.GetCanonical(ctx, docID)
		return err
	})
	if err != nil {
		return ir.CanonicalRecord{}, false, newStorageError("read canonical record", docID, "", err)
	}
	return rec, found, nil
}

// IsLinked reports whether some ingested version linked versionID.
func (e *Engine) IsLinked(ctx context.Context, versionID string) (linked bool, err error) {
	err = e.store.RunAtomic(ctx, func(tx ir.RecordTx) error {
		var err error
		linked, err = tx.IsLinked(ctx, versionID)
		return err
	})
	if err != nil {
		return false, newStorageError("check backlink", "", versionID, err)
	}
	return linked, nil
}

// DeleteAll removes every canonical record and every backlink. Pending
// listeners stay registered.
func (e *Engine) DeleteAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.DeleteAll(ctx); err != nil {
		return newStorageError("delete all", "", "", err)
	}
	e.logger.Info("store reset")
	return nil
}
