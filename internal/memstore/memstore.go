// Package memstore is an in-memory RecordStore.
//
// Each unit of work runs against a private copy of the state which replaces
// the shared state only when the work function succeeds. Faults can be
// injected per operation to exercise rollback paths.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/docindex/internal/ir"
)

// Op names a store operation for fault injection.
type Op string

const (
	OpGet         Op = "get"
	OpPut         Op = "put"
	OpUpdateForks Op = "update_forks"
	OpIsLinked    Op = "is_linked"
	OpMarkLinked  Op = "mark_linked"
	OpCommit      Op = "commit"
	OpDeleteAll   Op = "delete_all"
)

type fault struct {
	op    Op
	after int // calls of op to let through before failing
	err   error
}

type state struct {
	docs  map[string]ir.CanonicalRecord
	links map[string]struct{}
}

func (s state) clone() state {
	out := state{
		docs:  make(map[string]ir.CanonicalRecord, len(s.docs)),
		links: make(map[string]struct{}, len(s.links)),
	}
	for k, v := range s.docs {
		out.docs[k] = v.Clone()
	}
	for k := range s.links {
		out.links[k] = struct{}{}
	}
	return out
}

// Store is a RecordStore kept entirely in memory.
type Store struct {
	mu        sync.Mutex
	state     state
	faults    []fault
	calls     map[Op]int
	schemaErr error
	commits   int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		state: state{
			docs:  make(map[string]ir.CanonicalRecord),
			links: make(map[string]struct{}),
		},
		calls: make(map[Op]int),
	}
}

// FailAfter makes op fail with err once it has succeeded n more times.
// FailAfter(OpPut, 0, err) fails the next put.
func (s *Store) FailAfter(op Op, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{op: op, after: s.calls[op] + n, err: err})
}

// FailSchema makes CheckSchema report err.
func (s *Store) FailSchema(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemaErr = err
}

// ClearFaults removes every injected fault.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
	s.schemaErr = nil
}

// Commits returns the number of units of work that committed.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// check counts a call of op and returns the injected fault, if any.
// Caller holds s.mu.
func (s *Store) check(op Op) error {
	n := s.calls[op]
	s.calls[op] = n + 1
	for i, f := range s.faults {
		if f.op == op && n == f.after {
			s.faults = slices.Delete(s.faults, i, i+1)
			return fmt.Errorf("memstore %s: %w", op, f.err)
		}
	}
	return nil
}

// RunAtomic runs fn against a copy of the state and publishes the copy only
// if fn succeeds. Units of work are serialized.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx ir.RecordTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{store: s, state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := s.check(OpCommit); err != nil {
		return err
	}
	s.state = tx.state
	s.commits++
	return nil
}

// DeleteAll removes every record and every backlink.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(OpDeleteAll); err != nil {
		return err
	}
	clear(s.state.docs)
	clear(s.state.links)
	return nil
}

// CheckSchema always succeeds unless a schema fault was injected.
func (s *Store) CheckSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schemaErr != nil {
		return fmt.Errorf("memstore: %w: %w", ir.ErrSchemaMismatch, s.schemaErr)
	}
	return nil
}

// Records returns every canonical record ordered by DocID.
func (s *Store) Records(ctx context.Context) ([]ir.CanonicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ir.CanonicalRecord, 0, len(s.state.docs))
	for _, rec := range s.state.docs {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out, nil
}

// Backlinks returns every linked version id in sorted order.
func (s *Store) Backlinks(ctx context.Context) ([]string, error) {
	return s.Linked(), nil
}

// Linked returns every linked version id in sorted order.
func (s *Store) Linked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.state.links))
	for id := range s.state.links {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// memTx is the RecordTx for one unit of work. The store mutex is held for
// its whole lifetime.
type memTx struct {
	store *Store
	state state
}

func (tx *memTx) GetCanonical(ctx context.Context, docID string) (ir.CanonicalRecord, bool, error) {
	if err := tx.store.check(OpGet); err != nil {
		return ir.CanonicalRecord{}, false, err
	}
	rec, ok := tx.state.docs[docID]
	if !ok {
		return ir.CanonicalRecord{}, false, nil
	}
	return rec.Clone(), true, nil
}

func (tx *memTx) PutCanonical(ctx context.Context, rec ir.CanonicalRecord) error {
	if err := tx.store.check(OpPut); err != nil {
		return err
	}
	tx.state.docs[rec.DocID] = rec.Clone()
	return nil
}

func (tx *memTx) UpdateForks(ctx context.Context, docID string, forks []string) error {
	if err := tx.store.check(OpUpdateForks); err != nil {
		return err
	}
	rec, ok := tx.state.docs[docID]
	if !ok {
		return fmt.Errorf("memstore update forks %q: %w", docID, ir.ErrRecordNotFound)
	}
	rec.Forks = ir.NormalizeForks(forks)
	tx.state.docs[docID] = rec
	return nil
}

func (tx *memTx) IsLinked(ctx context.Context, versionID string) (bool, error) {
	if err := tx.store.check(OpIsLinked); err != nil {
		return false, err
	}
	_, ok := tx.state.links[versionID]
	return ok, nil
}

func (tx *memTx) MarkLinked(ctx context.Context, versionID string) error {
	if err := tx.store.check(OpMarkLinked); err != nil {
		return err
	}
	tx.state.links[versionID] = struct{}{}
	return nil
}
