package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/docindex/internal/engine"
	"github.com/roach88/docindex/internal/ir"
	"github.com/roach88/docindex/internal/memstore"
	"github.com/roach88/docindex/internal/testutil"
)

// Harness runs scenarios against one engine over an in-memory store. The
// store is reset between runs.
type Harness struct {
	store  *memstore.Store
	engine *engine.Engine
	logger *slog.Logger
}

// state is the comparable end state of one run.
type state struct {
	Records []ir.CanonicalRecord
	Linked  []string
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Ingest the versions in scenario order, batched as the scenario says
//  2. Capture the final records, linked ids and digest
//  3. With permute, replay every ordering and every batching and compare
//  4. Evaluate assertions against the reference run
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	versions, err := scenarioVersions(scenario)
	if err != nil {
		return nil, err
	}
	batches, err := referenceBatches(scenario, versions)
	if err != nil {
		return nil, err
	}

	selector, err := engine.SelectorByName(scenario.Selector)
	if err != nil {
		return nil, err
	}

	h, err := newHarness(ctx, selector)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	ref, err := h.run(ctx, batches, result)
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}
	result.Records = ref.Records
	result.Linked = ref.Linked
	result.Orderings = 1
	if result.Digest, err = ir.StateDigest(ref.Records); err != nil {
		return nil, err
	}

	if scenario.Permute {
		if err := h.replay(ctx, versions, ref, result); err != nil {
			return nil, err
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, selector engine.Selector) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memstore.New()
	eng, err := engine.New(ctx, st,
		engine.WithSelector(selector),
		engine.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return &Harness{store: st, engine: eng, logger: logger}, nil
}

func (h *Harness) close() {
	h.engine.Close()
}

// run resets the store, ingests batches and returns the end state. When
// result is non-nil every outcome is appended to it.
func (h *Harness) run(ctx context.Context, batches [][]ir.DocumentVersion, result *Result) (state, error) {
	if err := h.engine.DeleteAll(ctx); err != nil {
		return state{}, err
	}

	seq := 0
	for i, batch := range batches {
		res, err := h.engine.Batch(ctx, batch)
		if err != nil {
			return state{}, fmt.Errorf("batch %d: %w", i, err)
		}
		if result == nil {
			continue
		}
		for _, o := range res.Outcomes {
			ev := OutcomeEvent{
				Seq:       seq,
				Batch:     i,
				DocID:     o.DocID,
				VersionID: o.VersionID,
				Kind:      o.Kind.String(),
			}
			if len(o.Repaired) > 0 {
				ev.Repaired = o.Repaired
			}
			result.Outcomes = append(result.Outcomes, ev)
			seq++
		}
	}

	records, err := h.store.Records(ctx)
	if err != nil {
		return state{}, err
	}
	return state{Records: records, Linked: h.store.Linked()}, nil
}

// replay runs every ordering as one batch and every batching of the
// reference order, recording a failure for each that diverges from ref.
func (h *Harness) replay(ctx context.Context, versions []ir.DocumentVersion, ref state, result *Result) error {
	var orders [][][]ir.DocumentVersion
	for _, perm := range testutil.Permutations(versions) {
		orders = append(orders, [][]ir.DocumentVersion{perm})
	}
	orders = append(orders, testutil.Splits(versions)...)

	for _, batches := range orders {
		got, err := h.run(ctx, batches, nil)
		if err != nil {
			return fmt.Errorf("replay %s: %w", describe(batches), err)
		}
		result.Orderings++
		if diff := cmp.Diff(ref, got); diff != "" {
			result.AddError(fmt.Sprintf("replay %s diverged (-reference +replay):\n%s", describe(batches), diff))
		}
	}
	return nil
}

func scenarioVersions(s *Scenario) ([]ir.DocumentVersion, error) {
	out := make([]ir.DocumentVersion, len(s.Versions))
	for i, step := range s.Versions {
		v, err := step.DocumentVersion()
		if err != nil {
			return nil, fmt.Errorf("versions[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// referenceBatches groups versions by the scenario's batches, or returns
// one batch holding all of them.
func referenceBatches(s *Scenario, versions []ir.DocumentVersion) ([][]ir.DocumentVersion, error) {
	if len(s.Batches) == 0 {
		return [][]ir.DocumentVersion{versions}, nil
	}
	byID := make(map[string]ir.DocumentVersion, len(versions))
	for _, v := range versions {
		byID[v.VersionID] = v
	}
	out := make([][]ir.DocumentVersion, len(s.Batches))
	for i, ids := range s.Batches {
		for _, id := range ids {
			v, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("batches[%d]: unknown version %q", i, id)
			}
			out[i] = append(out[i], v)
		}
	}
	return out, nil
}

// describe renders batches as [1 2][3].
func describe(batches [][]ir.DocumentVersion) string {
	var b strings.Builder
	for _, batch := range batches {
		ids := make([]string, len(batch))
		for i, v := range batch {
			ids[i] = v.VersionID
		}
		fmt.Fprintf(&b, "[%s]", strings.Join(ids, " "))
	}
	return b.String()
}
