package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docindex/internal/engine"
	"github.com/roach88/docindex/internal/ir"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "multi_doc.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := SnapshotJSON(s.Name, first)
	require.NoError(t, err)
	b, err := SnapshotJSON(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FailingAssertions(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: "expectations that do not hold"
versions:
  - {doc: A, version: "1"}
  - {doc: A, version: "2", links: ["1"]}
assertions:
  - {type: head, doc: A, version: "1"}
  - {type: linked, versions: ["2"]}
  - {type: outcome, version: "2", kind: won}
  - {type: record_count, count: 3}
  - {type: absent, doc: A}
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "Actual: version 2")
	assert.Contains(t, result.Errors[2], "Actual: replaced")
	assert.Contains(t, result.Errors[0], "Reference run:")
	assert.Equal(t, 1, result.Orderings)
}

func TestRun_BatchesAreRecorded(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "history.yaml"))
	require.NoError(t, err)
	s.Permute = false

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	batches := make([]int, len(result.Outcomes))
	for i, ev := range result.Outcomes {
		batches[i] = ev.Batch
		assert.Equal(t, i, ev.Seq)
	}
	assert.Equal(t, []int{0, 0, 0, 1, 1, 2, 2, 2}, batches)
	assert.Equal(t, []string{"5", "6"}, result.Outcomes[7].Repaired)
}

func TestReplay_DetectsDivergence(t *testing.T) {
	ctx := context.Background()

	// Keeping whichever version arrived first depends on order.
	firstSeen := engine.SelectorFunc(func(a, b ir.DocumentVersion) ir.DocumentVersion { return a })
	h, err := newHarness(ctx, firstSeen)
	require.NoError(t, err)
	defer h.close()

	versions := []ir.DocumentVersion{
		{DocID: "A", VersionID: "1"},
		{DocID: "A", VersionID: "2"},
	}
	ref, err := h.run(ctx, [][]ir.DocumentVersion{versions}, nil)
	require.NoError(t, err)

	result := NewResult()
	require.NoError(t, h.replay(ctx, versions, ref, result))
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "replay [2 1] diverged")
}

func TestDescribe(t *testing.T) {
	batches := [][]ir.DocumentVersion{
		{{VersionID: "1"}, {VersionID: "2"}},
		{{VersionID: "3"}},
	}
	assert.Equal(t, "[1 2][3]", describe(batches))
}
