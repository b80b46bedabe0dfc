package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/docindex/internal/ir"
)

// Snapshot captures everything a scenario run produced.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts the snapshot to a map[string]any for canonical
// JSON serialization.
func (s *Snapshot) toCanonicalMap() map[string]any {
	outcomes := make([]any, len(s.Result.Outcomes))
	for i, ev := range s.Result.Outcomes {
		m := map[string]any{
			"seq":        ev.Seq,
			"batch":      ev.Batch,
			"doc_id":     ev.DocID,
			"version_id": ev.VersionID,
			"kind":       ev.Kind,
		}
		if len(ev.Repaired) > 0 {
			m["repaired"] = toAnyList(ev.Repaired)
		}
		outcomes[i] = m
	}

	records := make(ir.List, len(s.Result.Records))
	for i, rec := range s.Result.Records {
		records[i] = ir.RecordObject(rec)
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"outcomes":      outcomes,
		"records":       records,
		"linked":        toAnyList(s.Result.Linked),
		"digest":        s.Result.Digest,
		"orderings":     s.Result.Orderings,
	}
}

func toAnyList(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// SnapshotJSON renders a result as canonical JSON.
func SnapshotJSON(name string, result *Result) ([]byte, error) {
	snapshot := Snapshot{ScenarioName: name, Result: result}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
