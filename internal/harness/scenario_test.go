package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docindex/internal/ir"
)

const validScenario = `
name: ok
description: "minimal"
versions:
  - doc: A
    version: "1"
    fields:
      count: 3
      nested: {flag: true}
assertions:
  - type: head
    doc: A
    version: "1"
`

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)
	assert.Equal(t, "ok", s.Name)
	require.Len(t, s.Versions, 1)

	v, err := s.Versions[0].DocumentVersion()
	require.NoError(t, err)
	assert.Equal(t, ir.Object{
		"count":  ir.Int(3),
		"nested": ir.Object{"flag": ir.Bool(true)},
	}, v.Fields)
	assert.Equal(t, []string{}, v.Links)
	assert.Nil(t, s.Assertions[0].Forks)
}

func TestParseScenario_EmptyForksMeansNone(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: ok
description: "empty forks"
versions: [{doc: A, version: "1"}]
assertions: [{type: head, doc: A, version: "1", forks: []}]
`))
	require.NoError(t, err)
	assert.NotNil(t, s.Assertions[0].Forks)
	assert.Empty(t, s.Assertions[0].Forks)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: `{name: x, description: d, version: [], assertions: []}`,
			want: "field version not found",
		},
		{
			name: "missing name",
			yaml: `{description: d, versions: [{doc: A, version: "1"}], assertions: [{type: record_count}]}`,
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: `{name: x, versions: [{doc: A, version: "1"}], assertions: [{type: record_count}]}`,
			want: "description is required",
		},
		{
			name: "no versions",
			yaml: `{name: x, description: d, assertions: [{type: record_count}]}`,
			want: "versions list is required",
		},
		{
			name: "no assertions",
			yaml: `{name: x, description: d, versions: [{doc: A, version: "1"}]}`,
			want: "assertions list is required",
		},
		{
			name: "bad selector",
			yaml: `{name: x, description: d, selector: coin, versions: [{doc: A, version: "1"}], assertions: [{type: record_count}]}`,
			want: "unknown selector",
		},
		{
			name: "missing doc",
			yaml: `{name: x, description: d, versions: [{version: "1"}], assertions: [{type: record_count}]}`,
			want: "missing docId",
		},
		{
			name: "empty link",
			yaml: `{name: x, description: d, versions: [{doc: A, version: "1", links: [""]}], assertions: [{type: record_count}]}`,
			want: "empty link",
		},
		{
			name: "float field",
			yaml: `{name: x, description: d, versions: [{doc: A, version: "1", fields: {f: 1.5}}], assertions: [{type: record_count}]}`,
			want: "floats are not allowed",
		},
		{
			name: "duplicate version",
			yaml: `{name: x, description: d, versions: [{doc: A, version: "1"}, {doc: B, version: "1"}], assertions: [{type: record_count}]}`,
			want: `duplicate version "1"`,
		},
		{
			name: "unknown batch id",
			yaml: `{name: x, description: d, versions: [{doc: A, version: "1"}], batches: [["2"]], assertions: [{type: record_count}]}`,
			want: `unknown version "2"`,
		},
		{
			name: "batches incomplete",
			yaml: `{name: x, description: d, versions: [{doc: A, version: "1"}, {doc: A, version: "2"}], batches: [["1"]], assertions: [{type: record_count}]}`,
			want: "every version exactly once",
		},
		{
			name: "empty batch",
			yaml: `{name: x, description: d, versions: [{doc: A, version: "1"}], batches: [[]], assertions: [{type: record_count}]}`,
			want: "batch is empty",
		},
		{
			name: "unknown assertion",
			yaml: `{name: x, description: d, versions: [{doc: A, version: "1"}], assertions: [{type: trace_order}]}`,
			want: `unknown assertion type "trace_order"`,
		},
		{
			name: "head without version",
			yaml: `{name: x, description: d, versions: [{doc: A, version: "1"}], assertions: [{type: head, doc: A}]}`,
			want: "doc and version are required",
		},
		{
			name: "unknown outcome kind",
			yaml: `{name: x, description: d, versions: [{doc: A, version: "1"}], assertions: [{type: outcome, version: "1", kind: lost}]}`,
			want: `unknown outcome kind "lost"`,
		},
		{
			name: "linked without versions",
			yaml: `{name: x, description: d, versions: [{doc: A, version: "1"}], assertions: [{type: linked}]}`,
			want: "versions list is required for linked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_TooManyToPermute(t *testing.T) {
	s := "{name: x, description: d, permute: true, versions: ["
	for i := 0; i <= MaxPermuted; i++ {
		if i > 0 {
			s += ", "
		}
		s += `{doc: A, version: "v` + string(rune('a'+i)) + `"}`
	}
	s += "], assertions: [{type: record_count}]}"

	_, err := ParseScenario([]byte(s))
	assert.ErrorContains(t, err, "permute allows at most 8 versions")
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenarios_SortedAndNamed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(validScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"),
		[]byte("name: first\n"+validScenario[len("\nname: ok\n"):]), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "ok", scenarios[1].Name)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yaml"), []byte("name: [broken"), 0o644))
	_, err = LoadScenarios(dir)
	assert.ErrorContains(t, err, "c.yaml")
}
