package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docindex/internal/ir"
)

// ingested returns an env whose store holds forkBatch.
func ingested(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	path := env.writeFile(t, "fork.yaml", forkBatch)
	_, _, err := env.run("ingest", path)
	require.NoError(t, err)
	return env
}

func TestHead_MultipleDocs(t *testing.T) {
	env := ingested(t)

	stdout, _, err := env.run("head", "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "A: 3 forks=[2]\nB: not found\n", stdout)

	stdout, _, err = env.run("--format", "json", "head", "A")
	require.NoError(t, err)
	var response struct {
		Data []HeadEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &response))
	assert.Equal(t, []HeadEntry{{
		DocID:     "A",
		Found:     true,
		VersionID: "3",
		Forks:     []string{"2"},
		UpdatedAt: "2024-01-01T00:00:02Z",
		Fields:    ir.Object{"title": ir.String("right")},
	}}, response.Data)
}

func TestLinked(t *testing.T) {
	env := ingested(t)

	stdout, _, err := env.run("linked")
	require.NoError(t, err)
	assert.Equal(t, "1\n", stdout)

	stdout, _, err = env.run("linked", "1", "2")
	require.NoError(t, err)
	assert.Equal(t, "1: linked\n2: head candidate\n", stdout)

	stdout, _, err = env.run("--format", "json", "linked", "2")
	require.NoError(t, err)
	var response struct {
		Data []LinkedEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &response))
	assert.Equal(t, []LinkedEntry{{VersionID: "2", Linked: false}}, response.Data)
}

func TestLinked_Empty(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.run("linked")
	require.NoError(t, err)
	assert.Empty(t, stdout)
}

func TestDigest_ConvergesAcrossOrders(t *testing.T) {
	forward := ingested(t)
	want, _, err := forward.run("--format", "json", "digest")
	require.NoError(t, err)

	// The same versions, reversed and split across two files, on bolt.
	reverse := newTestEnv(t)
	first := reverse.writeFile(t, "b.yaml", `versions:
  - docId: A
    versionId: "3"
    links: ["1"]
    updatedAt: "2024-01-01T00:00:02Z"
    fields:
      title: right
  - docId: A
    versionId: "2"
    links: ["1"]
    updatedAt: "2024-01-01T00:00:01Z"
`)
	second := reverse.writeFile(t, "a.yaml", `versions:
  - docId: A
    versionId: "1"
    updatedAt: "2024-01-01T00:00:00Z"
`)
	_, _, err = reverse.run("--backend", "bolt", "ingest", first, second)
	require.NoError(t, err)

	got, _, err := reverse.run("--backend", "bolt", "--format", "json", "digest")
	require.NoError(t, err)
	assert.JSONEq(t, want, got)
}

func TestDigest_Expect(t *testing.T) {
	env := ingested(t)

	stdout, _, err := env.run("--format", "json", "digest")
	require.NoError(t, err)
	var response struct {
		Data DigestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &response))
	assert.Len(t, response.Data.Digest, 64)
	assert.Equal(t, 1, response.Data.Records)
	digest := response.Data.Digest

	stdout, _, err = env.run("digest", "--expect", digest)
	require.NoError(t, err)
	assert.Equal(t, digest+"  (1 records)\n✓ match\n", stdout)

	stdout, _, err = env.run("digest", "--expect", "deadbeef")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ does not match deadbeef")
}

func TestExport(t *testing.T) {
	env := ingested(t)
	path := filepath.Join(env.dir, "out", "snapshot.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	stdout, _, err := env.run("export", path)
	require.NoError(t, err)
	assert.Equal(t, "exported 1 records to "+path+"\n", stdout)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t,
		`{"deleted":false,"docId":"A","fields":{"title":"right"},"forks":["2"],"links":["1"],"updatedAt":"2024-01-01T00:00:02Z","versionId":"3"}`,
		lines[0])
}

func TestExport_DigestMatchesDigestCommand(t *testing.T) {
	env := ingested(t)
	path := filepath.Join(env.dir, "snapshot.jsonl")

	stdout, _, err := env.run("--format", "json", "export", path)
	require.NoError(t, err)
	var exported struct {
		Data ExportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &exported))

	stdout, _, err = env.run("--format", "json", "digest")
	require.NoError(t, err)
	var digest struct {
		Data DigestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &digest))
	assert.Equal(t, digest.Data.Digest, exported.Data.Digest)
}

func TestReset(t *testing.T) {
	env := ingested(t)

	_, _, err := env.run("reset")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--yes")

	stdout, _, err := env.run("reset", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "store reset\n", stdout)

	stdout, _, err = env.run("head", "A")
	require.NoError(t, err)
	assert.Equal(t, "A: not found\n", stdout)

	stdout, _, err = env.run("linked")
	require.NoError(t, err)
	assert.Empty(t, stdout)
}

func TestCustomTables(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile(t, "docindex.jsonc", `{"doc_table": "documents", "backlink_table": "seen"}`)
	path := env.writeFile(t, "fork.yaml", forkBatch)

	_, _, err := env.run("-c", "docindex.jsonc", "ingest", path)
	require.NoError(t, err)

	stdout, _, err := env.run("-c", "docindex.jsonc", "head", "A")
	require.NoError(t, err)
	assert.Equal(t, "A: 3 forks=[2]\n", stdout)

	// The default tables were never written.
	stdout, _, err = env.run("head", "A")
	require.NoError(t, err)
	assert.Equal(t, "A: not found\n", stdout)
}

func TestCustomTables_Bolt(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile(t, "docindex.jsonc", `{"backend": "bolt", "doc_table": "documents", "backlink_table": "seen"}`)
	path := env.writeFile(t, "fork.yaml", forkBatch)

	_, _, err := env.run("-c", "docindex.jsonc", "ingest", path)
	require.NoError(t, err)

	stdout, _, err := env.run("-c", "docindex.jsonc", "head", "A")
	require.NoError(t, err)
	assert.Equal(t, "A: 3 forks=[2]\n", stdout)

	// The default buckets hold nothing.
	stdout, _, err = env.run("--backend", "bolt", "head", "A")
	require.NoError(t, err)
	assert.Equal(t, "A: not found\n", stdout)
}
