package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docindex/internal/engine"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func ptr[T any](v T) *T { return &v }

func TestLoad_Defaults(t *testing.T) {
	cfg, src, err := Load(t.TempDir(), "", Overrides{})
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, src.File)
	assert.Equal(t, 30*time.Second, cfg.RetryTimeout())
}

func TestLoad_ProjectFileJSONC(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `{
		// local replica
		"db": "replica.db",
		"backend": "bolt",
		"selector": "version_id", /* ignore clocks */
		"verbose": true,
	}`)

	cfg, src, err := Load(dir, "", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), src.File)
	assert.Equal(t, "replica.db", cfg.DB)
	assert.Equal(t, BackendBolt, cfg.Backend)
	assert.Equal(t, engine.SelectorVersionID, cfg.Selector)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "docs", cfg.DocTable)
}

func TestLoad_ExplicitFileReplacesProjectFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `{"db": "project.db", "doc_table": "p_docs"}`)
	writeFile(t, filepath.Join(dir, "conf", "alt.json"), `{"db": "alt.db"}`)

	cfg, src, err := Load(dir, "conf/alt.json", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conf", "alt.json"), src.File)
	assert.Equal(t, "alt.db", cfg.DB)
	assert.Equal(t, "docs", cfg.DocTable)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, _, err := Load(t.TempDir(), "nope.json", Overrides{})
	assert.ErrorIs(t, err, errConfigFileNotFound)
}

func TestLoad_CLIOverridesWin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `{"db": "file.db", "verbose": true, "invalid_policy": "skip"}`)

	cfg, _, err := Load(dir, "", Overrides{DB: ptr("flag.db"), Verbose: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "flag.db", cfg.DB)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "skip", cfg.InvalidPolicy)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", `{"db": `, "invalid JSONC"},
		{"unknown key", `{"database": "x.db"}`, "unknown field"},
		{"backend", `{"backend": "postgres"}`, "unknown backend"},
		{"selector", `{"selector": "random"}`, "unknown selector"},
		{"policy", `{"invalid_policy": "ignore"}`, "unknown invalid policy"},
		{"duration", `{"retry_max_elapsed": "soon"}`, "retry_max_elapsed"},
		{"empty db", `{"db": ""}`, "db path is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, FileName), tt.content)

			_, _, err := Load(dir, "", Overrides{})
			require.Error(t, err)
			assert.ErrorIs(t, err, errConfigInvalid)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_UnreadableFile(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be cannot be read.
	require.NoError(t, os.Mkdir(filepath.Join(dir, FileName), 0o755))

	_, _, err := Load(dir, "", Overrides{})
	assert.ErrorIs(t, err, errConfigFileRead)
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.InvalidPolicy = "skip"
	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	cfg.Selector = "bogus"
	_, err = cfg.EngineOptions()
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	out, err := Format(Default())
	require.NoError(t, err)
	assert.Contains(t, out, `"backend": "sqlite"`)
	assert.Contains(t, out, `"retry_max_elapsed": "30s"`)

	ov, err := Parse([]byte(out))
	require.NoError(t, err)
	cfg := merge(Config{}, ov)
	assert.Equal(t, Default(), cfg)
}
