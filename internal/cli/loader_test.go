package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docindex/internal/ir"
)

func newLoader(t *testing.T) *BatchLoader {
	t.Helper()
	l, err := NewBatchLoader()
	require.NoError(t, err)
	return l
}

func TestBatchLoader_YAML(t *testing.T) {
	versions, err := newLoader(t).Load("fork.yaml", []byte(forkBatch))
	require.NoError(t, err)
	require.Len(t, versions, 3)

	assert.Equal(t, ir.DocumentVersion{
		DocID:     "A",
		VersionID: "3",
		Links:     []string{"1"},
		UpdatedAt: "2024-01-01T00:00:02Z",
		Fields:    ir.Object{"title": ir.String("right")},
	}, versions[2])
	assert.Nil(t, versions[0].Links)
	assert.Nil(t, versions[0].Fields)
}

func TestBatchLoader_JSON(t *testing.T) {
	versions, err := newLoader(t).Load("merge.json", []byte(mergeBatch))
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, []string{"2", "3"}, versions[0].Links)
}

func TestBatchLoader_UnquotedTimestamp(t *testing.T) {
	versions, err := newLoader(t).Load("ts.yaml", []byte(`versions:
  - docId: A
    versionId: v1
    updatedAt: 2024-01-01T00:00:00Z
`))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00Z", versions[0].UpdatedAt)
}

func TestBatchLoader_NestedFields(t *testing.T) {
	versions, err := newLoader(t).Load("nested.yaml", []byte(`versions:
  - docId: A
    versionId: v1
    deleted: true
    fields:
      tags: [a, b]
      meta: {rev: 3, draft: false, note: null}
`))
	require.NoError(t, err)
	assert.True(t, versions[0].Deleted)
	assert.Equal(t, ir.Object{
		"tags": ir.List{ir.String("a"), ir.String("b")},
		"meta": ir.Object{"rev": ir.Int(3), "draft": ir.Bool(false), "note": ir.Null{}},
	}, versions[0].Fields)
}

func TestBatchLoader_EmptyIDsReachEngine(t *testing.T) {
	versions, err := newLoader(t).Load("empty.yaml", []byte(`versions:
  - docId: ""
    versionId: ""
    links: [""]
`))
	require.NoError(t, err)
	assert.ErrorIs(t, versions[0].Validate(), ir.ErrMissingDocID)
}

func TestBatchLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		code    string
		message string
	}{
		{
			name: "not yaml",
			data: "versions: [",
			code: ErrCodeParse,
		},
		{
			name: "empty document",
			data: "",
			code: ErrCodeSchema,
		},
		{
			name:    "unknown top-level key",
			data:    "versions: []\nbatch: 1\n",
			code:    ErrCodeSchema,
			message: "batch",
		},
		{
			name:    "missing version id",
			data:    "versions:\n  - docId: A\n",
			code:    ErrCodeSchema,
			message: "versionId",
		},
		{
			name:    "numeric link",
			data:    "versions:\n  - docId: A\n    versionId: \"2\"\n    links: [1]\n",
			code:    ErrCodeSchema,
			message: "links",
		},
		{
			name:    "deleted not bool",
			data:    "versions:\n  - docId: A\n    versionId: v\n    deleted: maybe\n",
			code:    ErrCodeSchema,
			message: "deleted",
		},
		{
			name:    "float field",
			data:    "versions:\n  - docId: A\n    versionId: v\n    fields: {score: 1.5}\n",
			code:    ErrCodeFieldValues,
			message: "versions[0].fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLoader(t).Load("batch.yaml", []byte(tt.data))
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.code, loadErr.Code)
			assert.Equal(t, "batch.yaml", loadErr.Path)
			if tt.message != "" {
				assert.Contains(t, loadErr.Message, tt.message)
			}
		})
	}
}

func TestBatchLoader_LoadFileStdin(t *testing.T) {
	versions, err := newLoader(t).LoadFile("-", strings.NewReader(mergeBatch))
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestBatchLoader_LoadFileMissing(t *testing.T) {
	_, err := newLoader(t).LoadFile("/nonexistent/batch.yaml", nil)
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}
