package cli

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/docindex/internal/ir"
)

//go:embed batch.cue
var batchSchemaSrc string

// Error codes for batch loading.
const (
	ErrCodeNotFound    = "E_NOT_FOUND"    // Batch file missing or unreadable
	ErrCodeParse       = "E_PARSE"        // Not valid YAML or JSON
	ErrCodeSchema      = "E_SCHEMA"       // Does not match the batch schema
	ErrCodeFieldValues = "E_FIELD_VALUES" // Payload holds values that cannot be stored
)

// LoadError represents an error that occurred while loading a batch file.
type LoadError struct {
	Code    string
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
}

// batchFile mirrors the batch schema.
type batchFile struct {
	Versions []versionFile `yaml:"versions"`
}

type versionFile struct {
	DocID     string         `yaml:"docId"`
	VersionID string         `yaml:"versionId"`
	Links     []string       `yaml:"links"`
	UpdatedAt string         `yaml:"updatedAt"`
	Deleted   bool           `yaml:"deleted"`
	Fields    map[string]any `yaml:"fields"`
}

// BatchLoader validates batch files against the embedded CUE schema.
type BatchLoader struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewBatchLoader compiles the batch schema.
func NewBatchLoader() (*BatchLoader, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(batchSchemaSrc, cue.Filename("batch.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile batch schema: %w", err)
	}
	batch := schema.LookupPath(cue.ParsePath("#Batch"))
	if !batch.Exists() {
		return nil, fmt.Errorf("batch schema has no #Batch definition")
	}
	return &BatchLoader{ctx: ctx, schema: batch}, nil
}

// LoadFile reads a YAML or JSON batch file. The path "-" reads stdin.
func (l *BatchLoader) LoadFile(path string, stdin io.Reader) ([]ir.DocumentVersion, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: err.Error()}
	}
	return l.Load(filepath.Base(path), data)
}

// Load parses and validates one batch document.
//
// The document is checked against the schema before any conversion, so
// unknown keys, missing keys and mistyped values are reported with the CUE
// path of the offending value.
func (l *BatchLoader) Load(name string, data []byte) ([]ir.DocumentVersion, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Path: name, Message: err.Error()}
	}
	if raw == nil {
		return nil, &LoadError{Code: ErrCodeSchema, Path: name, Message: "empty batch document"}
	}

	value := l.schema.Unify(l.ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Path: name, Message: schemaMessage(err)}
	}

	var file batchFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&file); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Path: name, Message: err.Error()}
	}

	versions := make([]ir.DocumentVersion, len(file.Versions))
	for i, vf := range file.Versions {
		v := ir.DocumentVersion{
			DocID:     vf.DocID,
			VersionID: vf.VersionID,
			Links:     vf.Links,
			UpdatedAt: vf.UpdatedAt,
			Deleted:   vf.Deleted,
		}
		if vf.Fields != nil {
			fields, err := ir.FromGo(vf.Fields)
			if err != nil {
				return nil, &LoadError{
					Code:    ErrCodeFieldValues,
					Path:    name,
					Message: fmt.Sprintf("versions[%d].fields: %v", i, err),
				}
			}
			v.Fields = fields.(ir.Object)
		}
		versions[i] = v
	}
	return versions, nil
}

// schemaMessage flattens CUE validation errors into one line each.
func schemaMessage(err error) string {
	var buf bytes.Buffer
	for i, e := range cueerrors.Errors(err) {
		if i > 0 {
			buf.WriteString("; ")
		}
		buf.WriteString(e.Error())
	}
	return buf.String()
}
