package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/roach88/docindex/internal/ir"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
}

// ExportResult holds the export command output.
type ExportResult struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
	Digest  string `json:"digest"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write every canonical record to a file",
		Long: `Write every canonical record as one line of canonical JSON, ordered by
document id. The file is replaced atomically, so readers never see a
partial export.

Example:
  docindex export snapshot.jsonl`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}
	return cmd
}

func runExport(opts *ExportOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeSession(opts.RootOptions, sess)

	records, err := sess.store.Records(ctx)
	if err != nil {
		return WrapExitError(ExitStorageError, "failed to read records", err)
	}

	data, err := encodeRecords(records)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode records", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return WrapExitError(ExitCommandError, "failed to write export", err)
	}

	digest, err := ir.StateDigest(records)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compute digest", err)
	}
	result := ExportResult{Path: path, Records: len(records), Digest: digest}
	text := fmt.Sprintf("exported %d records to %s\n", len(records), path)
	return opts.formatter(cmd).Success(result, text)
}

// encodeRecords renders one canonical JSON record per line.
func encodeRecords(records []ir.CanonicalRecord) ([]byte, error) {
	var buf bytes.Buffer
	for _, rec := range records {
		line, err := ir.RecordJSON(rec)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
