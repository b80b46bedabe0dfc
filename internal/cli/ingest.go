package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/docindex/internal/engine"
	"github.com/roach88/docindex/internal/ir"
	"github.com/roach88/docindex/internal/notify"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Metrics bool     // print engine metrics after ingesting
	Watch   []string // version ids to report once written
}

// FileSummary reports one ingested batch file.
type FileSummary struct {
	File     string         `json:"file"`
	Versions int            `json:"versions"`
	Outcomes map[string]int `json:"outcomes"`
	Rejected []string       `json:"rejected,omitempty"`
	Attempts int            `json:"attempts"`
}

// WrittenVersion reports a watched version that was stored.
type WrittenVersion struct {
	VersionID string `json:"version_id"`
	DocID     string `json:"doc_id"`
	As        string `json:"as"` // "canonical" or "fork"
}

// IngestResult holds the ingest command output.
type IngestResult struct {
	Files   []FileSummary    `json:"files"`
	Written []WrittenVersion `json:"written,omitempty"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <batch-file>...",
		Short: "Merge batch files into the store",
		Long: `Merge one or more batch files into the store.

Each file is a YAML or JSON document with a "versions" list and is
ingested as one atomic batch. Files are validated against the batch
schema before anything is written. A batch that fails because storage is
unavailable is retried with exponential backoff for up to
retry_max_elapsed.

Exit codes:
  0 - All batches committed
  1 - A batch was rejected (invalid version or selection)
  2 - Command error (unreadable or malformed file, bad config)
  3 - Storage unavailable after retries, or schema mismatch

Examples:
  docindex ingest batch.yaml
  docindex ingest --watch v-42 a.json b.json
  cat batch.json | docindex ingest -
  docindex ingest --metrics --format json batch.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print engine metrics in Prometheus text format")
	cmd.Flags().StringSliceVar(&opts.Watch, "watch", nil, "report when these version ids are written")

	return cmd
}

func runIngest(opts *IngestOptions, files []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loader, err := NewBatchLoader()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load batch schema", err)
	}

	f := opts.formatter(cmd)

	// Validate every file before opening the store.
	batches := make([][]ir.DocumentVersion, len(files))
	for i, file := range files {
		versions, err := loader.LoadFile(file, cmd.InOrStdin())
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid batch file", err)
		}
		f.VerboseLog("loaded %s: %d versions", file, len(versions))
		batches[i] = versions
	}

	sess, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		written []WrittenVersion
	)
	for _, id := range opts.Watch {
		sess.engine.OnceWritten(id, notify.NewListener(func(rec ir.CanonicalRecord) {
			as := "canonical"
			if rec.VersionID != id {
				as = "fork"
			}
			mu.Lock()
			written = append(written, WrittenVersion{VersionID: id, DocID: rec.DocID, As: as})
			mu.Unlock()
		}))
	}

	result := IngestResult{Files: make([]FileSummary, 0, len(files))}
	var ingestErr error
	for i, file := range files {
		summary, err := ingestWithRetry(ctx, opts, sess.engine, file, batches[i])
		if err != nil {
			ingestErr = WrapEngineError(fmt.Sprintf("batch %s failed", file), err)
			break
		}
		result.Files = append(result.Files, summary)
	}

	// Close drains the notifier, so every watched write is reported.
	if err := sess.Close(); err != nil && ingestErr == nil {
		ingestErr = WrapExitError(ExitStorageError, "failed to close store", err)
	}
	result.Written = written

	if err := f.Success(result, formatIngest(result)); err != nil {
		return err
	}
	if opts.Metrics {
		// Keep JSON output parseable.
		w := cmd.OutOrStdout()
		if opts.Format == "json" {
			w = f.GetErrWriter()
		}
		if err := writeMetrics(w, sess); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}
	return ingestErr
}

// ingestWithRetry runs one batch, retrying while storage is unavailable.
// Batches are atomic, so a failed attempt left nothing behind.
func ingestWithRetry(ctx context.Context, opts *IngestOptions, eng *engine.Engine, file string, versions []ir.DocumentVersion) (FileSummary, error) {
	var policy backoff.BackOff
	if opts.newBackoff != nil {
		policy = opts.newBackoff()
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.MaxElapsedTime = opts.Config.RetryTimeout()
		policy = exp
	}

	attempts := 0
	var res engine.BatchResult
	err := backoff.Retry(func() error {
		attempts++
		var err error
		res, err = eng.Batch(ctx, versions)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !engine.IsStorageUnavailable(err) {
			return backoff.Permanent(err)
		}
		opts.Logger.Warn("batch failed, retrying", "file", file, "attempt", attempts, "error", err)
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return FileSummary{}, err
	}

	summary := FileSummary{
		File:     file,
		Versions: len(versions),
		Outcomes: make(map[string]int),
		Attempts: attempts,
	}
	for _, o := range res.Outcomes {
		summary.Outcomes[o.Kind.String()]++
	}
	var merr *multierror.Error
	if errors.As(res.Rejected, &merr) {
		for _, e := range merr.Errors {
			summary.Rejected = append(summary.Rejected, e.Error())
		}
	}
	return summary, nil
}

var outcomeOrder = []engine.OutcomeKind{
	engine.OutcomeInserted,
	engine.OutcomeReplaced,
	engine.OutcomeWon,
	engine.OutcomeForked,
	engine.OutcomeSuperseded,
	engine.OutcomeUnchanged,
}

func formatIngest(result IngestResult) string {
	var b strings.Builder
	for _, s := range result.Files {
		var parts []string
		for _, k := range outcomeOrder {
			if n := s.Outcomes[k.String()]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, k))
			}
		}
		fmt.Fprintf(&b, "✓ %s: %d versions", s.File, s.Versions)
		if len(parts) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
		}
		b.WriteString("\n")
		for _, r := range s.Rejected {
			fmt.Fprintf(&b, "  skipped: %s\n", r)
		}
	}
	for _, w := range result.Written {
		fmt.Fprintf(&b, "written %s to %s as %s\n", w.VersionID, w.DocID, w.As)
	}
	return b.String()
}

// writeMetrics dumps the session's registry in Prometheus text format.
func writeMetrics(w io.Writer, sess *session) error {
	families, err := sess.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
