package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/roach88/docindex/internal/config"
)

// RootOptions holds global flags and the resolved configuration shared by
// all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Flag values layered over the config files when set.
	DB            string
	Backend       string
	Selector      string
	InvalidPolicy string

	// Config is resolved before any command runs.
	Config config.Config
	Logger *slog.Logger

	// WorkDir locates the project config file. Empty means the process
	// working directory.
	WorkDir string

	// Test hooks. Nil means the configured backend, exponential retry,
	// UUIDv7 version ids and the wall clock.
	openStore  func(*RootOptions) (recordStore, error)
	newBackoff func() backoff.BackOff
	ids        IDGenerator
	now        func() string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the docindex CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs the CLI with args and returns the process exit code.
//
// Failures are reported through OutputFormatter.Error. In JSON mode a
// command that already wrote its response keeps it, and the error goes to
// stderr as text.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	return execute(ctx, opts, args, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	out := &countingWriter{w: stdout}
	cmd := newRootCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	f := &OutputFormatter{Format: opts.Format, Writer: out, ErrWriter: stderr, Verbose: opts.Verbose}
	if f.Format != "json" || out.n > 0 {
		f.Format = "text"
	}
	if ferr := f.Error(errorCode(err), err.Error(), nil); ferr != nil {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return GetExitCode(err)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "docindex",
		Short:         "docindex - convergent document heads",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `docindex keeps one canonical head per document and tracks concurrent
edits as forks. Versions name the versions they supersede; any replica that
ingests the same versions, in any order, ends in the same state.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolve(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default: ./"+config.FileName+" if present)")
	flags.StringVar(&opts.DB, "db", "", "database path")
	flags.StringVar(&opts.Backend, "backend", "", "storage backend (sqlite|bolt)")
	flags.StringVar(&opts.Selector, "selector", "", "winner rule (updated_at|version_id)")
	flags.StringVar(&opts.InvalidPolicy, "invalid-policy", "", "malformed versions: abort the batch or skip them (abort|skip)")

	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewCommitCommand(opts))
	cmd.AddCommand(NewHeadCommand(opts))
	cmd.AddCommand(NewLinkedCommand(opts))
	cmd.AddCommand(NewDigestCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// resolve loads the layered config and installs the logger.
func (opts *RootOptions) resolve(cmd *cobra.Command) error {
	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return WrapExitError(ExitCommandError, "cannot determine working directory", err)
		}
		workDir = wd
	}

	flags := cmd.Flags()
	var ov config.Overrides
	if flags.Changed("db") {
		ov.DB = &opts.DB
	}
	if flags.Changed("backend") {
		ov.Backend = &opts.Backend
	}
	if flags.Changed("selector") {
		ov.Selector = &opts.Selector
	}
	if flags.Changed("invalid-policy") {
		ov.InvalidPolicy = &opts.InvalidPolicy
	}
	if flags.Changed("verbose") {
		ov.Verbose = &opts.Verbose
	}

	cfg, src, err := config.Load(workDir, opts.ConfigPath, ov)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	opts.Config = cfg
	opts.Verbose = cfg.Verbose

	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	opts.Logger = slog.New(handler)
	opts.Logger.Debug("config resolved", "file", src.File, "db", cfg.DB, "backend", cfg.Backend)
	return nil
}

// formatter returns an OutputFormatter bound to cmd's writers.
func (opts *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
