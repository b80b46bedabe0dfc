package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/docindex/internal/ir"
)

// DigestOptions holds flags for the digest command.
type DigestOptions struct {
	*RootOptions
	Expect string // digest another replica reported
}

// DigestResult holds the digest command output.
type DigestResult struct {
	Digest  string `json:"digest"`
	Records int    `json:"records"`
	Match   *bool  `json:"match,omitempty"`
}

// NewDigestCommand creates the digest command.
func NewDigestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DigestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print the state digest of the store",
		Long: `Print a SHA-256 digest over every canonical record.

Replicas that ingested the same versions report the same digest, whatever
the order they saw them in. Pass --expect with another replica's digest to
compare; a mismatch exits with code 1.

Examples:
  docindex digest
  docindex digest --expect 9a293d2d...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Expect, "expect", "", "digest to compare against")

	return cmd
}

func runDigest(opts *DigestOptions, cmd *cobra.Command) error {
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
	digest, err := ir.StateDigest(records)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compute digest", err)
	}

	result := DigestResult{Digest: digest, Records: len(records)}
	text := fmt.Sprintf("%s  (%d records)\n", digest, len(records))
	if opts.Expect != "" {
		match := opts.Expect == digest
		result.Match = &match
		if !match {
			text += fmt.Sprintf("✗ does not match %s\n", opts.Expect)
		} else {
			text += "✓ match\n"
		}
	}

	if err := opts.formatter(cmd).Success(result, text); err != nil {
		return err
	}
	if result.Match != nil && !*result.Match {
		return NewExitError(ExitFailure, "digest mismatch")
	}
	return nil
}
