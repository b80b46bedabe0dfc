package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docindex/internal/ir"
)

// HeadOptions holds flags for the head command.
type HeadOptions struct {
	*RootOptions
}

// HeadEntry is the canonical record of one document.
type HeadEntry struct {
	DocID     string    `json:"doc_id"`
	Found     bool      `json:"found"`
	VersionID string    `json:"version_id,omitempty"`
	Forks     []string  `json:"forks,omitempty"`
	UpdatedAt string    `json:"updated_at,omitempty"`
	Deleted   bool      `json:"deleted,omitempty"`
	Fields    ir.Object `json:"fields,omitempty"`
}

// NewHeadCommand creates the head command.
func NewHeadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HeadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "head <doc-id>...",
		Short: "Show the canonical version of documents",
		Long: `Show the canonical version and the forks of each document.

A document with forks has concurrent edits that no later version has
merged yet.

Examples:
  docindex head readme
  docindex head readme changelog --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHead(opts, args, cmd)
		},
	}
	return cmd
}

func runHead(opts *HeadOptions, docIDs []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeSession(opts.RootOptions, sess)

	entries := make([]HeadEntry, 0, len(docIDs))
	for _, id := range docIDs {
		rec, found, err := sess.engine.Head(ctx, id)
		if err != nil {
			return WrapEngineError("failed to read head", err)
		}
		entry := HeadEntry{DocID: id, Found: found}
		if found {
			entry.VersionID = rec.VersionID
			entry.Forks = rec.Forks
			entry.UpdatedAt = rec.UpdatedAt
			entry.Deleted = rec.Deleted
			entry.Fields = rec.Fields
		}
		entries = append(entries, entry)
	}

	return opts.formatter(cmd).Success(entries, formatHeads(entries))
}

func formatHeads(entries []HeadEntry) string {
	var b strings.Builder
	for _, e := range entries {
		if !e.Found {
			fmt.Fprintf(&b, "%s: not found\n", e.DocID)
			continue
		}
		fmt.Fprintf(&b, "%s: %s", e.DocID, e.VersionID)
		if e.Deleted {
			b.WriteString(" (deleted)")
		}
		if len(e.Forks) > 0 {
			fmt.Fprintf(&b, " forks=[%s]", strings.Join(e.Forks, " "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
