package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// LinkedOptions holds flags for the linked command.
type LinkedOptions struct {
	*RootOptions
}

// LinkedEntry reports whether a version has been superseded.
type LinkedEntry struct {
	VersionID string `json:"version_id"`
	Linked    bool   `json:"linked"`
}

// NewLinkedCommand creates the linked command.
func NewLinkedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LinkedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "linked [version-id]...",
		Short: "Show which versions have been superseded",
		Long: `Show whether versions have been linked by a later version.

With no arguments, every linked version id is listed.

Examples:
  docindex linked
  docindex linked 0190f5c2-... 0190f5c3-...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinked(opts, args, cmd)
		},
	}
	return cmd
}

func runLinked(opts *LinkedOptions, versionIDs []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeSession(opts.RootOptions, sess)

	f := opts.formatter(cmd)
	if len(versionIDs) == 0 {
		ids, err := sess.store.Backlinks(ctx)
		if err != nil {
			return WrapExitError(ExitStorageError, "failed to list backlinks", err)
		}
		var text string
		if len(ids) > 0 {
			text = strings.Join(ids, "\n") + "\n"
		}
		return f.Success(ids, text)
	}

	entries := make([]LinkedEntry, len(versionIDs))
	var b strings.Builder
	for i, id := range versionIDs {
		linked, err := sess.engine.IsLinked(ctx, id)
		if err != nil {
			return WrapEngineError("failed to check backlink", err)
		}
		entries[i] = LinkedEntry{VersionID: id, Linked: linked}
		state := "head candidate"
		if linked {
			state = "linked"
		}
		fmt.Fprintf(&b, "%s: %s\n", id, state)
	}
	return f.Success(entries, b.String())
}
