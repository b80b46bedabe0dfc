package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docindex/internal/ir"
)

// CommitOptions holds flags for the commit command.
type CommitOptions struct {
	*RootOptions
	DocID      string
	Links      []string
	Fields     []string // key=value string fields
	FieldsJSON string   // JSON object merged over Fields
	Deleted    bool
	UpdatedAt  string
}

// CommitResult holds the commit command output.
type CommitResult struct {
	DocID     string `json:"doc_id"`
	VersionID string `json:"version_id"`
	UpdatedAt string `json:"updated_at"`
	Outcome   string `json:"outcome"`
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Create and ingest a new version",
		Long: `Create a new version of a document and ingest it as a batch of one.

The version id is a fresh UUIDv7 and updatedAt is the current UTC time,
unless --updated-at is given. Use --link for every version the edit
supersedes; with no links the version is concurrent with the current head.

Examples:
  docindex commit --doc readme --field title=Intro
  docindex commit --doc readme --link 0190f5c2-... --fields-json '{"tags":["a"]}'
  docindex commit --doc readme --link 0190f5c2-... --deleted`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DocID, "doc", "", "document id (required)")
	_ = cmd.MarkFlagRequired("doc")
	cmd.Flags().StringSliceVar(&opts.Links, "link", nil, "superseded version id (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Fields, "field", nil, "string field as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.FieldsJSON, "fields-json", "", "payload fields as a JSON object")
	cmd.Flags().BoolVar(&opts.Deleted, "deleted", false, "mark the version as a tombstone")
	cmd.Flags().StringVar(&opts.UpdatedAt, "updated-at", "", "explicit updatedAt value")

	return cmd
}

func runCommit(opts *CommitOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fields, err := commitFields(opts.Fields, opts.FieldsJSON)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid fields", err)
	}

	ids := opts.ids
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	now := opts.now
	if now == nil {
		now = utcNow
	}
	updatedAt := opts.UpdatedAt
	if updatedAt == "" {
		updatedAt = now()
	}

	v := ir.DocumentVersion{
		DocID:     opts.DocID,
		VersionID: ids.Generate(),
		Links:     opts.Links,
		UpdatedAt: updatedAt,
		Deleted:   opts.Deleted,
		Fields:    fields,
	}

	sess, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeSession(opts.RootOptions, sess)

	res, err := sess.engine.Batch(ctx, []ir.DocumentVersion{v})
	if err != nil {
		return WrapEngineError("commit failed", err)
	}

	result := CommitResult{
		DocID:     v.DocID,
		VersionID: v.VersionID,
		UpdatedAt: v.UpdatedAt,
		Outcome:   res.Outcomes[0].Kind.String(),
	}
	text := fmt.Sprintf("%s %s (%s)\n", result.DocID, result.VersionID, result.Outcome)
	return opts.formatter(cmd).Success(result, text)
}

// commitFields builds the payload from key=value pairs and a JSON object.
// Keys in the JSON object win.
func commitFields(pairs []string, rawJSON string) (ir.Object, error) {
	if len(pairs) == 0 && rawJSON == "" {
		return nil, nil
	}
	fields := ir.Object{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("field %q: want key=value", pair)
		}
		fields[key] = ir.String(value)
	}
	if rawJSON != "" {
		parsed, err := ir.ParseValue([]byte(rawJSON))
		if err != nil {
			return nil, fmt.Errorf("--fields-json: %w", err)
		}
		obj, ok := parsed.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("--fields-json: want a JSON object")
		}
		for k, v := range obj {
			fields[k] = v
		}
	}
	return fields, nil
}
