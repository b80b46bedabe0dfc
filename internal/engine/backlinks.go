package engine

import (
	"context"

	"github.com/roach88/docindex/internal/ir"
)

// backlinks tracks linked version ids within one unit of work.
//
// The backlink set only grows, so a positive answer from the store can be
// remembered for the rest of the batch. Negative answers are always asked
// again.
type backlinks struct {
	tx     ir.RecordTx
	known  map[string]struct{}
	marked int
}

func newBacklinks(tx ir.RecordTx) *backlinks {
	return &backlinks{tx: tx, known: make(map[string]struct{})}
}

// markAll records every link as linked.
func (b *backlinks) markAll(ctx context.Context, links []string) error {
	for _, link := range links {
		if _, ok := b.known[link]; ok {
			continue
		}
		if err := b.tx.MarkLinked(ctx, link); err != nil {
			return err
		}
		b.known[link] = struct{}{}
		b.marked++
	}
	return nil
}

// isLinked reports whether versionID has been named by any link.
func (b *backlinks) isLinked(ctx context.Context, versionID string) (bool, error) {
	if _, ok := b.known[versionID]; ok {
		return true, nil
	}
	linked, err := b.tx.IsLinked(ctx, versionID)
	if err != nil {
		return false, err
	}
	if linked {
		b.known[versionID] = struct{}{}
	}
	return linked, nil
}
