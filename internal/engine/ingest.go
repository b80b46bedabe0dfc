package engine

import (
	"context"

	"github.com/roach88/docindex/internal/ir"
	"github.com/roach88/docindex/internal/notify"
)

// OutcomeKind describes what one ingested version did to its document.
type OutcomeKind int

const (
	// OutcomeInserted: first version seen for the document.
	OutcomeInserted OutcomeKind = iota + 1
	// OutcomeReplaced: the previous canonical version was already linked.
	OutcomeReplaced
	// OutcomeWon: beat the concurrent canonical version, which became a fork.
	OutcomeWon
	// OutcomeForked: lost to the canonical version and was added to forks.
	OutcomeForked
	// OutcomeSuperseded: already linked by a later version; not stored.
	OutcomeSuperseded
	// OutcomeUnchanged: the version is already canonical.
	OutcomeUnchanged
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeInserted:   "inserted",
	OutcomeReplaced:   "replaced",
	OutcomeWon:        "won",
	OutcomeForked:     "forked",
	OutcomeSuperseded: "superseded",
	OutcomeUnchanged:  "unchanged",
}

// String returns the lower-case name of k.
func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return "unknown"
}

// Outcome reports the effect of one version within a batch.
type Outcome struct {
	DocID     string
	VersionID string
	Kind      OutcomeKind

	// Repaired lists fork entries removed because this version linked them.
	Repaired []string
}

// Stored reports whether the version is now canonical or a fork.
func (o Outcome) Stored() bool {
	switch o.Kind {
	case OutcomeInserted, OutcomeReplaced, OutcomeWon, OutcomeForked, OutcomeUnchanged:
		return true
	default:
		return false
	}
}

// ingest merges one version into its document inside tx.
//
// The current record is read once. Every decision is computed from that
// snapshot and applied with at most one write to the document. The
// returned write is non-nil when d itself was stored.
func (e *Engine) ingest(ctx context.Context, tx ir.RecordTx, bl *backlinks, d ir.DocumentVersion) (Outcome, *notify.Write, error) {
	out := Outcome{DocID: d.DocID, VersionID: d.VersionID}

	existing, found, err := tx.GetCanonical(ctx, d.DocID)
	if err != nil {
		return out, nil, newStorageError("read canonical record", d.DocID, d.VersionID, err)
	}

	if err := bl.markAll(ctx, d.Links); err != nil {
		return out, nil, newStorageError("mark links", d.DocID, d.VersionID, err)
	}

	// Forks that d links are no longer concurrent heads.
	var forks []string
	if found {
		forks = ir.ForkSet(existing.Forks).Without(d.Links...)
		out.Repaired = ir.ForkSet(existing.Forks).Without(forks...)
	}
	dirty := len(out.Repaired) > 0

	linked, err := bl.isLinked(ctx, d.VersionID)
	if err != nil {
		return out, nil, newStorageError("check backlink", d.DocID, d.VersionID, err)
	}
	if linked {
		out.Kind = OutcomeSuperseded
		return out, nil, repairForks(ctx, tx, existing, forks, dirty)
	}

	if !found {
		out.Kind = OutcomeInserted
		w, err := put(ctx, tx, ir.NewCanonicalRecord(d, nil))
		return out, w, err
	}

	if d.VersionID == existing.VersionID {
		out.Kind = OutcomeUnchanged
		return out, nil, repairForks(ctx, tx, existing, forks, dirty)
	}

	existingLinked, err := bl.isLinked(ctx, existing.VersionID)
	if err != nil {
		return out, nil, newStorageError("check backlink", d.DocID, existing.VersionID, err)
	}
	if existingLinked {
		// The old head is superseded; its forks are dropped with it.
		out.Kind = OutcomeReplaced
		w, err := put(ctx, tx, ir.NewCanonicalRecord(d, nil))
		return out, w, err
	}

	current := existing.Version()
	winner := e.selector.Select(current, d)
	switch winner.VersionID {
	case existing.VersionID:
		out.Kind = OutcomeForked
		rec := existing.Clone()
		rec.Forks = ir.ForkSet(forks).With(d.VersionID)
		if err := tx.UpdateForks(ctx, rec.DocID, rec.Forks); err != nil {
			return out, nil, newStorageError("update forks", d.DocID, d.VersionID, err)
		}
		return out, &notify.Write{VersionID: d.VersionID, Record: rec}, nil
	case d.VersionID:
		out.Kind = OutcomeWon
		w, err := put(ctx, tx, ir.NewCanonicalRecord(d, ir.ForkSet(forks).With(existing.VersionID)))
		return out, w, err
	default:
		return out, nil, newSelectionError(current, d, winner.VersionID)
	}
}

// put writes rec as the canonical record.
func put(ctx context.Context, tx ir.RecordTx, rec ir.CanonicalRecord) (*notify.Write, error) {
	if err := tx.PutCanonical(ctx, rec); err != nil {
		return nil, newStorageError("write canonical record", rec.DocID, rec.VersionID, err)
	}
	return &notify.Write{VersionID: rec.VersionID, Record: rec}, nil
}

// repairForks persists a fork set that changed only because of repair.
func repairForks(ctx context.Context, tx ir.RecordTx, existing ir.CanonicalRecord, forks []string, dirty bool) error {
	if !dirty {
		return nil
	}
	if err := tx.UpdateForks(ctx, existing.DocID, forks); err != nil {
		return newStorageError("repair forks", existing.DocID, existing.VersionID, err)
	}
	return nil
}
