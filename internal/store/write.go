package store

import (
	"context"
	"fmt"

	"github.com/roach88/docindex/internal/ir"
)

// putCanonical upserts rec. The row for rec.DocID is replaced wholesale.
func (s *Store) putCanonical(ctx context.Context, q querier, rec ir.CanonicalRecord) error {
	c, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("put canonical %q: %w", rec.DocID, err)
	}

	_, err = q.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s
		(docId, versionId, links, forks, updatedAt, deleted, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(docId) DO UPDATE SET
			versionId = excluded.versionId,
			links     = excluded.links,
			forks     = excluded.forks,
			updatedAt = excluded.updatedAt,
			deleted   = excluded.deleted,
			fields    = excluded.fields
	`, s.docTable),
		c.docID,
		c.versionID,
		c.links,
		c.forks,
		c.updatedAt,
		c.deleted,
		c.fields,
	)
	if err != nil {
		return fmt.Errorf("put canonical %q: %w", rec.DocID, err)
	}
	return nil
}

// updateForks replaces the fork set of an existing record.
// Returns an error wrapping ir.ErrRecordNotFound if no row matched.
func (s *Store) updateForks(ctx context.Context, q querier, docID string, forks []string) error {
	data, err := marshalForks(forks)
	if err != nil {
		return fmt.Errorf("update forks %q: %w", docID, err)
	}

	res, err := q.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET forks = ? WHERE docId = ?`, s.docTable),
		data, docID)
	if err != nil {
		return fmt.Errorf("update forks %q: %w", docID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update forks %q: %w", docID, err)
	}
	if n == 0 {
		return fmt.Errorf("update forks %q: %w", docID, ir.ErrRecordNotFound)
	}
	return nil
}

// markLinked inserts versionID into the backlink table.
// Uses ON CONFLICT DO NOTHING for idempotency.
func (s *Store) markLinked(ctx context.Context, q querier, versionID string) error {
	_, err := q.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (versionId) VALUES (?) ON CONFLICT DO NOTHING`, s.backlinkTable),
		versionID)
	if err != nil {
		return fmt.Errorf("mark linked %q: %w", versionID, err)
	}
	return nil
}

// DeleteAll removes every record and every backlink in one transaction.
func (s *Store) DeleteAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{s.docTable, s.backlinkTable} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return fmt.Errorf("delete all from %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}

// sqlTx is the RecordTx for one SQLite transaction.
type sqlTx struct {
	tx    querier
	store *Store
}

func (t *sqlTx) GetCanonical(ctx context.Context, docID string) (ir.CanonicalRecord, bool, error) {
	return t.store.getCanonical(ctx, t.tx, docID)
}

func (t *sqlTx) PutCanonical(ctx context.Context, rec ir.CanonicalRecord) error {
	return t.store.putCanonical(ctx, t.tx, rec)
}

func (t *sqlTx) UpdateForks(ctx context.Context, docID string, forks []string) error {
	return t.store.updateForks(ctx, t.tx, docID, forks)
}

func (t *sqlTx) IsLinked(ctx context.Context, versionID string) (bool, error) {
	return t.store.isLinked(ctx, t.tx, versionID)
}

func (t *sqlTx) MarkLinked(ctx context.Context, versionID string) error {
	return t.store.markLinked(ctx, t.tx, versionID)
}
