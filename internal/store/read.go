package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/docindex/internal/ir"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) selectRecordSQL() string {
	return fmt.Sprintf(
		`SELECT docId, versionId, links, forks, updatedAt, deleted, fields FROM %s`,
		s.docTable)
}

func scanRecord(row rowScanner) (ir.CanonicalRecord, error) {
	var c recordColumns
	if err := row.Scan(&c.docID, &c.versionID, &c.links, &c.forks, &c.updatedAt, &c.deleted, &c.fields); err != nil {
		return ir.CanonicalRecord{}, err
	}
	return decodeRecord(c)
}

// getCanonical returns the record for docID.
// Returns found == false (not an error) if no record exists.
func (s *Store) getCanonical(ctx context.Context, q querier, docID string) (ir.CanonicalRecord, bool, error) {
	row := q.QueryRowContext(ctx, s.selectRecordSQL()+` WHERE docId = ?`, docID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.CanonicalRecord{}, false, nil
	}
	if err != nil {
		return ir.CanonicalRecord{}, false, fmt.Errorf("get canonical %q: %w", docID, err)
	}
	return rec, true, nil
}

// isLinked reports whether versionID is in the backlink table.
func (s *Store) isLinked(ctx context.Context, q querier, versionID string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE versionId = ?`, s.backlinkTable),
		versionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check backlink %q: %w", versionID, err)
	}
	return true, nil
}

// Head returns the canonical record for docID outside any unit of work.
func (s *Store) Head(ctx context.Context, docID string) (ir.CanonicalRecord, bool, error) {
	return s.getCanonical(ctx, s.db, docID)
}

// Records returns every canonical record.
// Results are ordered by docId COLLATE BINARY.
//
// Returns an empty slice (not nil) if the table is empty.
func (s *Store) Records(ctx context.Context) ([]ir.CanonicalRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.selectRecordSQL()+` ORDER BY docId COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []ir.CanonicalRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Backlinks returns every linked version id ordered by versionId
// COLLATE BINARY.
func (s *Store) Backlinks(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT versionId FROM %s ORDER BY versionId COLLATE BINARY ASC`, s.backlinkTable))
	if err != nil {
		return nil, fmt.Errorf("query backlinks: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan backlink: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backlinks: %w", err)
	}
	return ids, nil
}
