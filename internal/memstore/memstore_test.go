package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docindex/internal/ir"
)

var errDisk = errors.New("disk on fire")

func record(docID, versionID string, forks ...string) ir.CanonicalRecord {
	return ir.NewCanonicalRecord(ir.DocumentVersion{DocID: docID, VersionID: versionID}, forks)
}

func TestRunAtomic_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunAtomic(ctx, func(tx ir.RecordTx) error {
		if err := tx.PutCanonical(ctx, record("A", "1")); err != nil {
			return err
		}
		return tx.MarkLinked(ctx, "0")
	})
	require.NoError(t, err)

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1", recs[0].VersionID)
	assert.Equal(t, []string{"0"}, s.Linked())
	assert.Equal(t, 1, s.Commits())
}

func TestRunAtomic_ReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunAtomic(ctx, func(tx ir.RecordTx) error {
		require.NoError(t, tx.PutCanonical(ctx, record("A", "1")))
		require.NoError(t, tx.UpdateForks(ctx, "A", []string{"3", "2"}))
		require.NoError(t, tx.MarkLinked(ctx, "9"))

		rec, found, err := tx.GetCanonical(ctx, "A")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []string{"2", "3"}, rec.Forks)

		linked, err := tx.IsLinked(ctx, "9")
		require.NoError(t, err)
		assert.True(t, linked)
		return nil
	})
	require.NoError(t, err)
}

func TestRunAtomic_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunAtomic(ctx, func(tx ir.RecordTx) error {
		require.NoError(t, tx.PutCanonical(ctx, record("A", "1")))
		require.NoError(t, tx.MarkLinked(ctx, "0"))
		return errDisk
	})
	assert.ErrorIs(t, err, errDisk)

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, s.Linked())
	assert.Equal(t, 0, s.Commits())
}

func TestFailAfter(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.FailAfter(OpPut, 1, errDisk)

	err := s.RunAtomic(ctx, func(tx ir.RecordTx) error {
		require.NoError(t, tx.PutCanonical(ctx, record("A", "1")))
		return tx.PutCanonical(ctx, record("B", "1"))
	})
	assert.ErrorIs(t, err, errDisk)

	// The fault fires once.
	err = s.RunAtomic(ctx, func(tx ir.RecordTx) error {
		return tx.PutCanonical(ctx, record("B", "1"))
	})
	assert.NoError(t, err)
}

func TestFailAfter_Commit(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.FailAfter(OpCommit, 0, errDisk)

	err := s.RunAtomic(ctx, func(tx ir.RecordTx) error {
		return tx.PutCanonical(ctx, record("A", "1"))
	})
	assert.ErrorIs(t, err, errDisk)

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestUpdateForks_NotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunAtomic(ctx, func(tx ir.RecordTx) error {
		return tx.UpdateForks(ctx, "missing", nil)
	})
	assert.ErrorIs(t, err, ir.ErrRecordNotFound)
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.RunAtomic(ctx, func(tx ir.RecordTx) error {
		require.NoError(t, tx.PutCanonical(ctx, record("A", "1")))
		return tx.MarkLinked(ctx, "0")
	}))
	require.NoError(t, s.DeleteAll(ctx))

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, s.Linked())
}

func TestCheckSchema(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CheckSchema(ctx))

	s.FailSchema(errors.New("no forks column"))
	assert.ErrorIs(t, s.CheckSchema(ctx), ir.ErrSchemaMismatch)

	s.ClearFaults()
	assert.NoError(t, s.CheckSchema(ctx))
}

func TestRecords_SortedAndIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.RunAtomic(ctx, func(tx ir.RecordTx) error {
		require.NoError(t, tx.PutCanonical(ctx, record("B", "1")))
		return tx.PutCanonical(ctx, record("A", "2", "1"))
	}))

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].DocID)
	assert.Equal(t, "B", recs[1].DocID)

	recs[0].Forks[0] = "mutated"
	again, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, again[0].Forks)
}
