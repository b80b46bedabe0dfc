// Package boltstore is a RecordStore on an embedded bbolt database.
//
// Records live in the "docs" bucket keyed by DocID, holding the record's
// canonical JSON. Linked version ids are keys of the "backlinks" bucket.
// Both names can be changed with WithBuckets. The "meta" bucket records the
// layout version.
//
// RunAtomic maps onto one bbolt read-write transaction, and bbolt allows
// a single writer at a time, so units of work are serialized.
package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/docindex/internal/ir"
)

// Layout version written to the meta bucket.
const schemaVersion = 1

// Default bucket names.
const (
	DefaultDocBucket      = "docs"
	DefaultBacklinkBucket = "backlinks"
)

var (
	metaBucket = []byte("meta")

	keySchemaVersion = []byte("schema_version")

	// linkedMarker is the value stored for every backlink key.
	linkedMarker = []byte{1}
)

// Option configures Open.
type Option func(*options)

type options struct {
	docBucket      string
	backlinkBucket string
	timeout        time.Duration
	logger         *slog.Logger
}

// WithBuckets sets the document and backlink bucket names.
func WithBuckets(docBucket, backlinkBucket string) Option {
	return func(o *options) {
		o.docBucket = docBucket
		o.backlinkBucket = backlinkBucket
	}
}

// WithTimeout bounds how long Open waits for the file lock held by another
// process. Default: one second.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithLogger sets the store logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Store is a RecordStore backed by bbolt.
type Store struct {
	db        *bolt.DB
	docs      []byte
	backlinks []byte
	logger    *slog.Logger
}

// Open creates or opens the database file at path and makes sure the
// buckets exist. A new file is stamped with the current layout version.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{
		docBucket:      DefaultDocBucket,
		backlinkBucket: DefaultBacklinkBucket,
		timeout:        time.Second,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	buckets := map[string]bool{string(metaBucket): true}
	for _, name := range []string{o.docBucket, o.backlinkBucket} {
		if name == "" || buckets[name] {
			return nil, fmt.Errorf("invalid bucket name %q", name)
		}
		buckets[name] = true
	}
	s := &Store{
		docs:      []byte(o.docBucket),
		backlinks: []byte(o.backlinkBucket),
		logger:    o.logger,
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: o.timeout})
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{s.docs, s.backlinks} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		meta, err := tx.CreateBucket(metaBucket)
		if errors.Is(err, bolt.ErrBucketExists) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("create bucket %q: %w", metaBucket, err)
		}
		return meta.Put(keySchemaVersion, []byte(strconv.Itoa(schemaVersion)))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	s.db = db
	s.logger.Debug("bolt store opened",
		"path", path,
		"doc_bucket", o.docBucket,
		"backlink_bucket", o.backlinkBucket)
	return s, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying bbolt handle.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// CheckSchema verifies the buckets exist and the layout version matches.
// Failures wrap ir.ErrSchemaMismatch.
func (s *Store) CheckSchema(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{s.docs, s.backlinks, metaBucket} {
			if tx.Bucket(name) == nil {
				return fmt.Errorf("bucket %q missing: %w", name, ir.ErrSchemaMismatch)
			}
		}
		raw := tx.Bucket(metaBucket).Get(keySchemaVersion)
		version, err := strconv.Atoi(string(raw))
		if err != nil {
			return fmt.Errorf("schema version %q unreadable: %w", raw, ir.ErrSchemaMismatch)
		}
		if version != schemaVersion {
			return fmt.Errorf("schema version %d, want %d: %w", version, schemaVersion, ir.ErrSchemaMismatch)
		}
		return nil
	})
}

// RunAtomic runs fn inside one read-write transaction.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx ir.RecordTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{
			docs:      tx.Bucket(s.docs),
			backlinks: tx.Bucket(s.backlinks),
		})
	})
}

// DeleteAll empties the docs and backlinks buckets.
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{s.docs, s.backlinks} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return fmt.Errorf("delete bucket %q: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
}

// Records returns every canonical record ordered by DocID.
func (s *Store) Records(ctx context.Context) ([]ir.CanonicalRecord, error) {
	records := []ir.CanonicalRecord{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.docs).ForEach(func(k, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				return fmt.Errorf("record %q: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Backlinks returns every linked version id in key order.
func (s *Store) Backlinks(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.backlinks).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func decodeRecord(data []byte) (ir.CanonicalRecord, error) {
	var rec ir.CanonicalRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&rec); err != nil {
		return ir.CanonicalRecord{}, fmt.Errorf("decode record: %w", err)
	}
	if rec.Links == nil {
		rec.Links = []string{}
	}
	if len(rec.Fields) == 0 {
		rec.Fields = nil
	}
	rec.Forks = ir.NormalizeForks(rec.Forks)
	return rec, nil
}

// boltTx is the RecordTx for one bbolt read-write transaction.
type boltTx struct {
	docs      *bolt.Bucket
	backlinks *bolt.Bucket
}

func (t *boltTx) GetCanonical(ctx context.Context, docID string) (ir.CanonicalRecord, bool, error) {
	data := t.docs.Get([]byte(docID))
	if data == nil {
		return ir.CanonicalRecord{}, false, nil
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return ir.CanonicalRecord{}, false, fmt.Errorf("get canonical %q: %w", docID, err)
	}
	return rec, true, nil
}

func (t *boltTx) PutCanonical(ctx context.Context, rec ir.CanonicalRecord) error {
	data, err := ir.RecordJSON(rec)
	if err != nil {
		return fmt.Errorf("put canonical %q: %w", rec.DocID, err)
	}
	if err := t.docs.Put([]byte(rec.DocID), data); err != nil {
		return fmt.Errorf("put canonical %q: %w", rec.DocID, err)
	}
	return nil
}

func (t *boltTx) UpdateForks(ctx context.Context, docID string, forks []string) error {
	rec, found, err := t.GetCanonical(ctx, docID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("update forks %q: %w", docID, ir.ErrRecordNotFound)
	}
	rec.Forks = forks
	return t.PutCanonical(ctx, rec)
}

func (t *boltTx) IsLinked(ctx context.Context, versionID string) (bool, error) {
	return t.backlinks.Get([]byte(versionID)) != nil, nil
}

func (t *boltTx) MarkLinked(ctx context.Context, versionID string) error {
	if err := t.backlinks.Put([]byte(versionID), linkedMarker); err != nil {
		return fmt.Errorf("mark linked %q: %w", versionID, err)
	}
	return nil
}
