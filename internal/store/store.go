package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"text/template"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/docindex/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

var schemaTemplate = template.Must(template.New("schema").Parse(schemaSQL))

// Schema version tracking:
// 1 - docs and backlinks tables with payload columns
const currentSchemaVersion = 1

// Default table names.
const (
	DefaultDocTable      = "docs"
	DefaultBacklinkTable = "backlinks"
)

// docColumns are the columns CheckSchema requires on the document table.
var docColumns = []string{"docId", "versionId", "links", "forks", "updatedAt", "deleted", "fields"}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Option configures Open.
type Option func(*options)

type options struct {
	docTable      string
	backlinkTable string
	createSchema  bool
	logger        *slog.Logger
}

// WithTables sets the document and backlink table names. Names must be
// plain SQL identifiers.
func WithTables(docTable, backlinkTable string) Option {
	return func(o *options) {
		o.docTable = docTable
		o.backlinkTable = backlinkTable
	}
}

// WithoutSchemaCreation opens an existing database as is. Tables are not
// created; CheckSchema reports anything missing.
func WithoutSchemaCreation() Option {
	return func(o *options) {
		o.createSchema = false
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

// Store is a RecordStore backed by a SQLite database.
type Store struct {
	db            *sql.DB
	docTable      string
	backlinkTable string
	logger        *slog.Logger
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - a single connection, so writers are serialized in-process
//
// Unless WithoutSchemaCreation is given, missing tables are created. Opening
// is idempotent.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{
		docTable:      DefaultDocTable,
		backlinkTable: DefaultBacklinkTable,
		createSchema:  true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	for _, name := range []string{o.docTable, o.backlinkTable} {
		if !identifierPattern.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	if strings.EqualFold(o.docTable, o.backlinkTable) {
		return nil, fmt.Errorf("document and backlink tables must differ, both are %q", o.docTable)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{
		db:            db,
		docTable:      o.docTable,
		backlinkTable: o.backlinkTable,
		logger:        o.logger,
	}

	if o.createSchema {
		if err := s.applySchema(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	s.logger.Debug("store opened",
		"path", path,
		"doc_table", s.docTable,
		"backlink_table", s.backlinkTable)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the tables if they don't exist and records the
// schema version. It refuses databases written by a newer schema.
func (s *Store) applySchema() error {
	var ddl strings.Builder
	err := schemaTemplate.Execute(&ddl, struct{ DocTable, BacklinkTable string }{
		DocTable:      s.docTable,
		BacklinkTable: s.backlinkTable,
	})
	if err != nil {
		return fmt.Errorf("render schema: %w", err)
	}

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d",
			version, currentSchemaVersion)
	}

	if _, err := s.db.Exec(ddl.String()); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// CheckSchema verifies both tables exist with the columns the engine
// reads and writes. Failures wrap ir.ErrSchemaMismatch.
func (s *Store) CheckSchema(ctx context.Context) error {
	if err := s.requireColumns(ctx, s.docTable, docColumns); err != nil {
		return err
	}
	return s.requireColumns(ctx, s.backlinkTable, []string{"versionId"})
}

func (s *Store) requireColumns(ctx context.Context, table string, required []string) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspect table %q: %w", table, err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scan table_info(%s): %w", table, err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate table_info(%s): %w", table, err)
	}

	if len(present) == 0 {
		return fmt.Errorf("table %q does not exist: %w", table, ir.ErrSchemaMismatch)
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("table %q is missing columns %s: %w",
			table, strings.Join(missing, ", "), ir.ErrSchemaMismatch)
	}
	return nil
}

// RunAtomic runs fn inside one SQLite transaction. The transaction commits
// only if fn returns nil.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx ir.RecordTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if err := fn(&sqlTx{tx: tx, store: s}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
