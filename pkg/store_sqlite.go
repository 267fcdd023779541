package addonsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS addons (
	name TEXT PRIMARY KEY,
	uuid TEXT NOT NULL,
	version TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	addon TEXT NOT NULL REFERENCES addons(name) ON DELETE CASCADE,
	absolute_path TEXT NOT NULL,
	relative_path TEXT NOT NULL,
	created_secs INTEGER NOT NULL,
	created_nanos INTEGER NOT NULL,
	size INTEGER NOT NULL,
	hash TEXT NOT NULL,
	modified_secs INTEGER,
	modified_nanos INTEGER,
	PRIMARY KEY (addon, absolute_path)
);
`

// SQLiteStore keeps the cache in a SQLite database. Save replaces every
// row inside one transaction, so the database always holds exactly one
// completed run.
type SQLiteStore struct {
	path string
}

// NewSQLiteStore creates a store backed by the database file at path
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Location returns the database path
func (s *SQLiteStore) Location() string {
	return s.path
}

func (s *SQLiteStore) open(ctx context.Context) (*sql.DB, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000&_foreign_keys=on", s.path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database %s: %w", s.path, err)
	}
	// one connection keeps the transaction and schema on the same handle
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to cache database %s: %w", s.path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema in %s: %w", s.path, err)
	}
	return db, nil
}

// Load reads all addons and files. A missing database yields an empty cache
// and is not created.
func (s *SQLiteStore) Load() (*Cache, error) {
	defer VerboseEnter()()

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		VerboseLog(1, "No cache at %s, starting empty", s.path)
		return NewCache(), nil
	}

	ctx := context.Background()
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	cache := NewCache()

	rows, err := db.QueryContext(ctx, `SELECT name, uuid, version FROM addons`)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCache, s.path, err)
	}
	for rows.Next() {
		addon := &AddonRecord{Files: make(map[string]*FileRecord)}
		if err := rows.Scan(&addon.Name, &addon.UUID, &addon.Version); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCache, s.path, err)
		}
		cache.Addons[addon.Name] = addon
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read addons from %s: %w", s.path, err)
	}
	rows.Close()

	rows, err = db.QueryContext(ctx, `SELECT addon, absolute_path, relative_path, created_secs, created_nanos,
		size, hash, modified_secs, modified_nanos FROM files`)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCache, s.path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			addonName     string
			rec           FileRecord
			createdSecs   int64
			createdNanos  int64
			size          int64
			modifiedSecs  sql.NullInt64
			modifiedNanos sql.NullInt64
		)
		if err := rows.Scan(&addonName, &rec.AbsolutePath, &rec.RelativePath, &createdSecs, &createdNanos,
			&size, &rec.Hash, &modifiedSecs, &modifiedNanos); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCache, s.path, err)
		}
		addon, ok := cache.Addons[addonName]
		if !ok {
			return nil, fmt.Errorf("%w: %s: file %s references unknown addon %s", ErrMalformedCache, s.path, rec.AbsolutePath, addonName)
		}
		rec.Created = Timestamp{Secs: uint64(createdSecs), Nanos: uint32(createdNanos)}
		rec.Size = uint64(size)
		if modifiedSecs.Valid {
			rec.Modified = &Timestamp{Secs: uint64(modifiedSecs.Int64), Nanos: uint32(modifiedNanos.Int64)}
		}
		addon.Files[rec.AbsolutePath] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read files from %s: %w", s.path, err)
	}

	if err := validateCache(cache); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCache, s.path, err)
	}

	VerboseLog(1, "Loaded cache %s: %d addons, %d files", s.path, len(cache.Addons), cache.FileCount())
	return cache, nil
}

// Save replaces the stored cache in a single transaction
func (s *SQLiteStore) Save(cache *Cache) (err error) {
	defer VerboseEnter()()

	ctx := context.Background()
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cache transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return fmt.Errorf("failed to clear files: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM addons`); err != nil {
		return fmt.Errorf("failed to clear addons: %w", err)
	}

	addonStmt, err := tx.PrepareContext(ctx, `INSERT INTO addons (name, uuid, version) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare addon insert: %w", err)
	}
	defer addonStmt.Close()

	fileStmt, err := tx.PrepareContext(ctx, `INSERT INTO files (addon, absolute_path, relative_path,
		created_secs, created_nanos, size, hash, modified_secs, modified_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer fileStmt.Close()

	for _, name := range cache.SortedNames() {
		addon := cache.Addons[name]
		if _, err = addonStmt.ExecContext(ctx, addon.Name, addon.UUID, addon.Version); err != nil {
			return fmt.Errorf("failed to insert addon %s: %w", name, err)
		}
		for _, path := range addon.SortedPaths() {
			rec := addon.Files[path]
			var modSecs, modNanos sql.NullInt64
			if rec.Modified != nil {
				modSecs = sql.NullInt64{Int64: int64(rec.Modified.Secs), Valid: true}
				modNanos = sql.NullInt64{Int64: int64(rec.Modified.Nanos), Valid: true}
			}
			if _, err = fileStmt.ExecContext(ctx, addon.Name, rec.AbsolutePath, rec.RelativePath,
				int64(rec.Created.Secs), int64(rec.Created.Nanos), int64(rec.Size), rec.Hash,
				modSecs, modNanos); err != nil {
				return fmt.Errorf("failed to insert file %s: %w", path, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache: %w", err)
	}

	VerboseLog(1, "Saved cache %s: %d addons, %d files", s.path, len(cache.Addons), cache.FileCount())
	return nil
}
