package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/feaforge/lrdb/lib/catalog"
	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/feaforge/lrdb/lib/lockmgr"
	"github.com/feaforge/lrdb/lib/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	schemaFileName     = "schema.json"
	batchesDirName     = "batches"
	stagingDirName     = "staging"
	attachmentsDirName = "attachments"
)

// --------------------------------------------------------------------------
// Database Handle
// --------------------------------------------------------------------------

// Database is an open handle to one load-results database.
type Database struct {
	path   string
	schema schema.Schema
	cat    catalog.ICatalogStore
	locks  lockmgr.ILockManager
	logger *zap.SugaredLogger
}

// Options configures a database handle.
type Options struct {
	// Logger receives operational log output. Defaults to zap.NewNop.
	Logger *zap.SugaredLogger
	// Locks is the writer lock manager shared by all handles of one
	// process. Defaults to a fresh lock manager.
	Locks lockmgr.ILockManager
}

func (o *Options) withDefaults() Options {
	opts := Options{}
	if o != nil {
		opts = *o
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Locks == nil {
		opts.Locks = lockmgr.NewLockManager()
	}
	return opts
}

// Create initializes a new, empty database at path and returns an open
// handle to it.
func Create(path string, sch schema.Schema, opts *Options) (*Database, error) {
	if err := sch.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(path, schemaFileName)); err == nil {
		return nil, dberr.New(dberr.CodeInternal, "database already exists at %s", path)
	}

	for _, dir := range []string{path, filepath.Join(path, batchesDirName),
		filepath.Join(path, stagingDirName), filepath.Join(path, attachmentsDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, dberr.Wrap(dberr.CodeInternal, err, "create database directory")
		}
	}

	data, err := json.MarshalIndent(sch, "", "  ")
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "encode schema")
	}
	if err := os.WriteFile(filepath.Join(path, schemaFileName), data, 0o644); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "write schema")
	}

	return Open(path, opts)
}

// Open opens an existing database. Leftover staging data from an
// interrupted ingestion is discarded.
func Open(path string, opts *Options) (*Database, error) {
	o := opts.withDefaults()

	data, err := os.ReadFile(filepath.Join(path, schemaFileName))
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "read schema")
	}
	var sch schema.Schema
	if err := json.Unmarshal(data, &sch); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "decode schema")
	}
	if err := sch.Validate(); err != nil {
		return nil, err
	}

	cat, err := catalog.NewFileStore(path, sch.Version)
	if err != nil {
		return nil, err
	}

	// Staged batches that never reached the commit step are garbage.
	staging := filepath.Join(path, stagingDirName)
	if entries, err := os.ReadDir(staging); err == nil {
		for _, e := range entries {
			_ = os.RemoveAll(filepath.Join(staging, e.Name()))
		}
	}
	_ = os.MkdirAll(staging, 0o755)

	db := &Database{
		path:   path,
		schema: sch,
		cat:    cat,
		locks:  o.Locks,
		logger: o.Logger.Named("database"),
	}
	db.logger.Infow("opened database", "path", path, "schemaVersion", sch.Version)
	return db, nil
}

// Close releases the handle. The handle must not be used afterwards.
func (db *Database) Close() error {
	db.logger.Infow("closed database", "path", db.path)
	return nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Path returns the database root directory.
func (db *Database) Path() string { return db.path }

// Schema returns the fixed column schema.
func (db *Database) Schema() schema.Schema { return db.schema }

// Snapshot returns an immutable catalog snapshot. All reads of a single
// operation must go through one snapshot (snapshot isolation).
func (db *Database) Snapshot() (catalog.Snapshot, error) {
	return db.cat.Read()
}

// ReadColumn reads the named column of one batch. Only the requested
// column's file is touched, which is what makes query column pruning
// effective.
func (db *Database) ReadColumn(rec catalog.BatchRecord, name string) ([]any, error) {
	idx, ok := db.schema.ColumnIndex(name)
	if !ok {
		return nil, dberr.New(dberr.CodeUnknownColumn, "column %q not in schema", name)
	}
	if idx >= len(rec.Manifest) {
		return nil, dberr.New(dberr.CodeMissingData,
			"batch %q has no manifest entry for column %q", rec.Name, name)
	}

	f, err := os.Open(filepath.Join(db.path, rec.Manifest[idx].Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dberr.New(dberr.CodeMissingData,
				"column file %s of batch %q is missing", rec.Manifest[idx].Path, rec.Name)
		}
		return nil, dberr.Wrap(dberr.CodeInternal, err, "open column file")
	}
	defer f.Close()

	values, err := schema.ReadColumn(f, db.schema.Columns[idx].Type, rec.Rows)
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeCorrupted, err,
			fmt.Sprintf("decode column %q of batch %q", name, rec.Name))
	}
	return values, nil
}

// NewStagingDir creates a fresh private directory under the database's
// staging area. Callers that stage data out of band (replication) fill
// it and hand it to AdoptBatch, which moves it into place atomically.
func (db *Database) NewStagingDir() (string, error) {
	dir := filepath.Join(db.path, stagingDirName, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", dberr.Wrap(dberr.CodeInternal, err, "create staging directory")
	}
	return dir, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// validateBatchName rejects names that cannot double as directory names.
func validateBatchName(name string) error {
	if name == "" {
		return dberr.New(dberr.CodeInternal, "batch name must not be empty")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return dberr.New(dberr.CodeInternal, "invalid batch name %q", name)
	}
	return nil
}

// batchDir returns the final directory of a committed batch.
func (db *Database) batchDir(name string) string {
	return filepath.Join(db.path, batchesDirName, name)
}
