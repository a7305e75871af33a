package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/feaforge/lrdb/lib/catalog"
	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/feaforge/lrdb/lib/schema"
	"github.com/feaforge/lrdb/lib/sessions"
	"github.com/google/uuid"
)

// cancelCheckInterval is how many rows are staged between context checks.
const cancelCheckInterval = 1024

// --------------------------------------------------------------------------
// Ingestion Pipeline
// --------------------------------------------------------------------------

// Ingest converts the rows into an immutable, checksummed batch and
// commits it to the catalog atomically. The rows are consumed exactly
// once. Staging and checksumming happen before the writer lock is taken,
// so readers are only blocked for the commit step itself.
func (db *Database) Ingest(ctx context.Context, name string, rows schema.RowReader, cap sessions.Capability) (catalog.BatchRecord, error) {
	if !cap.CanWrite() {
		return catalog.BatchRecord{}, dberr.New(dberr.CodeUnauthorized, "ingestion requires write access")
	}
	if err := validateBatchName(name); err != nil {
		return catalog.BatchRecord{}, err
	}

	// Early collision check. Cheap, but only advisory: the authoritative
	// check happens again under the writer lock.
	snap, err := db.cat.Read()
	if err != nil {
		return catalog.BatchRecord{}, err
	}
	if _, ok := snap.Find(name); ok {
		return catalog.BatchRecord{}, dberr.New(dberr.CodeNameCollision, "batch %q already exists", name)
	}

	started := time.Now()
	staged, err := db.stageBatch(ctx, name, rows)
	if err != nil {
		return catalog.BatchRecord{}, err
	}
	defer os.RemoveAll(staged.dir)

	db.logger.Infow("staged batch",
		"batch", name, "rows", staged.rows, "took", time.Since(started))

	return db.commitStaged(ctx, catalog.BatchRecord{
		Name:          name,
		Rows:          staged.rows,
		SchemaVersion: db.schema.Version,
		Manifest:      staged.manifest,
		Checksum:      staged.checksum,
	}, staged.dir, false)
}

// AdoptBatch commits a batch that was staged by the replication protocol
// under its original record. The staged directory must contain one column
// file per schema column; its content checksum is verified against the
// record before anything becomes visible. The record's sequence number
// must be the next in the catalog.
func (db *Database) AdoptBatch(ctx context.Context, rec catalog.BatchRecord, stagedDir string, cap sessions.Capability) (catalog.BatchRecord, error) {
	if !cap.CanWrite() {
		return catalog.BatchRecord{}, dberr.New(dberr.CodeUnauthorized, "replication requires write access")
	}
	if err := validateBatchName(rec.Name); err != nil {
		return catalog.BatchRecord{}, err
	}

	paths := make([]string, len(rec.Manifest))
	for i, entry := range rec.Manifest {
		paths[i] = filepath.Join(stagedDir, filepath.Base(entry.Path))
	}
	sum, err := catalog.ChecksumFiles(paths)
	if err != nil {
		return catalog.BatchRecord{}, dberr.Wrap(dberr.CodeMissingData, err, "checksum staged batch")
	}
	if sum != rec.Checksum {
		return catalog.BatchRecord{}, dberr.New(dberr.CodeCorrupted,
			"staged batch %q checksum mismatch: want %s, got %s", rec.Name, rec.Checksum, sum)
	}

	return db.commitStaged(ctx, rec, stagedDir, true)
}

// --------------------------------------------------------------------------
// Staging
// --------------------------------------------------------------------------

type stagedBatch struct {
	dir      string
	rows     int64
	manifest []catalog.ManifestEntry
	checksum string
}

// stageBatch writes the rows into per-column files under a private
// staging directory and computes the batch checksum over the final bytes.
// No lock is held during staging.
func (db *Database) stageBatch(ctx context.Context, name string, rows schema.RowReader) (*stagedBatch, error) {
	dir := filepath.Join(db.path, stagingDirName, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "create staging directory")
	}

	cleanup := func(err error) (*stagedBatch, error) {
		os.RemoveAll(dir)
		return nil, err
	}

	// One file and writer per schema column.
	files := make([]*os.File, len(db.schema.Columns))
	writers := make([]*schema.ColumnWriter, len(db.schema.Columns))
	for i, col := range db.schema.Columns {
		f, err := os.Create(filepath.Join(dir, col.Name+".bin"))
		if err != nil {
			return cleanup(dberr.Wrap(dberr.CodeInternal, err, "create column file"))
		}
		files[i] = f
		writers[i] = schema.NewColumnWriter(f, col.Type)
	}
	closeAll := func() {
		for _, f := range files {
			if f != nil {
				f.Close()
			}
		}
	}

	var count int64
	for {
		if count%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				closeAll()
				return cleanup(err)
			}
		}

		row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			closeAll()
			return cleanup(dberr.Wrap(dberr.CodeInternal, err, "read input rows"))
		}
		if err := db.schema.ValidateRow(row); err != nil {
			closeAll()
			return cleanup(err)
		}
		for i, v := range row {
			if err := writers[i].Append(v); err != nil {
				closeAll()
				return cleanup(dberr.Wrap(dberr.CodeInternal, err, "write column value"))
			}
		}
		count++
	}

	// Flush and sync everything so the checksum covers the final bytes.
	manifest := make([]catalog.ManifestEntry, len(files))
	stagedPaths := make([]string, len(files))
	for i, f := range files {
		if err := writers[i].Flush(); err != nil {
			closeAll()
			return cleanup(dberr.Wrap(dberr.CodeInternal, err, "flush column file"))
		}
		if err := f.Sync(); err != nil {
			closeAll()
			return cleanup(dberr.Wrap(dberr.CodeInternal, err, "sync column file"))
		}
		info, err := f.Stat()
		if err != nil {
			closeAll()
			return cleanup(dberr.Wrap(dberr.CodeInternal, err, "stat column file"))
		}
		if err := f.Close(); err != nil {
			return cleanup(dberr.Wrap(dberr.CodeInternal, err, "close column file"))
		}
		files[i] = nil

		colFile := db.schema.Columns[i].Name + ".bin"
		manifest[i] = catalog.ManifestEntry{
			Path:      filepath.Join(batchesDirName, name, colFile),
			SizeBytes: info.Size(),
		}
		stagedPaths[i] = filepath.Join(dir, colFile)
	}

	checksum, err := catalog.ChecksumFiles(stagedPaths)
	if err != nil {
		return cleanup(dberr.Wrap(dberr.CodeInternal, err, "checksum staged batch"))
	}

	return &stagedBatch{
		dir:      dir,
		rows:     count,
		manifest: manifest,
		checksum: checksum,
	}, nil
}

// --------------------------------------------------------------------------
// Commit
// --------------------------------------------------------------------------

// commitStaged takes the writer lock, moves the staged directory into its
// final place and appends the record to the catalog. The catalog swap is
// the single point of publication; a failure at any earlier point leaves
// the catalog exactly as it was. When fixedSequence is false the next
// free sequence number is assigned under the lock.
func (db *Database) commitStaged(ctx context.Context, rec catalog.BatchRecord, stagedDir string, fixedSequence bool) (catalog.BatchRecord, error) {
	owner, err := db.locks.Acquire(ctx, db.path)
	if err != nil {
		return catalog.BatchRecord{}, err
	}
	defer db.locks.Release(db.path, owner)

	// A cancellation observed after staging must still leave the catalog
	// unchanged.
	if err := ctx.Err(); err != nil {
		return catalog.BatchRecord{}, err
	}

	snap, err := db.cat.Read()
	if err != nil {
		return catalog.BatchRecord{}, err
	}
	if _, ok := snap.Find(rec.Name); ok {
		return catalog.BatchRecord{}, dberr.New(dberr.CodeNameCollision, "batch %q already exists", rec.Name)
	}
	if !fixedSequence {
		rec.Sequence = snap.LastSequence() + 1
	}
	if rec.CommittedAt.IsZero() {
		rec.CommittedAt = time.Now().UTC()
	}

	// A directory with this name can only be an orphan of a rolled-back
	// batch: the catalog does not reference it, so it is garbage.
	dir := db.batchDir(rec.Name)
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return catalog.BatchRecord{}, dberr.Wrap(dberr.CodeInternal, err, "remove orphaned batch directory")
		}
	}
	if err := os.Rename(stagedDir, dir); err != nil {
		return catalog.BatchRecord{}, dberr.Wrap(dberr.CodeInternal, err, "move staged batch")
	}

	if err := db.cat.Commit(rec); err != nil {
		// The batch directory is unreferenced without its record.
		os.RemoveAll(dir)
		return catalog.BatchRecord{}, err
	}

	db.logger.Infow("committed batch",
		"batch", rec.Name, "sequence", rec.Sequence, "rows", rec.Rows, "checksum", rec.Checksum)
	return rec, nil
}
