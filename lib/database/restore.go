package database

import (
	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/feaforge/lrdb/lib/sessions"
)

// --------------------------------------------------------------------------
// Rollback Engine
// --------------------------------------------------------------------------

// Restore truncates the catalog to the named batch inclusive, discarding
// every later record. The operation is irreversible: the catalog retains
// no reference to the truncated batches, and their column files become
// garbage eligible for out-of-band collection.
//
// Restore is an explicit operator action and must not queue silently
// behind a long-running ingestion, so it fails fast with WriterBusy
// instead of blocking on the writer lock.
func (db *Database) Restore(checkpointName string, cap sessions.Capability) error {
	if !cap.CanWrite() {
		return dberr.New(dberr.CodeUnauthorized, "restore requires write access")
	}

	ok, owner, err := db.locks.TryAcquire(db.path)
	if err != nil {
		return err
	}
	if !ok {
		return dberr.New(dberr.CodeWriterBusy, "a writer holds the lock on %s", db.path)
	}
	defer db.locks.Release(db.path, owner)

	snap, err := db.cat.Read()
	if err != nil {
		return err
	}
	rec, found := snap.Find(checkpointName)
	if !found {
		return dberr.New(dberr.CodeCheckpointNotFound, "no batch named %q", checkpointName)
	}

	if err := db.cat.Truncate(rec.Sequence); err != nil {
		return err
	}

	db.logger.Infow("restored database",
		"checkpoint", checkpointName, "sequence", rec.Sequence,
		"discarded", len(snap.Records)-int(rec.Sequence))
	return nil
}
