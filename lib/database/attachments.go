package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/feaforge/lrdb/lib/sessions"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Attachments
// --------------------------------------------------------------------------

// Attachments are opaque auxiliary files (geometry decks, load case
// definitions, reports) stored alongside the batches. They are not part
// of the queryable schema and independent of the batch sequence, but
// their writers share the writer lock's commit discipline: content is
// fully staged, then published with a rename.

// PutAttachment stores the content of r under the given name, replacing
// any previous attachment with that name.
func (db *Database) PutAttachment(ctx context.Context, name string, r io.Reader, cap sessions.Capability) error {
	if !cap.CanWrite() {
		return dberr.New(dberr.CodeUnauthorized, "storing attachments requires write access")
	}
	if err := validateBatchName(name); err != nil {
		return err
	}

	// Stage outside the lock, like batch ingestion.
	tmp := filepath.Join(db.path, stagingDirName, "attachment-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return dberr.Wrap(dberr.CodeInternal, err, "create staged attachment")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return dberr.Wrap(dberr.CodeInternal, err, "write staged attachment")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return dberr.Wrap(dberr.CodeInternal, err, "sync staged attachment")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return dberr.Wrap(dberr.CodeInternal, err, "close staged attachment")
	}

	owner, err := db.locks.Acquire(ctx, db.path)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	defer db.locks.Release(db.path, owner)

	if err := os.Rename(tmp, filepath.Join(db.path, attachmentsDirName, name)); err != nil {
		os.Remove(tmp)
		return dberr.Wrap(dberr.CodeInternal, err, "publish attachment")
	}
	db.logger.Infow("stored attachment", "name", name)
	return nil
}

// ListAttachments returns the attachment names in lexical order.
func (db *Database) ListAttachments() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(db.path, attachmentsDirName))
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "list attachments")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// OpenAttachment opens an attachment for reading.
func (db *Database) OpenAttachment(name string) (io.ReadCloser, error) {
	if err := validateBatchName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(db.path, attachmentsDirName, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dberr.New(dberr.CodeMissingData, "no attachment named %q", name)
		}
		return nil, dberr.Wrap(dberr.CodeInternal, err, "open attachment")
	}
	return f, nil
}

// RemoveAttachment deletes an attachment.
func (db *Database) RemoveAttachment(ctx context.Context, name string, cap sessions.Capability) error {
	if !cap.CanWrite() {
		return dberr.New(dberr.CodeUnauthorized, "removing attachments requires write access")
	}
	if err := validateBatchName(name); err != nil {
		return err
	}

	owner, err := db.locks.Acquire(ctx, db.path)
	if err != nil {
		return err
	}
	defer db.locks.Release(db.path, owner)

	if err := os.Remove(filepath.Join(db.path, attachmentsDirName, name)); err != nil {
		if os.IsNotExist(err) {
			return dberr.New(dberr.CodeMissingData, "no attachment named %q", name)
		}
		return dberr.Wrap(dberr.CodeInternal, err, "remove attachment")
	}
	db.logger.Infow("removed attachment", "name", name)
	return nil
}
