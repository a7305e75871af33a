package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/feaforge/lrdb/lib/dberr"
)

const (
	// ImageName is the file name of the persisted catalog image.
	ImageName = "catalog.json"
	// imageTmpName is the temporary image written before the atomic swap.
	imageTmpName = "catalog.json.tmp"

	// imageFormatVersion guards against reading images written by an
	// incompatible engine version.
	imageFormatVersion = 1
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ICatalogStore is the durable catalog of one database.
//
// Read returns an immutable snapshot. Commit appends exactly one record
// and fails unless rec.Sequence == LastSequence()+1 and the name is not
// live. Truncate removes every record with a sequence greater than upto.
// Callers must hold the database writer lock around mutations.
type ICatalogStore interface {
	Read() (Snapshot, error)
	Commit(rec BatchRecord) error
	Truncate(upto uint64) error
}

// --------------------------------------------------------------------------
// Persisted Image
// --------------------------------------------------------------------------

// image is the on-disk form of the catalog.
type image struct {
	FormatVersion int           `json:"format_version"`
	SchemaVersion int           `json:"schema_version"`
	Records       []BatchRecord `json:"records"`
}

// validate checks the structural invariants of a loaded image:
// contiguous, strictly increasing sequences starting at 1 and unique
// live names.
func (img *image) validate() error {
	names := make(map[string]struct{}, len(img.Records))
	for i, r := range img.Records {
		if r.Sequence != uint64(i)+1 {
			return dberr.New(dberr.CodeInternal,
				"catalog image invalid: record %d has sequence %d", i, r.Sequence)
		}
		if _, ok := names[r.Name]; ok {
			return dberr.New(dberr.CodeInternal,
				"catalog image invalid: duplicate batch name %q", r.Name)
		}
		names[r.Name] = struct{}{}
	}
	return nil
}

// --------------------------------------------------------------------------
// File Store Implementation
// --------------------------------------------------------------------------

type fileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore opens the catalog image inside dir, creating an empty
// catalog with the given schema version if none exists. A stale temporary
// image from an interrupted swap is discarded.
func NewFileStore(dir string, schemaVersion int) (ICatalogStore, error) {
	s := &fileStore{dir: dir}

	// A crash between writing the temp image and the rename leaves the
	// old image authoritative; the temp file is garbage.
	_ = os.Remove(filepath.Join(dir, imageTmpName))

	if _, err := os.Stat(s.imagePath()); os.IsNotExist(err) {
		if err := s.write(&image{
			FormatVersion: imageFormatVersion,
			SchemaVersion: schemaVersion,
		}); err != nil {
			return nil, err
		}
	}

	// Fail early on a damaged image.
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) imagePath() string {
	return filepath.Join(s.dir, ImageName)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see ICatalogStore)
// --------------------------------------------------------------------------

func (s *fileStore) Read() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, err := s.load()
	if err != nil {
		return Snapshot{}, err
	}
	records := make([]BatchRecord, len(img.Records))
	copy(records, img.Records)
	return Snapshot{SchemaVersion: img.SchemaVersion, Records: records}, nil
}

func (s *fileStore) Commit(rec BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := s.load()
	if err != nil {
		return err
	}

	var last uint64
	if n := len(img.Records); n > 0 {
		last = img.Records[n-1].Sequence
	}
	if rec.Sequence != last+1 {
		return dberr.New(dberr.CodeInternal,
			"commit out of order: got sequence %d, want %d", rec.Sequence, last+1)
	}
	for _, r := range img.Records {
		if r.Name == rec.Name {
			return dberr.New(dberr.CodeNameCollision,
				"batch %q already exists at sequence %d", rec.Name, r.Sequence)
		}
	}

	img.Records = append(img.Records, rec)
	return s.write(img)
}

func (s *fileStore) Truncate(upto uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := s.load()
	if err != nil {
		return err
	}

	kept := img.Records[:0]
	for _, r := range img.Records {
		if r.Sequence <= upto {
			kept = append(kept, r)
		}
	}
	img.Records = kept
	return s.write(img)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// load reads and validates the current image.
func (s *fileStore) load() (*image, error) {
	data, err := os.ReadFile(s.imagePath())
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "read catalog image")
	}
	var img image
	if err := json.Unmarshal(data, &img); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "decode catalog image")
	}
	if img.FormatVersion != imageFormatVersion {
		return nil, dberr.New(dberr.CodeInternal,
			"unsupported catalog format version %d", img.FormatVersion)
	}
	if err := img.validate(); err != nil {
		return nil, err
	}
	return &img, nil
}

// write persists a complete new image via copy-then-swap: the image is
// written and fsynced to a temporary file, then renamed over the previous
// image. The rename is the single point of publication.
func (s *fileStore) write(img *image) error {
	data, err := json.MarshalIndent(img, "", "  ")
	if err != nil {
		return dberr.Wrap(dberr.CodeInternal, err, "encode catalog image")
	}

	tmp := filepath.Join(s.dir, imageTmpName)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return dberr.Wrap(dberr.CodeInternal, err, "create temp catalog image")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return dberr.Wrap(dberr.CodeInternal, err, "write temp catalog image")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return dberr.Wrap(dberr.CodeInternal, err, "sync temp catalog image")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return dberr.Wrap(dberr.CodeInternal, err, "close temp catalog image")
	}

	if err := os.Rename(tmp, s.imagePath()); err != nil {
		os.Remove(tmp)
		return dberr.Wrap(dberr.CodeInternal, err, "swap catalog image")
	}

	// Sync the directory so the rename itself is durable.
	if d, err := os.Open(s.dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
