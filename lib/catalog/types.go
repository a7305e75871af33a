package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"
)

// --------------------------------------------------------------------------
// Batch Records
// --------------------------------------------------------------------------

// ManifestEntry references one column file of a batch. Paths are relative
// to the database root.
type ManifestEntry struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// BatchRecord is one committed unit of ingested data. Once committed, a
// record's manifest and checksum never change.
type BatchRecord struct {
	Name          string          `json:"name"`
	Sequence      uint64          `json:"sequence"`
	CommittedAt   time.Time       `json:"committed_at"`
	Rows          int64           `json:"rows"`
	SchemaVersion int             `json:"schema_version"`
	Manifest      []ManifestEntry `json:"manifest"`
	Checksum      string          `json:"checksum"`
}

// SameAs reports whether two records describe the same batch for
// replication purposes: equal sequence, name and checksum.
func (r BatchRecord) SameAs(other BatchRecord) bool {
	return r.Sequence == other.Sequence &&
		r.Name == other.Name &&
		r.Checksum == other.Checksum
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

// Snapshot is an immutable view of the catalog at one point in time.
type Snapshot struct {
	SchemaVersion int           `json:"schema_version"`
	Records       []BatchRecord `json:"records"`
}

// LastSequence returns the sequence number of the newest record, or 0 for
// an empty catalog.
func (s Snapshot) LastSequence() uint64 {
	if len(s.Records) == 0 {
		return 0
	}
	return s.Records[len(s.Records)-1].Sequence
}

// Find returns the live record with the given batch name.
func (s Snapshot) Find(name string) (BatchRecord, bool) {
	for _, r := range s.Records {
		if r.Name == name {
			return r, true
		}
	}
	return BatchRecord{}, false
}

// --------------------------------------------------------------------------
// Checksums
// --------------------------------------------------------------------------

// ChecksumFiles computes the hex sha256 digest over the concatenated
// contents of the given files, in order. This is the batch content
// checksum stored in each record.
func ChecksumFiles(paths []string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
