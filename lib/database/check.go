package database

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/feaforge/lrdb/lib/catalog"
	"golang.org/x/sync/errgroup"
)

// --------------------------------------------------------------------------
// Integrity Checker
// --------------------------------------------------------------------------

// CorruptedBatch is a batch whose recomputed checksum disagrees with the
// catalog.
type CorruptedBatch struct {
	Name     string
	Sequence uint64
	Want     string
	Got      string
}

// MissingEntry is a manifest entry whose column file is absent.
type MissingEntry struct {
	Batch    string
	Sequence uint64
	Path     string
}

// CheckReport is the structured result of an integrity check. Corruption
// is an expected operational condition, not an error.
type CheckReport struct {
	Batches   int
	Corrupted []CorruptedBatch
	Missing   []MissingEntry
}

// OK reports whether the check found no problems.
func (r CheckReport) OK() bool {
	return len(r.Corrupted) == 0 && len(r.Missing) == 0
}

// batchFinding is the per-batch check result, collected in catalog order.
type batchFinding struct {
	corrupted *CorruptedBatch
	missing   []MissingEntry
}

// Check recomputes the checksum of every live batch against the catalog.
// It takes no lock: it operates on an immutable snapshot and batch data
// is never mutated in place. Batches are hashed in parallel; the report
// lists findings in catalog order. O(total batch bytes) by construction.
func (db *Database) Check(ctx context.Context) (CheckReport, error) {
	snap, err := db.cat.Read()
	if err != nil {
		return CheckReport{}, err
	}

	findings := make([]batchFinding, len(snap.Records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, rec := range snap.Records {
		i, rec := i, rec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			findings[i] = db.checkBatch(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CheckReport{}, err
	}

	report := CheckReport{Batches: len(snap.Records)}
	for _, f := range findings {
		report.Missing = append(report.Missing, f.missing...)
		if f.corrupted != nil {
			report.Corrupted = append(report.Corrupted, *f.corrupted)
		}
	}

	if !report.OK() {
		db.logger.Warnw("integrity check found problems",
			"batches", report.Batches,
			"corrupted", len(report.Corrupted), "missing", len(report.Missing))
	}
	return report, nil
}

// checkBatch verifies one batch. A batch with missing files is reported
// as missing only; its checksum cannot meaningfully be recomputed.
func (db *Database) checkBatch(rec catalog.BatchRecord) batchFinding {
	var f batchFinding

	paths := make([]string, len(rec.Manifest))
	for i, entry := range rec.Manifest {
		paths[i] = filepath.Join(db.path, entry.Path)
		if _, err := os.Stat(paths[i]); err != nil {
			f.missing = append(f.missing, MissingEntry{
				Batch:    rec.Name,
				Sequence: rec.Sequence,
				Path:     entry.Path,
			})
		}
	}
	if len(f.missing) > 0 {
		return f
	}

	sum, err := catalog.ChecksumFiles(paths)
	if err != nil || sum != rec.Checksum {
		got := sum
		if err != nil {
			got = "unreadable: " + err.Error()
		}
		f.corrupted = &CorruptedBatch{
			Name:     rec.Name,
			Sequence: rec.Sequence,
			Want:     rec.Checksum,
			Got:      got,
		}
	}
	return f
}
