package replica

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/feaforge/lrdb/lib/catalog"
	"github.com/feaforge/lrdb/lib/database"
	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/feaforge/lrdb/lib/schema"
	"github.com/feaforge/lrdb/lib/sessions"
	"go.uber.org/zap"
)

// --------------------------------------------------------------------------
// Source Abstraction
// --------------------------------------------------------------------------

// Source is the read side of the sync protocol. LocalSource implements
// it over a database on the same filesystem; rpc/client implements it
// over the wire.
type Source interface {
	Schema() (schema.Schema, error)
	Snapshot() (catalog.Snapshot, error)
	// FetchColumnFile streams the raw bytes of one column file of one
	// batch. The bytes must match the batch checksum exactly.
	FetchColumnFile(ctx context.Context, rec catalog.BatchRecord, column string) (io.ReadCloser, error)
}

// LocalSource adapts an open database into a sync Source.
type LocalSource struct {
	DB *database.Database
}

func (s LocalSource) Schema() (schema.Schema, error) { return s.DB.Schema(), nil }

func (s LocalSource) Snapshot() (catalog.Snapshot, error) { return s.DB.Snapshot() }

func (s LocalSource) FetchColumnFile(_ context.Context, rec catalog.BatchRecord, column string) (io.ReadCloser, error) {
	idx, ok := s.DB.Schema().ColumnIndex(column)
	if !ok {
		return nil, dberr.New(dberr.CodeUnknownColumn, "column %q not in schema", column)
	}
	f, err := os.Open(filepath.Join(s.DB.Path(), rec.Manifest[idx].Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dberr.New(dberr.CodeMissingData,
				"column file %s of batch %q is missing", rec.Manifest[idx].Path, rec.Name)
		}
		return nil, dberr.Wrap(dberr.CodeInternal, err, "open column file")
	}
	return f, nil
}

// --------------------------------------------------------------------------
// Divergence Detection
// --------------------------------------------------------------------------

// Divergence compares a follower catalog against a source catalog. It
// returns the length of the shared prefix and whether the histories
// diverge within it. A follower that is a (possibly complete) prefix of
// the source does not diverge; neither does a follower that is ahead of
// the source with a matching prefix.
func Divergence(follower, source catalog.Snapshot) (prefix int, diverged bool) {
	n := len(follower.Records)
	if len(source.Records) < n {
		n = len(source.Records)
	}
	for i := 0; i < n; i++ {
		if !follower.Records[i].SameAs(source.Records[i]) {
			return i, true
		}
	}
	return n, false
}

// --------------------------------------------------------------------------
// Sync
// --------------------------------------------------------------------------

// Report summarizes one sync run.
type Report struct {
	SourceBatches   int
	FollowerBatches int
	Transferred     int
	TransferredRows int64
}

// Options configures a sync run.
type Options struct {
	Logger *zap.SugaredLogger
}

// Sync brings the follower up to date with the source. Batches are
// transferred oldest first and committed one by one, so a sync that is
// interrupted mid-way has still made durable progress and can simply be
// run again. Running Sync against an already up-to-date follower is a
// no-op.
func Sync(ctx context.Context, follower *database.Database, src Source, cap sessions.Capability, opts *Options) (Report, error) {
	if !cap.CanWrite() {
		return Report{}, dberr.New(dberr.CodeUnauthorized, "write access required")
	}

	logger := zap.NewNop().Sugar()
	if opts != nil && opts.Logger != nil {
		logger = opts.Logger
	}
	logger = logger.Named("replica")

	srcSchema, err := src.Schema()
	if err != nil {
		return Report{}, err
	}
	if err := sameSchema(follower.Schema(), srcSchema); err != nil {
		return Report{}, err
	}

	fSnap, err := follower.Snapshot()
	if err != nil {
		return Report{}, err
	}
	sSnap, err := src.Snapshot()
	if err != nil {
		return Report{}, err
	}

	report := Report{
		SourceBatches:   len(sSnap.Records),
		FollowerBatches: len(fSnap.Records),
	}

	prefix, diverged := Divergence(fSnap, sSnap)
	if diverged {
		return report, dberr.New(dberr.CodeDivergentHistory,
			"histories diverge at sequence %d: follower has %q, source has %q",
			fSnap.Records[prefix].Sequence, fSnap.Records[prefix].Name, sSnap.Records[prefix].Name)
	}
	if prefix < len(fSnap.Records) {
		// Follower is ahead of the source with a matching prefix.
		logger.Infow("follower ahead of source, nothing to sync",
			"follower", report.FollowerBatches, "source", report.SourceBatches)
		return report, nil
	}

	for _, rec := range sSnap.Records[prefix:] {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := transferBatch(ctx, follower, src, rec, cap); err != nil {
			return report, err
		}
		report.Transferred++
		report.TransferredRows += rec.Rows
		logger.Infow("transferred batch",
			"batch", rec.Name, "sequence", rec.Sequence, "rows", rec.Rows)
	}
	return report, nil
}

// transferBatch fetches one batch into a staging directory and adopts
// it. AdoptBatch re-verifies the checksum before the commit, so a
// corrupted transfer never becomes visible.
func transferBatch(ctx context.Context, follower *database.Database, src Source, rec catalog.BatchRecord, cap sessions.Capability) error {
	dir, err := follower.NewStagingDir()
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	for _, col := range follower.Schema().Columns {
		if err := fetchColumn(ctx, src, rec, col.Name, dir); err != nil {
			return err
		}
	}

	_, err = follower.AdoptBatch(ctx, rec, dir, cap)
	return err
}

func fetchColumn(ctx context.Context, src Source, rec catalog.BatchRecord, column, dir string) error {
	r, err := src.FetchColumnFile(ctx, rec, column)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.Create(filepath.Join(dir, column+".bin"))
	if err != nil {
		return dberr.Wrap(dberr.CodeInternal, err, "create staged column file")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return dberr.Wrap(dberr.CodeInternal, err, "copy column file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return dberr.Wrap(dberr.CodeInternal, err, "sync staged column file")
	}
	return f.Close()
}

// sameSchema requires version and column-for-column equality.
func sameSchema(a, b schema.Schema) error {
	if a.Version != b.Version || len(a.Columns) != len(b.Columns) {
		return dberr.New(dberr.CodeSchemaMismatch,
			"follower schema v%d does not match source schema v%d", a.Version, b.Version)
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return dberr.New(dberr.CodeSchemaMismatch,
				"schema column %d differs: %q vs %q", i, a.Columns[i].Name, b.Columns[i].Name)
		}
	}
	return nil
}
