package replica

import (
	"context"
	"io"
	"testing"

	"github.com/feaforge/lrdb/lib/catalog"
	"github.com/feaforge/lrdb/lib/database"
	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/feaforge/lrdb/lib/schema"
	"github.com/feaforge/lrdb/lib/sessions"
)

func testSchema() schema.Schema {
	return schema.Schema{
		Version: 1,
		Columns: []schema.Column{
			{Name: "node", Type: schema.TypeInt64},
			{Name: "stress", Type: schema.TypeFloat64},
		},
	}
}

func newDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.Create(t.TempDir(), testSchema(), nil)
	if err != nil {
		t.Fatalf("create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ingest(t *testing.T, db *database.Database, name string, offset int64) catalog.BatchRecord {
	t.Helper()
	rows := []schema.Row{
		{offset + 1, float64(offset) + 1.5},
		{offset + 2, float64(offset) + 2.5},
	}
	rec, err := db.Ingest(context.Background(), name, schema.NewSliceReader(rows), sessions.CapAdmin)
	if err != nil {
		t.Fatalf("ingest %s: %v", name, err)
	}
	return rec
}

func records(t *testing.T, db *database.Database) []catalog.BatchRecord {
	t.Helper()
	snap, err := db.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap.Records
}

// --------------------------------------------------------------------------
// Divergence
// --------------------------------------------------------------------------

func TestDivergence(t *testing.T) {
	source := newDB(t)
	ingest(t, source, "a", 0)
	ingest(t, source, "b", 10)

	follower := newDB(t)

	sSnap, _ := source.Snapshot()
	fSnap, _ := follower.Snapshot()

	// Empty follower: zero-length prefix, no divergence.
	prefix, diverged := Divergence(fSnap, sSnap)
	if prefix != 0 || diverged {
		t.Errorf("empty follower: prefix=%d diverged=%v", prefix, diverged)
	}

	// Identical catalogs.
	prefix, diverged = Divergence(sSnap, sSnap)
	if prefix != 2 || diverged {
		t.Errorf("identical catalogs: prefix=%d diverged=%v", prefix, diverged)
	}

	// Different batch at the same sequence.
	ingest(t, follower, "a", 0)
	ingest(t, follower, "other", 99)
	fSnap, _ = follower.Snapshot()
	prefix, diverged = Divergence(fSnap, sSnap)
	if prefix != 1 || !diverged {
		t.Errorf("conflicting histories: prefix=%d diverged=%v", prefix, diverged)
	}
}

// --------------------------------------------------------------------------
// Sync
// --------------------------------------------------------------------------

func TestSyncFromScratch(t *testing.T) {
	source := newDB(t)
	ingest(t, source, "a", 0)
	ingest(t, source, "b", 10)
	ingest(t, source, "c", 20)

	follower := newDB(t)

	report, err := Sync(context.Background(), follower, LocalSource{DB: source}, sessions.CapAdmin, nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Transferred != 3 || report.TransferredRows != 6 {
		t.Errorf("unexpected report: %+v", report)
	}

	sRecs, fRecs := records(t, source), records(t, follower)
	if len(fRecs) != len(sRecs) {
		t.Fatalf("follower has %d batches, source has %d", len(fRecs), len(sRecs))
	}
	for i := range sRecs {
		if !fRecs[i].SameAs(sRecs[i]) {
			t.Errorf("batch %d differs after sync", i)
		}
	}

	// The transferred data is byte-identical and readable.
	values, err := follower.ReadColumn(fRecs[1], "stress")
	if err != nil {
		t.Fatalf("read synced column: %v", err)
	}
	if values[0] != 11.5 {
		t.Errorf("synced data wrong: %v", values)
	}
}

func TestSyncIsIncrementalAndIdempotent(t *testing.T) {
	source := newDB(t)
	ingest(t, source, "a", 0)

	follower := newDB(t)

	if _, err := Sync(context.Background(), follower, LocalSource{DB: source}, sessions.CapAdmin, nil); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// Nothing new: a second run transfers nothing.
	report, err := Sync(context.Background(), follower, LocalSource{DB: source}, sessions.CapAdmin, nil)
	if err != nil {
		t.Fatalf("idempotent sync: %v", err)
	}
	if report.Transferred != 0 {
		t.Errorf("expected no transfers, got %d", report.Transferred)
	}

	// New source batches: only the delta moves.
	ingest(t, source, "b", 10)
	ingest(t, source, "c", 20)
	report, err = Sync(context.Background(), follower, LocalSource{DB: source}, sessions.CapAdmin, nil)
	if err != nil {
		t.Fatalf("incremental sync: %v", err)
	}
	if report.Transferred != 2 {
		t.Errorf("expected 2 transfers, got %d", report.Transferred)
	}
}

func TestSyncDivergentHistoriesRefused(t *testing.T) {
	source := newDB(t)
	ingest(t, source, "a", 0)
	ingest(t, source, "b", 10)

	// A different batch at sequence 1 means the histories diverge; the
	// sync must refuse instead of merging.
	followerOnly := newDB(t)
	ingest(t, followerOnly, "x", 50)

	_, err := Sync(context.Background(), followerOnly, LocalSource{DB: source}, sessions.CapAdmin, nil)
	if !dberr.Is(err, dberr.CodeDivergentHistory) {
		t.Fatalf("expected DivergentHistory, got %v", err)
	}

	// The refused follower is left exactly as it was.
	recs := records(t, followerOnly)
	if len(recs) != 1 || recs[0].Name != "x" {
		t.Errorf("divergent sync modified the follower: %+v", recs)
	}
}

func TestSyncFollowerAheadIsNoOp(t *testing.T) {
	source := newDB(t)
	rec := ingest(t, source, "a", 0)

	// Build a follower that shares the prefix and has one more batch.
	follower := newDB(t)
	if _, err := Sync(context.Background(), follower, LocalSource{DB: source}, sessions.CapAdmin, nil); err != nil {
		t.Fatalf("seed follower: %v", err)
	}
	ingest(t, follower, "local-extra", 90)

	report, err := Sync(context.Background(), follower, LocalSource{DB: source}, sessions.CapAdmin, nil)
	if err != nil {
		t.Fatalf("sync with follower ahead: %v", err)
	}
	if report.Transferred != 0 {
		t.Errorf("expected no transfers, got %d", report.Transferred)
	}

	recs := records(t, follower)
	if len(recs) != 2 || !recs[0].SameAs(rec) {
		t.Errorf("follower catalog changed: %+v", recs)
	}
}

func TestSyncSchemaMismatchRefused(t *testing.T) {
	source := newDB(t)
	ingest(t, source, "a", 0)

	otherSchema := schema.Schema{
		Version: 2,
		Columns: []schema.Column{{Name: "node", Type: schema.TypeInt64}},
	}
	follower, err := database.Create(t.TempDir(), otherSchema, nil)
	if err != nil {
		t.Fatalf("create follower: %v", err)
	}
	defer follower.Close()

	_, err = Sync(context.Background(), follower, LocalSource{DB: source}, sessions.CapAdmin, nil)
	if !dberr.Is(err, dberr.CodeSchemaMismatch) {
		t.Errorf("expected SchemaMismatch, got %v", err)
	}
}

func TestSyncRequiresWriteAccess(t *testing.T) {
	source := newDB(t)
	ingest(t, source, "a", 0)

	follower := newDB(t)
	src := &countingSource{LocalSource: LocalSource{DB: source}}

	_, err := Sync(context.Background(), follower, src, sessions.CapRead, nil)
	if !dberr.Is(err, dberr.CodeUnauthorized) {
		t.Errorf("expected Unauthorized, got %v", err)
	}

	// The refusal happens before any source read or follower write.
	if src.snapshots != 0 || src.fetches != 0 {
		t.Errorf("refused sync read the source: %d snapshots, %d fetches", src.snapshots, src.fetches)
	}
	if len(records(t, follower)) != 0 {
		t.Errorf("refused sync modified the follower")
	}
}

// countingSource records how often the source is read.
type countingSource struct {
	LocalSource
	snapshots int
	fetches   int
}

func (c *countingSource) Snapshot() (catalog.Snapshot, error) {
	c.snapshots++
	return c.LocalSource.Snapshot()
}

func (c *countingSource) FetchColumnFile(ctx context.Context, rec catalog.BatchRecord, column string) (io.ReadCloser, error) {
	c.fetches++
	return c.LocalSource.FetchColumnFile(ctx, rec, column)
}

func TestSyncRestartable(t *testing.T) {
	source := newDB(t)
	ingest(t, source, "a", 0)
	ingest(t, source, "b", 10)

	follower := newDB(t)

	// Simulate an interrupted run by syncing only the first batch via a
	// source view truncated to one record.
	partial := partialSource{LocalSource{DB: source}, 1}
	if _, err := Sync(context.Background(), follower, partial, sessions.CapAdmin, nil); err != nil {
		t.Fatalf("partial sync: %v", err)
	}
	if len(records(t, follower)) != 1 {
		t.Fatalf("expected 1 batch after partial sync")
	}

	// A rerun against the full source picks up where the last run
	// stopped.
	report, err := Sync(context.Background(), follower, LocalSource{DB: source}, sessions.CapAdmin, nil)
	if err != nil {
		t.Fatalf("resumed sync: %v", err)
	}
	if report.Transferred != 1 || len(records(t, follower)) != 2 {
		t.Errorf("resumed sync incomplete: %+v", report)
	}
}

// partialSource exposes only the first n catalog records of a source.
type partialSource struct {
	LocalSource
	n int
}

func (p partialSource) Snapshot() (catalog.Snapshot, error) {
	snap, err := p.LocalSource.Snapshot()
	if err != nil {
		return catalog.Snapshot{}, err
	}
	snap.Records = snap.Records[:p.n]
	return snap, nil
}
