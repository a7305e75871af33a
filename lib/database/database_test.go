package database

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/feaforge/lrdb/lib/lockmgr"
	"github.com/feaforge/lrdb/lib/schema"
	"github.com/feaforge/lrdb/lib/sessions"
)

func testSchema() schema.Schema {
	return schema.Schema{
		Version: 1,
		Columns: []schema.Column{
			{Name: "node", Type: schema.TypeInt64},
			{Name: "stress", Type: schema.TypeFloat64},
			{Name: "case", Type: schema.TypeString},
		},
	}
}

func testRows(offset int64) []schema.Row {
	return []schema.Row{
		{offset + 1, 10.5, "static"},
		{offset + 2, 20.5, "static"},
		{offset + 3, 30.5, "dynamic"},
	}
}

func createTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Create(t.TempDir(), testSchema(), nil)
	if err != nil {
		t.Fatalf("create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ingest(t *testing.T, db *Database, name string, rows []schema.Row) {
	t.Helper()
	if _, err := db.Ingest(context.Background(), name, schema.NewSliceReader(rows), sessions.CapAdmin); err != nil {
		t.Fatalf("ingest %s: %v", name, err)
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestCreateAndReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := Create(dir, testSchema(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ingest(t, db, "run-001", testRows(0))
	db.Close()

	// Creating over an existing database must fail.
	if _, err := Create(dir, testSchema(), nil); err == nil {
		t.Errorf("expected create over an existing database to fail")
	}

	reopened, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	snap, err := reopened.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Records) != 1 || snap.Records[0].Name != "run-001" {
		t.Fatalf("catalog lost across reopen")
	}
}

func TestCreateRejectsInvalidSchema(t *testing.T) {
	_, err := Create(t.TempDir(), schema.Schema{Version: 1}, nil)
	if !dberr.Is(err, dberr.CodeSchemaMismatch) {
		t.Errorf("expected SchemaMismatch for empty schema, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Ingestion
// --------------------------------------------------------------------------

func TestIngestAndReadBack(t *testing.T) {
	db := createTestDB(t)

	rec, err := db.Ingest(context.Background(), "run-001", schema.NewSliceReader(testRows(0)), sessions.CapAdmin)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if rec.Sequence != 1 || rec.Rows != 3 {
		t.Fatalf("unexpected record: seq=%d rows=%d", rec.Sequence, rec.Rows)
	}
	if rec.Checksum == "" || len(rec.Manifest) != 3 {
		t.Fatalf("record missing checksum or manifest: %+v", rec)
	}

	values, err := db.ReadColumn(rec, "stress")
	if err != nil {
		t.Fatalf("read column: %v", err)
	}
	want := []float64{10.5, 20.5, 30.5}
	for i, v := range want {
		if values[i] != v {
			t.Errorf("stress[%d]: want %v, got %v", i, v, values[i])
		}
	}

	if _, err := db.ReadColumn(rec, "bogus"); !dberr.Is(err, dberr.CodeUnknownColumn) {
		t.Errorf("expected UnknownColumn, got %v", err)
	}
}

func TestIngestNameCollision(t *testing.T) {
	db := createTestDB(t)
	ingest(t, db, "run-001", testRows(0))

	_, err := db.Ingest(context.Background(), "run-001", schema.NewSliceReader(testRows(10)), sessions.CapAdmin)
	if !dberr.Is(err, dberr.CodeNameCollision) {
		t.Errorf("expected NameCollision, got %v", err)
	}

	// The failed ingestion must not have touched the catalog.
	snap, _ := db.Snapshot()
	if len(snap.Records) != 1 {
		t.Errorf("expected 1 record after collision, got %d", len(snap.Records))
	}
}

func TestIngestSchemaMismatchLeavesCatalogUntouched(t *testing.T) {
	db := createTestDB(t)

	rows := []schema.Row{
		{int64(1), 10.5, "static"},
		{"not-an-int", 20.5, "static"},
	}
	_, err := db.Ingest(context.Background(), "bad", schema.NewSliceReader(rows), sessions.CapAdmin)
	if !dberr.Is(err, dberr.CodeSchemaMismatch) {
		t.Fatalf("expected SchemaMismatch, got %v", err)
	}

	snap, _ := db.Snapshot()
	if len(snap.Records) != 0 {
		t.Errorf("expected empty catalog after failed ingest, got %d records", len(snap.Records))
	}

	// No staged garbage may leak into the batches directory.
	entries, _ := os.ReadDir(filepath.Join(db.Path(), "batches"))
	if len(entries) != 0 {
		t.Errorf("expected empty batches dir, found %d entries", len(entries))
	}
}

func TestIngestRequiresWriteAccess(t *testing.T) {
	db := createTestDB(t)

	_, err := db.Ingest(context.Background(), "run-001", schema.NewSliceReader(testRows(0)), sessions.CapRead)
	if !dberr.Is(err, dberr.CodeUnauthorized) {
		t.Errorf("expected Unauthorized, got %v", err)
	}
}

func TestIngestInvalidBatchName(t *testing.T) {
	db := createTestDB(t)

	for _, name := range []string{"", "a/b", "..", "."} {
		if _, err := db.Ingest(context.Background(), name, schema.NewSliceReader(nil), sessions.CapAdmin); err == nil {
			t.Errorf("expected batch name %q to be rejected", name)
		}
	}
}

func TestIngestCancelled(t *testing.T) {
	db := createTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.Ingest(ctx, "run-001", schema.NewSliceReader(testRows(0)), sessions.CapAdmin)
	if err == nil {
		t.Fatalf("expected cancelled ingest to fail")
	}
	snap, _ := db.Snapshot()
	if len(snap.Records) != 0 {
		t.Errorf("cancelled ingest must not commit")
	}
}

func TestSequencesAreContiguous(t *testing.T) {
	db := createTestDB(t)
	for i, name := range []string{"a", "b", "c"} {
		rec, err := db.Ingest(context.Background(), name, schema.NewSliceReader(testRows(int64(i*10))), sessions.CapAdmin)
		if err != nil {
			t.Fatalf("ingest %s: %v", name, err)
		}
		if rec.Sequence != uint64(i)+1 {
			t.Errorf("batch %s: want sequence %d, got %d", name, i+1, rec.Sequence)
		}
	}
}

// --------------------------------------------------------------------------
// Restore
// --------------------------------------------------------------------------

func TestRestore(t *testing.T) {
	db := createTestDB(t)
	ingest(t, db, "a", testRows(0))
	ingest(t, db, "b", testRows(10))
	ingest(t, db, "c", testRows(20))

	if err := db.Restore("b", sessions.CapAdmin); err != nil {
		t.Fatalf("restore: %v", err)
	}

	snap, _ := db.Snapshot()
	if len(snap.Records) != 2 || snap.Records[1].Name != "b" {
		t.Fatalf("expected catalog [a b], got %d records", len(snap.Records))
	}

	// Restoring is idempotent for the checkpoint itself.
	if err := db.Restore("b", sessions.CapAdmin); err != nil {
		t.Errorf("restore to current head: %v", err)
	}

	// The discarded batch name may be reused afterwards.
	ingest(t, db, "c", testRows(30))
	snap, _ = db.Snapshot()
	if snap.LastSequence() != 3 {
		t.Errorf("expected sequence 3 after re-ingest, got %d", snap.LastSequence())
	}
}

func TestRestoreUnknownCheckpoint(t *testing.T) {
	db := createTestDB(t)
	ingest(t, db, "a", testRows(0))

	err := db.Restore("missing", sessions.CapAdmin)
	if !dberr.Is(err, dberr.CodeCheckpointNotFound) {
		t.Errorf("expected CheckpointNotFound, got %v", err)
	}
}

func TestRestoreFailsFastWhenWriterBusy(t *testing.T) {
	locks := lockmgr.NewLockManager()
	db, err := Create(t.TempDir(), testSchema(), &Options{Locks: locks})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer db.Close()
	ingest(t, db, "a", testRows(0))

	owner, err := locks.Acquire(context.Background(), db.Path())
	if err != nil {
		t.Fatalf("acquire writer lock: %v", err)
	}
	defer locks.Release(db.Path(), owner)

	if err := db.Restore("a", sessions.CapAdmin); !dberr.Is(err, dberr.CodeWriterBusy) {
		t.Errorf("expected WriterBusy, got %v", err)
	}
}

func TestRestoreRequiresWriteAccess(t *testing.T) {
	db := createTestDB(t)
	ingest(t, db, "a", testRows(0))

	if err := db.Restore("a", sessions.CapRead); !dberr.Is(err, dberr.CodeUnauthorized) {
		t.Errorf("expected Unauthorized, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Integrity Check
// --------------------------------------------------------------------------

func TestCheckClean(t *testing.T) {
	db := createTestDB(t)
	ingest(t, db, "a", testRows(0))
	ingest(t, db, "b", testRows(10))

	report, err := db.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !report.OK() || report.Batches != 2 {
		t.Errorf("expected clean report over 2 batches, got %+v", report)
	}
}

func TestCheckDetectsCorruption(t *testing.T) {
	db := createTestDB(t)
	ingest(t, db, "a", testRows(0))

	snap, _ := db.Snapshot()
	rec := snap.Records[0]

	// Flip bytes in one column file.
	path := filepath.Join(db.Path(), rec.Manifest[0].Path)
	if err := os.WriteFile(path, []byte("garbage!"), 0o644); err != nil {
		t.Fatalf("corrupt column file: %v", err)
	}

	report, err := db.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if report.OK() || len(report.Corrupted) != 1 {
		t.Fatalf("expected 1 corrupted batch, got %+v", report)
	}
	if report.Corrupted[0].Name != "a" || report.Corrupted[0].Want == report.Corrupted[0].Got {
		t.Errorf("corruption finding incomplete: %+v", report.Corrupted[0])
	}
}

func TestCheckDetectsMissingFiles(t *testing.T) {
	db := createTestDB(t)
	ingest(t, db, "a", testRows(0))

	snap, _ := db.Snapshot()
	rec := snap.Records[0]

	if err := os.Remove(filepath.Join(db.Path(), rec.Manifest[1].Path)); err != nil {
		t.Fatalf("remove column file: %v", err)
	}

	report, err := db.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if report.OK() || len(report.Missing) != 1 {
		t.Fatalf("expected 1 missing entry, got %+v", report)
	}
	if report.Missing[0].Batch != "a" {
		t.Errorf("missing finding incomplete: %+v", report.Missing[0])
	}
}

// --------------------------------------------------------------------------
// Attachments
// --------------------------------------------------------------------------

func TestAttachments(t *testing.T) {
	db := createTestDB(t)

	content := []byte("solver deck contents")
	if err := db.PutAttachment(context.Background(), "deck.inp", bytes.NewReader(content), sessions.CapAdmin); err != nil {
		t.Fatalf("put attachment: %v", err)
	}

	names, err := db.ListAttachments()
	if err != nil {
		t.Fatalf("list attachments: %v", err)
	}
	if len(names) != 1 || names[0] != "deck.inp" {
		t.Fatalf("expected [deck.inp], got %v", names)
	}

	r, err := db.OpenAttachment("deck.inp")
	if err != nil {
		t.Fatalf("open attachment: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read attachment: %v", err)
	}
	r.Close()
	if !bytes.Equal(got, content) {
		t.Errorf("attachment content changed")
	}

	if err := db.RemoveAttachment(context.Background(), "deck.inp", sessions.CapAdmin); err != nil {
		t.Fatalf("remove attachment: %v", err)
	}
	names, _ = db.ListAttachments()
	if len(names) != 0 {
		t.Errorf("expected no attachments after removal, got %v", names)
	}
}

func TestAttachmentAccessControl(t *testing.T) {
	db := createTestDB(t)

	err := db.PutAttachment(context.Background(), "deck.inp", bytes.NewReader([]byte("x")), sessions.CapRead)
	if !dberr.Is(err, dberr.CodeUnauthorized) {
		t.Errorf("expected Unauthorized for put, got %v", err)
	}
	err = db.RemoveAttachment(context.Background(), "deck.inp", sessions.CapRead)
	if !dberr.Is(err, dberr.CodeUnauthorized) {
		t.Errorf("expected Unauthorized for remove, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Adoption (replication commit path)
// --------------------------------------------------------------------------

func TestAdoptBatchVerifiesChecksum(t *testing.T) {
	source := createTestDB(t)
	ingest(t, source, "a", testRows(0))
	snap, _ := source.Snapshot()
	rec := snap.Records[0]

	follower, err := Create(t.TempDir(), testSchema(), nil)
	if err != nil {
		t.Fatalf("create follower: %v", err)
	}
	defer follower.Close()

	// Stage a copy of the source batch on the follower.
	stage := func() string {
		dir, err := follower.NewStagingDir()
		if err != nil {
			t.Fatalf("staging dir: %v", err)
		}
		for _, entry := range rec.Manifest {
			data, err := os.ReadFile(filepath.Join(source.Path(), entry.Path))
			if err != nil {
				t.Fatalf("read source column: %v", err)
			}
			if err := os.WriteFile(filepath.Join(dir, filepath.Base(entry.Path)), data, 0o644); err != nil {
				t.Fatalf("write staged column: %v", err)
			}
		}
		return dir
	}

	// A tampered record must be rejected before anything becomes visible.
	tampered := rec
	tampered.Checksum = "0000000000000000"
	if _, err := follower.AdoptBatch(context.Background(), tampered, stage(), sessions.CapAdmin); !dberr.Is(err, dberr.CodeCorrupted) {
		t.Fatalf("expected Corrupted for checksum mismatch, got %v", err)
	}
	fsnap, _ := follower.Snapshot()
	if len(fsnap.Records) != 0 {
		t.Fatalf("rejected adoption must not commit")
	}

	// The intact record goes through and keeps its identity.
	adopted, err := follower.AdoptBatch(context.Background(), rec, stage(), sessions.CapAdmin)
	if err != nil {
		t.Fatalf("adopt: %v", err)
	}
	if !adopted.SameAs(rec) {
		t.Errorf("adopted record differs from the source record")
	}

	values, err := follower.ReadColumn(adopted, "node")
	if err != nil {
		t.Fatalf("read adopted column: %v", err)
	}
	if len(values) != 3 || values[0] != int64(1) {
		t.Errorf("adopted data unreadable: %v", values)
	}
}
