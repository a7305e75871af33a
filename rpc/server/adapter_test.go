package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/feaforge/lrdb/lib/database"
	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/feaforge/lrdb/lib/lockmgr"
	"github.com/feaforge/lrdb/lib/schema"
	"github.com/feaforge/lrdb/lib/sessions"
	"github.com/feaforge/lrdb/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// testServer builds a server with one database "results", an admin user
// "root" and a read-only user "analyst", without starting a transport.
func testServer(t *testing.T) (*RPCServer, string) {
	t.Helper()

	dir := t.TempDir()
	users, err := sessions.Open(filepath.Join(dir, "users.json"), "root", "rootpw")
	if err != nil {
		t.Fatalf("open user registry: %v", err)
	}
	if err := users.AddUser("analyst", "pw", false, map[string]string{"results": "read"}); err != nil {
		t.Fatalf("add user: %v", err)
	}

	dbPath := filepath.Join(dir, "results")
	db, err := database.Create(dbPath, schema.Schema{
		Version: 1,
		Columns: []schema.Column{{Name: "node", Type: schema.TypeInt64}},
	}, nil)
	if err != nil {
		t.Fatalf("create database: %v", err)
	}

	s := &RPCServer{
		databases: xsync.NewMapOf[string, *database.Database](),
		users:     users,
		locks:     lockmgr.NewLockManager(),
		logger:    zap.NewNop().Sugar(),
	}
	s.databases.Store("results", db)
	return s, dbPath
}

func login(t *testing.T, s *RPCServer, user, password string) string {
	t.Helper()
	sess, err := s.users.Login(user, password)
	if err != nil {
		t.Fatalf("login %s: %v", user, err)
	}
	return sess.Token
}

func TestRemoveDatabaseRequiresAdmin(t *testing.T) {
	s, dbPath := testServer(t)
	token := login(t, s, "analyst", "pw")

	resp := s.handle(common.NewRemoveDatabaseRequest(token, "results"))
	if !dberr.Is(resp.ResponseError(), dberr.CodeUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", resp.ResponseError())
	}

	// The refused removal leaves the database served and on disk.
	if _, ok := s.databases.Load("results"); !ok {
		t.Errorf("refused removal unregistered the database")
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("refused removal touched the data directory: %v", err)
	}
}

func TestRemoveDatabase(t *testing.T) {
	s, dbPath := testServer(t)
	token := login(t, s, "root", "rootpw")

	resp := s.handle(common.NewRemoveDatabaseRequest(token, "results"))
	if err := resp.ResponseError(); err != nil {
		t.Fatalf("remove database: %v", err)
	}

	if _, ok := s.databases.Load("results"); ok {
		t.Errorf("removed database is still registered")
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Errorf("database directory still present: %v", err)
	}

	// A second removal finds nothing to remove.
	resp = s.handle(common.NewRemoveDatabaseRequest(token, "results"))
	if !dberr.Is(resp.ResponseError(), dberr.CodeMissingData) {
		t.Errorf("expected MissingData for an unknown database, got %v", resp.ResponseError())
	}
}
