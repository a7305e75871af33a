package sessions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/crypto/bcrypt"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// userRecord is the persisted form of one principal.
type userRecord struct {
	PasswordHash []byte            `json:"password_hash"`
	Admin        bool              `json:"admin"`
	Databases    map[string]string `json:"databases"` // database name -> "read"|"write"
}

// Session identifies a logged-in principal.
type Session struct {
	Token string
	User  string
}

// Store manages users and live sessions for one node.
type Store struct {
	file string

	mu    sync.Mutex // guards users and the file
	users map[string]userRecord

	sessions *xsync.MapOf[string, Session]
}

// --------------------------------------------------------------------------
// Construction
// --------------------------------------------------------------------------

// Open loads the users file, creating it with an initial admin user if it
// does not exist yet.
func Open(file, adminUser, adminPassword string) (*Store, error) {
	s := &Store{
		file:     file,
		users:    make(map[string]userRecord),
		sessions: xsync.NewMapOf[string, Session](),
	}

	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.users); err != nil {
			return nil, dberr.Wrap(dberr.CodeInternal, err, "decode users file")
		}
	case os.IsNotExist(err):
		if adminUser == "" {
			return nil, dberr.New(dberr.CodeInternal, "users file %s does not exist and no initial admin given", file)
		}
		if err := s.AddUser(adminUser, adminPassword, true, nil); err != nil {
			return nil, err
		}
	default:
		return nil, dberr.Wrap(dberr.CodeInternal, err, "read users file")
	}
	return s, nil
}

// --------------------------------------------------------------------------
// User Management
// --------------------------------------------------------------------------

// AddUser creates or replaces a user. grants maps database names to
// "read" or "write".
func (s *Store) AddUser(user, password string, admin bool, grants map[string]string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dberr.Wrap(dberr.CodeInternal, err, "hash password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if grants == nil {
		grants = make(map[string]string)
	}
	s.users[user] = userRecord{
		PasswordHash: hash,
		Admin:        admin,
		Databases:    grants,
	}
	return s.flush()
}

// RemoveUser deletes a user and invalidates its live sessions.
func (s *Store) RemoveUser(user string) error {
	s.mu.Lock()
	if _, ok := s.users[user]; !ok {
		s.mu.Unlock()
		return dberr.New(dberr.CodeInternal, "user %q does not exist", user)
	}
	delete(s.users, user)
	err := s.flush()
	s.mu.Unlock()

	s.sessions.Range(func(token string, sess Session) bool {
		if sess.User == user {
			s.sessions.Delete(token)
		}
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// Login and Authorization
// --------------------------------------------------------------------------

// Login verifies the password and issues a new session token.
func (s *Store) Login(user, password string) (Session, error) {
	s.mu.Lock()
	rec, ok := s.users[user]
	s.mu.Unlock()

	if !ok {
		return Session{}, dberr.New(dberr.CodeUnauthorized, "unknown user %q", user)
	}
	if err := bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)); err != nil {
		return Session{}, dberr.New(dberr.CodeUnauthorized, "invalid credentials for %q", user)
	}

	sess := Session{Token: uuid.NewString(), User: user}
	s.sessions.Store(sess.Token, sess)
	return sess, nil
}

// Logout invalidates a session token.
func (s *Store) Logout(token string) {
	s.sessions.Delete(token)
}

// Authorize resolves a session token to the caller's capability for the
// named database. An unknown or expired token yields CapNone.
func (s *Store) Authorize(token, database string) Capability {
	sess, ok := s.sessions.Load(token)
	if !ok {
		return CapNone
	}

	s.mu.Lock()
	rec, ok := s.users[sess.User]
	s.mu.Unlock()

	if !ok {
		return CapNone
	}
	if rec.Admin {
		return CapAdmin
	}
	return ParseCapability(rec.Databases[database])
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// flush rewrites the users file whole, temp-file + rename. Callers must
// hold s.mu.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return dberr.Wrap(dberr.CodeInternal, err, "encode users file")
	}

	tmp := s.file + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return dberr.Wrap(dberr.CodeInternal, err, "create users dir")
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return dberr.Wrap(dberr.CodeInternal, err, "write users file")
	}
	if err := os.Rename(tmp, s.file); err != nil {
		os.Remove(tmp)
		return dberr.Wrap(dberr.CodeInternal, err, "swap users file")
	}
	return nil
}
