package sessions

import (
	"path/filepath"
	"testing"

	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBootstrapsAdmin(t *testing.T) {
	file := filepath.Join(t.TempDir(), "users.json")

	store, err := Open(file, "admin", "secret")
	require.NoError(t, err)

	sess, err := store.Login("admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "admin", sess.User)
	assert.NotEmpty(t, sess.Token)

	// Admins have full access everywhere.
	assert.Equal(t, CapAdmin, store.Authorize(sess.Token, "anything"))

	// The bootstrap is persisted: a second open without admin
	// credentials must succeed.
	reopened, err := Open(file, "", "")
	require.NoError(t, err)
	_, err = reopened.Login("admin", "secret")
	assert.NoError(t, err)
}

func TestOpenMissingFileWithoutAdmin(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "users.json"), "", "")
	assert.Error(t, err)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "users.json"), "admin", "secret")
	require.NoError(t, err)

	_, err = store.Login("admin", "wrong")
	assert.True(t, dberr.Is(err, dberr.CodeUnauthorized))

	_, err = store.Login("nobody", "secret")
	assert.True(t, dberr.Is(err, dberr.CodeUnauthorized))
}

func TestGrants(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "users.json"), "admin", "secret")
	require.NoError(t, err)

	require.NoError(t, store.AddUser("analyst", "pw", false, map[string]string{
		"results": "read",
		"staging": "write",
	}))

	sess, err := store.Login("analyst", "pw")
	require.NoError(t, err)

	assert.Equal(t, CapRead, store.Authorize(sess.Token, "results"))
	assert.Equal(t, CapWrite, store.Authorize(sess.Token, "staging"))
	assert.Equal(t, CapNone, store.Authorize(sess.Token, "other"))

	assert.True(t, store.Authorize(sess.Token, "staging").CanRead())
	assert.True(t, store.Authorize(sess.Token, "staging").CanWrite())
	assert.False(t, store.Authorize(sess.Token, "results").CanWrite())
}

func TestAuthorizeUnknownToken(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "users.json"), "admin", "secret")
	require.NoError(t, err)

	assert.Equal(t, CapNone, store.Authorize("no-such-token", "results"))
}

func TestLogout(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "users.json"), "admin", "secret")
	require.NoError(t, err)

	sess, err := store.Login("admin", "secret")
	require.NoError(t, err)

	store.Logout(sess.Token)
	assert.Equal(t, CapNone, store.Authorize(sess.Token, "results"))
}

func TestRemoveUserInvalidatesSessions(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "users.json"), "admin", "secret")
	require.NoError(t, err)

	require.NoError(t, store.AddUser("temp", "pw", false, map[string]string{"results": "read"}))
	sess, err := store.Login("temp", "pw")
	require.NoError(t, err)
	require.Equal(t, CapRead, store.Authorize(sess.Token, "results"))

	require.NoError(t, store.RemoveUser("temp"))

	assert.Equal(t, CapNone, store.Authorize(sess.Token, "results"))
	_, err = store.Login("temp", "pw")
	assert.Error(t, err)

	// Removing a user that does not exist is an error.
	assert.Error(t, store.RemoveUser("temp"))
}

func TestParseCapability(t *testing.T) {
	assert.Equal(t, CapRead, ParseCapability("read"))
	assert.Equal(t, CapWrite, ParseCapability("write"))
	assert.Equal(t, CapAdmin, ParseCapability("admin"))
	assert.Equal(t, CapNone, ParseCapability(""))
	assert.Equal(t, CapNone, ParseCapability("root"))
}
