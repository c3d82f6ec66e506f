package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmorand/threddit/api"
	"github.com/tmorand/threddit/db"
	"github.com/tmorand/threddit/models"
)

type fakeAuth struct {
	response api.AuthResponse
	err      error
}

func (f fakeAuth) Login(ctx context.Context, creds api.Credentials) (api.AuthResponse, error) {
	return f.response, f.err
}

func (f fakeAuth) Register(ctx context.Context, reg api.Registration) (api.AuthResponse, error) {
	return f.response, f.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestStore(t *testing.T) (*db.Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "session.db")
	store, err := db.NewStore(dbPath, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func TestStartsSignedOut(t *testing.T) {
	store, _ := newTestStore(t)

	s := New(store, quietLogger())

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
	_, ok := s.CurrentUser()
	assert.False(t, ok)
}

func TestLoginPersistsAndRestores(t *testing.T) {
	store, dbPath := newTestStore(t)

	s := New(store, quietLogger())
	s.SetAuthenticator(fakeAuth{response: api.AuthResponse{
		Token: "tok-1",
		User:  models.User{ID: 7, Username: "alice"},
	}})

	user, err := s.Login(context.Background(), api.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "tok-1", s.Token())

	// a fresh session over the same store restores the identity
	require.NoError(t, store.Close())
	reopened, err := db.NewStore(dbPath, quietLogger())
	require.NoError(t, err)
	defer reopened.Close()

	restored := New(reopened, quietLogger())
	assert.True(t, restored.IsAuthenticated())
	assert.Equal(t, "tok-1", restored.Token())
	restoredUser, ok := restored.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, int64(7), restoredUser.ID)
}

func TestLoginFailureEndsSignedOut(t *testing.T) {
	store, _ := newTestStore(t)

	s := New(store, quietLogger())
	s.SetAuthenticator(fakeAuth{err: &api.Error{Status: 401, Message: "bad credentials"}})

	_, err := s.Login(context.Background(), api.Credentials{Username: "alice", Password: "nope"})
	require.Error(t, err)
	assert.False(t, s.IsAuthenticated())
}

func TestLoginMissingTokenRejected(t *testing.T) {
	store, _ := newTestStore(t)

	s := New(store, quietLogger())
	s.SetAuthenticator(fakeAuth{response: api.AuthResponse{User: models.User{ID: 1}}})

	_, err := s.Login(context.Background(), api.Credentials{Username: "a", Password: "b"})
	require.Error(t, err)
	assert.False(t, s.IsAuthenticated())
}

func TestLogoutClearsEverything(t *testing.T) {
	store, _ := newTestStore(t)

	s := New(store, quietLogger())
	s.SetAuthenticator(fakeAuth{response: api.AuthResponse{
		Token: "tok-2",
		User:  models.User{ID: 8, Username: "bob"},
	}})

	_, err := s.Login(context.Background(), api.Credentials{Username: "bob", Password: "pw"})
	require.NoError(t, err)

	s.Logout()

	assert.False(t, s.IsAuthenticated())
	_, ok, _ := store.Get("token")
	assert.False(t, ok, "persisted token must be gone")
	_, ok, _ = store.Get("user")
	assert.False(t, ok, "persisted user must be gone")
}

func TestUnauthorizedTeardown(t *testing.T) {
	store, _ := newTestStore(t)

	s := New(store, quietLogger())
	s.SetAuthenticator(fakeAuth{response: api.AuthResponse{
		Token: "tok-3",
		User:  models.User{ID: 9, Username: "carol"},
	}})

	_, err := s.Login(context.Background(), api.Credentials{Username: "carol", Password: "pw"})
	require.NoError(t, err)
	assert.False(t, s.Expired())

	s.HandleUnauthorized()

	assert.False(t, s.IsAuthenticated())
	assert.True(t, s.Expired(), "views must be told to force the login view")
	_, ok, _ := store.Get("token")
	assert.False(t, ok)

	// a fresh sign-in clears the expired flag
	_, err = s.Login(context.Background(), api.Credentials{Username: "carol", Password: "pw"})
	require.NoError(t, err)
	assert.False(t, s.Expired())
}

func TestCorruptedUserSnapshotCleared(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Set("token", "tok-4"))
	require.NoError(t, store.Set("user", "{not json"))

	s := New(store, quietLogger())

	assert.False(t, s.IsAuthenticated())
	_, ok, _ := store.Get("token")
	assert.False(t, ok, "corrupted identity is purged, not kept half-loaded")
}
