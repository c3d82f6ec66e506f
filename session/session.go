package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tmorand/threddit/api"
	"github.com/tmorand/threddit/db"
	"github.com/tmorand/threddit/models"
)

const (
	tokenKey = "token"
	userKey  = "user"
)

// Authenticator is the slice of the API client the session needs
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (api.AuthResponse, error)
	Register(ctx context.Context, reg api.Registration) (api.AuthResponse, error)
}

// Session holds the current viewer's identity and token. It is the explicit
// replacement for ambient auth state: initialized once at startup from the
// persistent store, mutated only by Login/Register/Logout, and torn down
// when the backend answers 401.
type Session struct {
	store   *db.Store
	auth    Authenticator
	log     *logrus.Logger
	mutex   sync.RWMutex
	token   string
	user    *models.User
	expired bool
}

// New creates a session restored from the store. A missing or unreadable
// persisted identity just means starting signed out.
func New(store *db.Store, log *logrus.Logger) *Session {
	s := &Session{
		store: store,
		log:   log,
	}
	s.restore()
	return s
}

// SetAuthenticator wires in the API client once it exists. The client is
// constructed after the session because it needs the session's token.
func (s *Session) SetAuthenticator(auth Authenticator) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.auth = auth
}

// restore loads the persisted token and user, clearing both if either is
// missing or the user snapshot fails to decode.
func (s *Session) restore() {
	token, ok, err := s.store.Get(tokenKey)
	if err != nil || !ok || token == "" {
		if err != nil {
			s.log.WithError(err).Warn("Failed to read persisted token")
		}
		s.clearPersisted()
		return
	}

	raw, ok, err := s.store.Get(userKey)
	if err != nil || !ok {
		if err != nil {
			s.log.WithError(err).Warn("Failed to read persisted user")
		}
		s.clearPersisted()
		return
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.log.WithError(err).Warn("Persisted user snapshot is corrupted, clearing session")
		s.clearPersisted()
		return
	}

	s.token = token
	s.user = &user
	s.log.WithField("username", user.Username).Info("Session restored from store")
}

// Token returns the bearer token, or "" when signed out
func (s *Session) Token() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.token
}

// CurrentUser returns the signed-in user, if any
func (s *Session) CurrentUser() (models.User, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// IsAuthenticated reports whether a viewer is signed in
func (s *Session) IsAuthenticated() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.user != nil && s.token != ""
}

// Expired reports whether the session was torn down by a 401 since the last
// successful sign-in. Views use this to force navigation to the login view.
func (s *Session) Expired() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.expired
}

// Login exchanges credentials for an identity and persists it. On any
// failure the session ends up signed out.
func (s *Session) Login(ctx context.Context, creds api.Credentials) (models.User, error) {
	resp, err := s.authenticator().Login(ctx, creds)
	if err != nil {
		s.teardown()
		return models.User{}, err
	}
	return s.adopt(resp)
}

// Register creates an account and signs in as it. On any failure the
// session ends up signed out.
func (s *Session) Register(ctx context.Context, reg api.Registration) (models.User, error) {
	resp, err := s.authenticator().Register(ctx, reg)
	if err != nil {
		s.teardown()
		return models.User{}, err
	}
	return s.adopt(resp)
}

// Logout signs the viewer out and clears the persisted identity
func (s *Session) Logout() {
	s.teardown()
	s.log.Info("Signed out")
}

// HandleUnauthorized is the API client's 401 callback: global teardown plus
// the expired flag that forces the login view.
func (s *Session) HandleUnauthorized() {
	s.teardown()
	s.mutex.Lock()
	s.expired = true
	s.mutex.Unlock()
	s.log.Warn("Session expired, viewer must sign in again")
}

func (s *Session) authenticator() Authenticator {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.auth
}

// adopt installs and persists a fresh identity from an auth response
func (s *Session) adopt(resp api.AuthResponse) (models.User, error) {
	if resp.Token == "" {
		s.teardown()
		return models.User{}, fmt.Errorf("invalid response from server: missing token")
	}

	encoded, err := json.Marshal(resp.User)
	if err != nil {
		s.teardown()
		return models.User{}, fmt.Errorf("failed to encode user snapshot: %w", err)
	}

	s.mutex.Lock()
	s.token = resp.Token
	user := resp.User
	s.user = &user
	s.expired = false
	s.mutex.Unlock()

	if err := s.store.Set(tokenKey, resp.Token); err != nil {
		s.log.WithError(err).Error("Failed to persist token")
	}
	if err := s.store.Set(userKey, string(encoded)); err != nil {
		s.log.WithError(err).Error("Failed to persist user snapshot")
	}

	s.log.WithField("username", resp.User.Username).Info("Signed in")
	return resp.User, nil
}

// teardown drops the in-memory identity and the persisted copy
func (s *Session) teardown() {
	s.mutex.Lock()
	s.token = ""
	s.user = nil
	s.mutex.Unlock()
	s.clearPersisted()
}

func (s *Session) clearPersisted() {
	if err := s.store.Delete(tokenKey); err != nil {
		s.log.WithError(err).Error("Failed to clear persisted token")
	}
	if err := s.store.Delete(userKey); err != nil {
		s.log.WithError(err).Error("Failed to clear persisted user")
	}
}
