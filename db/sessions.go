package db

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Store is a persistent key-value store for client-local state (session
// token and user snapshot). Values are opaque strings; callers decide the
// encoding per key.
type Store struct {
	db    *sql.DB
	mutex sync.RWMutex
	log   *logrus.Logger
}

// NewStore opens (or creates) the store at dbPath
func NewStore(dbPath string, log *logrus.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	store := &Store{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	if err := store.purgeInvalid(); err != nil {
		return nil, fmt.Errorf("failed to purge invalid values: %w", err)
	}

	return store, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.db.Close()
}

// initTables creates the key-value table if it doesn't exist
func (s *Store) initTables() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
	CREATE TABLE IF NOT EXISTS session (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create session table: %w", err)
	}

	return nil
}

// purgeInvalid removes corrupted placeholder values left behind by earlier
// clients; the literal strings "undefined" and "null" are treated as absent.
func (s *Store) purgeInvalid() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result, err := s.db.Exec(`DELETE FROM session WHERE value IN ('undefined', 'null')`)
	if err != nil {
		return err
	}

	if purged, err := result.RowsAffected(); err == nil && purged > 0 {
		s.log.WithField("purged", purged).Warn("Removed corrupted session values on startup")
	}

	return nil
}

// Get returns the value for key, or "" with ok=false when the key is absent
func (s *Store) Get(key string) (string, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}

	return value, true, nil
}

// Set stores value under key, replacing any existing value
func (s *Store) Set(key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
	INSERT INTO session (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	if _, err := s.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}

	return nil
}

// Delete removes key from the store; deleting an absent key is not an error
func (s *Store) Delete(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, err := s.db.Exec(`DELETE FROM session WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}

	return nil
}

// Clear removes every key from the store
func (s *Store) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, err := s.db.Exec(`DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}

	return nil
}
