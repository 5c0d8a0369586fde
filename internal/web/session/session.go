// Package session keeps login sessions in a fiber storage backend.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"

	"github.com/pmhub/pmhub/internal/config"
	"github.com/pmhub/pmhub/internal/db/dsn"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "session"

	// Table is the session table used by the sql storages.
	Table = "sessions"
)

// ErrNoSession is returned when the session id is unknown or expired.
var ErrNoSession = errors.New("session not found")

// Data represents the session data structure.
type Data struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
}

// Store reads and writes session data.
type Store struct {
	storage fiber.Storage
}

// New wraps storage. A nil storage falls back to fiber's in-memory session storage.
func New(storage fiber.Storage) *Store {
	if storage == nil {
		storage = session.New().Storage
	}

	return &Store{storage: storage}
}

// NewStorage opens the session storage matching the database engine.
// sqlite returns nil, which New turns into in-memory storage.
func NewStorage(cfg *config.DB) fiber.Storage {
	switch cfg.GormEngine {
	case config.EngineMySQL:
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.MySQL(cfg),
			Table:         Table,
		})
	case config.EnginePostgres:
		return sessionpostgres.New(sessionpostgres.Config{
			ConnectionURI: dsn.Postgres(cfg),
			Table:         Table,
		})
	default:
		return nil
	}
}

// Write writes the session data for the given session ID with an expiration duration.
func (s *Store) Write(sessionID string, data Data, exp time.Duration) error {
	out, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	return s.storage.Set(sessionID, out, exp) //nolint:wrapcheck
}

// Read reads the session data for the given session ID.
func (s *Store) Read(sessionID string) (Data, error) {
	var data Data

	if sessionID == "" {
		return data, ErrNoSession
	}

	raw, err := s.storage.Get(sessionID)
	if err != nil {
		return data, fmt.Errorf("read session: %w", err)
	}

	// the memory storage answers an unknown key with nil, nil
	if len(raw) == 0 {
		return data, ErrNoSession
	}

	if err = json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("decode session: %w", err)
	}

	if data.UserID == 0 {
		return data, ErrNoSession
	}

	return data, nil
}

// Delete removes a session.
func (s *Store) Delete(sessionID string) error {
	return s.storage.Delete(sessionID) //nolint:wrapcheck
}

// Close releases the storage.
func (s *Store) Close() error {
	return s.storage.Close() //nolint:wrapcheck
}

// GenerateSessionID generates a new secure random session ID.
func GenerateSessionID() (string, error) {
	return Token(32) //nolint:mnd
}

// Token returns n random bytes hex encoded.
func Token(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return hex.EncodeToString(b), nil
}
