// Package sessions manages token sessions for authenticated viewers. The
// session token doubles as the key for per-viewer browsing state, so ending
// a session also ends its navigation history.
package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"nextreel/models"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrStorageDirRequired = errors.New("storage directory not provided")
)

const (
	// DefaultSessionDuration is the session lifetime when the config does
	// not specify one.
	DefaultSessionDuration = 30 * 24 * time.Hour

	// tokenLength is the number of random bytes in a session token.
	tokenLength = 32
)

// RevokeHook is invoked with the token of every session that ends, whether
// by explicit logout, expiry, or account-wide revocation.
type RevokeHook func(token string)

// Service manages session tokens with JSON-file persistence.
type Service struct {
	mu       sync.RWMutex
	path     string
	sessions map[string]models.Session
	duration time.Duration
	onRevoke RevokeHook

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// NewService creates a sessions service persisting under storageDir.
func NewService(storageDir string, duration time.Duration) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}
	if duration <= 0 {
		duration = DefaultSessionDuration
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}

	svc := &Service{
		path:        filepath.Join(storageDir, "sessions.json"),
		sessions:    make(map[string]models.Session),
		duration:    duration,
		stopCleanup: make(chan struct{}),
	}

	if err := svc.load(); err != nil {
		return nil, err
	}

	go svc.cleanupLoop()

	return svc, nil
}

// SetRevokeHook registers the callback run for every ended session.
func (s *Service) SetRevokeHook(hook RevokeHook) {
	s.mu.Lock()
	s.onRevoke = hook
	s.mu.Unlock()
}

// Create generates a new session for the given account.
func (s *Service) Create(accountID string, isMaster bool, userAgent, ipAddress string) (models.Session, error) {
	token, err := generateToken()
	if err != nil {
		return models.Session{}, err
	}

	now := time.Now().UTC()
	session := models.Session{
		Token:     token,
		AccountID: accountID,
		IsMaster:  isMaster,
		ExpiresAt: now.Add(s.duration),
		CreatedAt: now,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	s.mu.Lock()
	s.sessions[token] = session
	if err := s.saveLocked(); err != nil {
		delete(s.sessions, token)
		s.mu.Unlock()
		return models.Session{}, err
	}
	s.mu.Unlock()

	return session, nil
}

// Validate checks a token and returns the associated session.
func (s *Service) Validate(token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrInvalidToken
	}

	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	if session.IsExpired() {
		s.removeTokens(token)
		return models.Session{}, ErrSessionExpired
	}
	return session, nil
}

// Revoke ends a session by token.
func (s *Service) Revoke(token string) error {
	s.mu.RLock()
	_, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.removeTokens(token)
	return nil
}

// RevokeAllForAccount ends every session belonging to an account, returning
// how many were ended.
func (s *Service) RevokeAllForAccount(accountID string) int {
	s.mu.RLock()
	var tokens []string
	for token, session := range s.sessions {
		if session.AccountID == accountID {
			tokens = append(tokens, token)
		}
	}
	s.mu.RUnlock()

	s.removeTokens(tokens...)
	return len(tokens)
}

// Count returns the number of stored sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup removes expired sessions, returning how many were dropped.
func (s *Service) Cleanup() int {
	now := time.Now()
	s.mu.RLock()
	var expired []string
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			expired = append(expired, token)
		}
	}
	s.mu.RUnlock()

	s.removeTokens(expired...)
	return len(expired)
}

// Close stops the background cleanup loop.
func (s *Service) Close() {
	s.cleanupOnce.Do(func() { close(s.stopCleanup) })
}

// removeTokens deletes sessions, persists, and fires the revoke hook for
// each. The hook runs outside the lock; it may call back into other
// services.
func (s *Service) removeTokens(tokens ...string) {
	if len(tokens) == 0 {
		return
	}

	s.mu.Lock()
	removed := tokens[:0]
	for _, token := range tokens {
		if _, ok := s.sessions[token]; ok {
			delete(s.sessions, token)
			removed = append(removed, token)
		}
	}
	var hook RevokeHook
	if len(removed) > 0 {
		_ = s.saveLocked()
		hook = s.onRevoke
	}
	s.mu.Unlock()

	if hook != nil {
		for _, token := range removed {
			hook(token)
		}
	}
}

func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

func generateToken() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

func (s *Service) load() error {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open sessions file: %w", err)
	}
	defer file.Close()

	var stored []models.Session
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode sessions: %w", err)
	}

	now := time.Now()
	for _, session := range stored {
		if strings.TrimSpace(session.Token) == "" || now.After(session.ExpiresAt) {
			continue
		}
		s.sessions[session.Token] = session
	}
	return nil
}

// saveLocked writes sessions to disk atomically. Callers must hold mu.
func (s *Service) saveLocked() error {
	sessions := make([]models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write sessions temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace sessions file: %w", err)
	}
	return nil
}
