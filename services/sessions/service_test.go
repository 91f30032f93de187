package sessions

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestService(t *testing.T, duration time.Duration) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	svc, err := NewService(dir, duration)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(svc.Close)
	return svc, dir
}

func TestCreateAndValidate(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	session, err := svc.Create("acct-1", false, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected a non-empty token")
	}

	got, err := svc.Validate(session.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got.AccountID != "acct-1" || got.UserAgent != "test-agent" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestValidateRejectsBadTokens(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	if _, err := svc.Validate(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Validate("never-issued"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestValidateExpiredSession(t *testing.T) {
	svc, _ := newTestService(t, time.Millisecond)

	session, err := svc.Create("acct-1", false, "", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := svc.Validate(session.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	// The expired session is gone for good.
	if _, err := svc.Validate(session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after expiry removal, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	session, _ := svc.Create("acct-1", false, "", "")
	if err := svc.Revoke(session.Token); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := svc.Validate(session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("revoked session still validates: %v", err)
	}
	if err := svc.Revoke(session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on double revoke, got %v", err)
	}
}

func TestRevokeAllForAccount(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	svc.Create("acct-1", false, "", "")
	svc.Create("acct-1", false, "", "")
	other, _ := svc.Create("acct-2", false, "", "")

	if n := svc.RevokeAllForAccount("acct-1"); n != 2 {
		t.Fatalf("expected 2 revoked sessions, got %d", n)
	}
	if svc.Count() != 1 {
		t.Fatalf("expected 1 remaining session, got %d", svc.Count())
	}
	if _, err := svc.Validate(other.Token); err != nil {
		t.Fatalf("other account's session was revoked: %v", err)
	}
}

func TestRevokeHookFires(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	var mu sync.Mutex
	var revoked []string
	svc.SetRevokeHook(func(token string) {
		mu.Lock()
		revoked = append(revoked, token)
		mu.Unlock()
	})

	session, _ := svc.Create("acct-1", false, "", "")
	svc.Revoke(session.Token)

	mu.Lock()
	defer mu.Unlock()
	if len(revoked) != 1 || revoked[0] != session.Token {
		t.Fatalf("expected hook fired once with the token, got %v", revoked)
	}
}

func TestSessionsPersistAcrossRestart(t *testing.T) {
	svc, dir := newTestService(t, time.Hour)
	session, err := svc.Create("acct-1", true, "agent", "10.0.0.1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	svc.Close()

	restarted, err := NewService(dir, time.Hour)
	if err != nil {
		t.Fatalf("restart NewService() error = %v", err)
	}
	defer restarted.Close()

	got, err := restarted.Validate(session.Token)
	if err != nil {
		t.Fatalf("session lost across restart: %v", err)
	}
	if got.AccountID != "acct-1" || !got.IsMaster {
		t.Fatalf("restored session diverged: %+v", got)
	}
}

func TestExpiredSessionsDroppedOnLoad(t *testing.T) {
	svc, dir := newTestService(t, time.Millisecond)
	svc.Create("acct-1", false, "", "")
	time.Sleep(5 * time.Millisecond)
	svc.Close()

	restarted, err := NewService(dir, time.Hour)
	if err != nil {
		t.Fatalf("restart NewService() error = %v", err)
	}
	defer restarted.Close()

	if restarted.Count() != 0 {
		t.Fatalf("expected expired sessions dropped on load, got %d", restarted.Count())
	}
}

func TestCleanupRemovesExpired(t *testing.T) {
	svc, _ := newTestService(t, time.Millisecond)
	svc.Create("acct-1", false, "", "")
	svc.Create("acct-2", false, "", "")
	time.Sleep(5 * time.Millisecond)

	if n := svc.Cleanup(); n != 2 {
		t.Fatalf("expected 2 expired sessions cleaned, got %d", n)
	}
	if svc.Count() != 0 {
		t.Fatalf("expected empty store after cleanup, got %d", svc.Count())
	}
}

func TestNewServiceRequiresStorageDir(t *testing.T) {
	if _, err := NewService("  ", time.Hour); !errors.Is(err, ErrStorageDirRequired) {
		t.Fatalf("expected ErrStorageDirRequired, got %v", err)
	}
}
