package navigation

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"nextreel/models"
	"nextreel/services/prefetch"
)

// serialCatalog hands out sequential ids so tests can tell movies apart.
type serialCatalog struct {
	mu     sync.Mutex
	serial int
}

func (f *serialCatalog) RandomMatching(ctx context.Context, criteria models.FilterCriteria) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serial++
	return fmt.Sprintf("tt%d", f.serial), nil
}

func (f *serialCatalog) FetchDetails(ctx context.Context, id string) (models.Movie, error) {
	return models.Movie{IMDbID: id, Title: "Movie " + id}, nil
}

type noSeen struct{}

func (noSeen) SeenIDs(accountID string) (map[string]struct{}, error) { return nil, nil }

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	supplier := prefetch.NewSupplier(&serialCatalog{}, nil)
	m := NewManager(func(accountID string) *prefetch.Service {
		return prefetch.NewService(accountID, supplier, noSeen{}, 3, 2)
	})
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m
}

func TestManagerAdvanceAndRetreat(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.Advance(ctx, "sess-1", "acct-1")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if _, err := m.Advance(ctx, "sess-1", "acct-1"); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	back, err := m.Retreat("sess-1")
	if err != nil {
		t.Fatalf("Retreat() error = %v", err)
	}
	if back.IMDbID != first.IMDbID {
		t.Fatalf("Retreat() = %s, want %s", back.IMDbID, first.IMDbID)
	}
}

func TestManagerSessionsAreIsolated(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, err := m.Advance(ctx, "sess-a", "acct-1")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	b, err := m.Advance(ctx, "sess-b", "acct-2")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if a.IMDbID == b.IMDbID {
		t.Fatalf("distinct sessions shared a pipeline pick: %s", a.IMDbID)
	}

	// sess-b has only one movie shown, so it cannot retreat.
	if _, err := m.Retreat("sess-b"); err == nil {
		t.Fatal("expected ErrNoHistory for a one-movie session")
	}
}

func TestManagerRetreatOnUnknownSession(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Retreat("never-seen"); err == nil {
		t.Fatal("expected ErrNoHistory for an unknown session")
	}
	if _, ok := m.Current("never-seen"); ok {
		t.Fatal("unknown session must have no current movie")
	}
}

func TestManagerSetCriteriaClearsHistory(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Advance(ctx, "sess-1", "acct-1")
	m.Advance(ctx, "sess-1", "acct-1")

	stored := m.SetCriteria("sess-1", "acct-1", models.FilterCriteria{MinYear: 2010, MaxYear: 1990})

	if _, ok := m.Current("sess-1"); ok {
		t.Fatal("criteria change should clear the current movie")
	}
	if _, err := m.Retreat("sess-1"); err == nil {
		t.Fatal("criteria change should clear the back stack")
	}

	if stored.MaxYear != 2010 {
		t.Fatalf("expected normalized criteria returned, got %+v", stored)
	}
	got := m.Criteria("sess-1", "acct-1")
	if !reflect.DeepEqual(got, stored) {
		t.Fatalf("stored criteria %+v diverged from returned %+v", got, stored)
	}
}

func TestManagerEndSessionDropsState(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Advance(ctx, "sess-1", "acct-1")
	m.EndSession("sess-1")

	if _, ok := m.Current("sess-1"); ok {
		t.Fatal("ended session must have no current movie")
	}

	// EndSession on a token that was never used is a no-op.
	m.EndSession("never-seen")
}

func TestManagerAdvanceRecoversAfterEndSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Advance(ctx, "sess-1", "acct-1")
	m.EndSession("sess-1")

	// The same token can start over with a fresh pipeline.
	if _, err := m.Advance(ctx, "sess-1", "acct-1"); err != nil {
		t.Fatalf("Advance() after EndSession: %v", err)
	}
}
