package navigation

import (
	"context"
	"log"
	"sync"
	"time"

	"nextreel/models"
	"nextreel/services/prefetch"
)

// sessionIdleTTL is how long an untouched viewer session keeps its pipeline
// and history alive before the manager reclaims them.
const sessionIdleTTL = 30 * time.Minute

// PipelineFactory builds a supply pipeline for an account. Injected so the
// manager stays decoupled from pipeline wiring.
type PipelineFactory func(accountID string) *prefetch.Service

type viewerSession struct {
	accountID string
	history   *History
	pipeline  *prefetch.Service
	lastUsed  time.Time
}

// Manager keys all browsing state by session token: one History and one
// prefetch pipeline per active viewer session, created lazily on first use
// and reclaimed on logout or idleness. Nothing here is process-global.
type Manager struct {
	factory PipelineFactory

	mu       sync.Mutex
	sessions map[string]*viewerSession

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a session manager using the given pipeline factory.
func NewManager(factory PipelineFactory) *Manager {
	return &Manager{
		factory:  factory,
		sessions: make(map[string]*viewerSession),
	}
}

// Start begins the idle-session reaper and fixes the base context that
// session pipelines run under.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.reapLoop()
}

// Stop shuts down every session pipeline and the reaper.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	sessions := m.sessions
	m.sessions = make(map[string]*viewerSession)
	m.mu.Unlock()

	for _, s := range sessions {
		s.pipeline.Stop()
	}
	m.wg.Wait()
}

// Advance shows the viewer their next movie: a redo if they went back, or a
// fresh pull from their prefetch queue otherwise.
func (m *Manager) Advance(ctx context.Context, sessionID, accountID string) (models.Movie, error) {
	s := m.getOrCreate(sessionID, accountID)
	return s.history.Advance(ctx, s.pipeline)
}

// Retreat steps the viewer back to the previously shown movie.
func (m *Manager) Retreat(sessionID string) (models.Movie, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		s.lastUsed = time.Now()
	}
	m.mu.Unlock()
	if !ok {
		return models.Movie{}, ErrNoHistory
	}
	return s.history.Retreat()
}

// Current returns the movie this session is presently showing, if any.
func (m *Manager) Current(sessionID string) (models.Movie, bool) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return models.Movie{}, false
	}
	return s.history.Current()
}

// SetCriteria replaces the session's filter criteria and returns the
// normalized criteria as stored. The pipeline drains its stale buffer and
// the browsing history is cleared: the old sequence no longer reflects what
// the viewer asked for.
func (m *Manager) SetCriteria(sessionID, accountID string, criteria models.FilterCriteria) models.FilterCriteria {
	s := m.getOrCreate(sessionID, accountID)
	stored := s.pipeline.SetCriteria(criteria)
	s.history.Clear()
	return stored
}

// Criteria returns the session's active criteria.
func (m *Manager) Criteria(sessionID, accountID string) models.FilterCriteria {
	s := m.getOrCreate(sessionID, accountID)
	return s.pipeline.Criteria()
}

// EndSession tears down a session's pipeline and history, e.g. on logout.
func (m *Manager) EndSession(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if ok {
		s.pipeline.Stop()
	}
}

func (m *Manager) getOrCreate(sessionID, accountID string) *viewerSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		s.lastUsed = time.Now()
		return s
	}

	s := &viewerSession{
		accountID: accountID,
		history:   NewHistory(),
		pipeline:  m.factory(accountID),
		lastUsed:  time.Now(),
	}
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	s.pipeline.Start(ctx)
	m.sessions[sessionID] = s
	return s
}

// reapLoop reclaims sessions that have gone idle.
func (m *Manager) reapLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

func (m *Manager) reapIdle() {
	var stale []*viewerSession
	m.mu.Lock()
	for id, s := range m.sessions {
		if time.Since(s.lastUsed) > sessionIdleTTL {
			delete(m.sessions, id)
			stale = append(stale, s)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.pipeline.Stop()
	}
	if len(stale) > 0 {
		log.Printf("[navigation] reclaimed %d idle viewer sessions", len(stale))
	}
}
