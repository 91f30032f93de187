package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Config holds all runtime settings. It is stored as config.json inside the
// data directory and reloaded through the Manager.
type Config struct {
	ListenAddr    string `json:"listenAddr"`
	DataDir       string `json:"dataDir"`
	CatalogDBPath string `json:"catalogDbPath"`
	UserDBPath    string `json:"userDbPath"`

	// TMDB is the secondary metadata provider used for artwork enrichment.
	TMDBAPIKey string `json:"tmdbApiKey"`

	// Prefetch pipeline tuning.
	QueueCapacity int `json:"queueCapacity"`
	QueueLowWater int `json:"queueLowWater"`

	SessionDurationHours int `json:"sessionDurationHours"`

	LogFile      string `json:"logFile"`
	LogMaxSizeMB int    `json:"logMaxSizeMb"`
	LogMaxAge    int    `json:"logMaxAgeDays"`
}

// SessionDuration returns the configured session lifetime.
func (c Config) SessionDuration() time.Duration {
	return time.Duration(c.SessionDurationHours) * time.Hour
}

func defaults(dataDir string) Config {
	return Config{
		ListenAddr:           ":8085",
		DataDir:              dataDir,
		CatalogDBPath:        filepath.Join(dataDir, "catalog.db"),
		UserDBPath:           filepath.Join(dataDir, "nextreel.db"),
		QueueCapacity:        3,
		QueueLowWater:        2,
		SessionDurationHours: 30 * 24,
		LogFile:              filepath.Join(dataDir, "logs", "nextreel.log"),
		LogMaxSizeMB:         20,
		LogMaxAge:            14,
	}
}

// Manager provides synchronized access to the configuration. Readers get a
// snapshot; Save atomically rewrites config.json.
type Manager struct {
	mu   sync.RWMutex
	path string
	cfg  Config
}

// NewManager loads config.json from the data directory, creating it with
// defaults on first run. Environment variables override file values.
func NewManager(dataDir string) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	m := &Manager{
		path: filepath.Join(dataDir, "config.json"),
		cfg:  defaults(dataDir),
	}

	data, err := os.ReadFile(m.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &m.cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", m.path, err)
		}
	case os.IsNotExist(err):
		if err := m.save(); err != nil {
			return nil, err
		}
		log.Printf("[config] wrote default config to %s", m.path)
	default:
		return nil, fmt.Errorf("read %s: %w", m.path, err)
	}

	m.applyEnvOverrides()
	m.normalize()
	return m, nil
}

// Get returns a snapshot of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Update replaces the configuration and persists it.
func (m *Manager) Update(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.normalizeLocked()
	return m.save()
}

func (m *Manager) applyEnvOverrides() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v := os.Getenv("NEXTREEL_LISTEN_ADDR"); v != "" {
		m.cfg.ListenAddr = v
	}
	if v := os.Getenv("NEXTREEL_CATALOG_DB"); v != "" {
		m.cfg.CatalogDBPath = v
	}
	if v := os.Getenv("NEXTREEL_USER_DB"); v != "" {
		m.cfg.UserDBPath = v
	}
	if v := os.Getenv("NEXTREEL_TMDB_API_KEY"); v != "" {
		m.cfg.TMDBAPIKey = v
	}
	if v := os.Getenv("NEXTREEL_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			m.cfg.QueueCapacity = n
		}
	}
}

func (m *Manager) normalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.normalizeLocked()
}

// normalizeLocked keeps the prefetch tuning sane: capacity at least 1, low
// water below capacity. Callers must hold mu.
func (m *Manager) normalizeLocked() {
	if m.cfg.QueueCapacity < 1 {
		m.cfg.QueueCapacity = 3
	}
	if m.cfg.QueueLowWater < 1 || m.cfg.QueueLowWater >= m.cfg.QueueCapacity {
		m.cfg.QueueLowWater = m.cfg.QueueCapacity - 1
		if m.cfg.QueueLowWater < 1 {
			m.cfg.QueueLowWater = 1
		}
	}
	if m.cfg.SessionDurationHours <= 0 {
		m.cfg.SessionDurationHours = 30 * 24
	}
}

// save writes config.json atomically. Callers must hold mu.
func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}
