package web

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"signalscanner/internal/config"
)

// Settings is the subset of configuration the HTTP front-end may change at
// runtime. The API key is deliberately absent: it stays in the environment
// and is never written to disk.
type Settings struct {
	Backend      string `json:"backend"`
	Model        string `json:"model"`
	Endpoint     string `json:"endpoint,omitempty"`
	Prompt       string `json:"prompt"`
	LookbackDays int    `json:"days_back"`
}

// Validate mirrors the config-level checks so a bad request never reaches
// the persisted file.
func (s Settings) Validate() error {
	switch s.Backend {
	case config.BackendHosted, config.BackendLocal:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", config.BackendHosted, config.BackendLocal, s.Backend)
	}
	if s.LookbackDays < 1 || s.LookbackDays > 30 {
		return fmt.Errorf("days_back must be within [1,30], got %d", s.LookbackDays)
	}
	if s.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	return nil
}

// SettingsStore persists runtime settings as JSON, falling back to the
// startup configuration when no file exists yet.
type SettingsStore struct {
	mu       sync.Mutex
	path     string
	current  Settings
	fallback Settings
}

// NewSettingsStore loads persisted settings from path, seeding from cfg when
// the file is missing or unreadable.
func NewSettingsStore(path string, cfg config.Config) *SettingsStore {
	fallback := Settings{
		Backend:      cfg.Evaluator.Backend,
		Model:        cfg.Evaluator.Model,
		Endpoint:     cfg.Evaluator.Endpoint,
		Prompt:       cfg.Evaluator.Prompt,
		LookbackDays: cfg.Scan.LookbackDays,
	}

	s := &SettingsStore{path: path, current: fallback, fallback: fallback}

	raw, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var stored Settings
	if err := json.Unmarshal(raw, &stored); err != nil {
		return s
	}
	if stored.Validate() == nil {
		s.current = stored
	}
	return s
}

// Get returns the active settings.
func (s *SettingsStore) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update validates, persists, and activates new settings.
func (s *SettingsStore) Update(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	s.current = next
	return nil
}

// EvaluatorConfig projects the active settings onto the provider
// configuration, carrying the startup API key through.
func (s *SettingsStore) EvaluatorConfig(apiKey string) config.EvaluatorConfig {
	cur := s.Get()
	return config.EvaluatorConfig{
		Backend:  cur.Backend,
		Model:    cur.Model,
		Endpoint: cur.Endpoint,
		APIKey:   apiKey,
		Prompt:   cur.Prompt,
	}
}
