package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// QueueSettings is the small JSON document operators edit to change queue spacing.
type QueueSettings struct {
	SpacingMinutes int `mapstructure:"intervalo_minutos" json:"intervalo_minutos"`
}

// QueueSettingsStore re-reads the settings file on every Load, so edits apply
// on the next poll cycle without a restart.
type QueueSettingsStore struct {
	mu       sync.Mutex
	path     string
	fallback int
}

func NewQueueSettingsStore(path string, fallbackMinutes int) *QueueSettingsStore {
	if fallbackMinutes <= 0 {
		fallbackMinutes = 5
	}
	return &QueueSettingsStore{path: path, fallback: fallbackMinutes}
}

// Load returns the current settings. A missing or unreadable file yields the
// configured fallback.
func (s *QueueSettingsStore) Load() QueueSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := QueueSettings{SpacingMinutes: s.fallback}
	if s.path == "" {
		return out
	}
	if _, err := os.Stat(s.path); err != nil {
		return out
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return out
	}
	var qs QueueSettings
	if err := v.Unmarshal(&qs); err != nil || qs.SpacingMinutes <= 0 {
		return out
	}
	return qs
}

// Spacing is Load().SpacingMinutes as a duration.
func (s *QueueSettingsStore) Spacing() time.Duration {
	return time.Duration(s.Load().SpacingMinutes) * time.Minute
}

// Save persists new settings.
func (s *QueueSettingsStore) Save(qs QueueSettings) error {
	if qs.SpacingMinutes <= 0 {
		return fmt.Errorf("intervalo_minutos must be positive, got %d", qs.SpacingMinutes)
	}
	if s.path == "" {
		return fmt.Errorf("queue settings file not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	v := viper.New()
	v.SetConfigType("json")
	v.Set("intervalo_minutos", qs.SpacingMinutes)
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write queue settings: %w", err)
	}
	return nil
}
