package config

import (
	"fmt"

	"github.com/knadh/koanf/v2"
)

type Manager struct {
	sources []*Source
	config  Config
}

func NewManager(sources ...*Source) *Manager {
	return &Manager{
		sources: sources,
	}
}

func (m *Manager) Config() Config {
	return m.config
}

// Load merges defaults with the configured sources and validates the result.
// Source order determines precedence: later sources override earlier ones,
// and every source overrides the defaults.
func (m *Manager) Load() error {
	defaults, err := DefaultConfig()
	if err != nil {
		return err
	}

	combinedK := koanf.New(".")
	if err := LoadStruct(combinedK, defaults); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}

	for _, source := range m.sources {
		err := combinedK.Load(source.Provider(combinedK), source.Parser, source.Options...)
		if err != nil {
			return fmt.Errorf("failed to load config source: %w", err)
		}
	}

	var combined Config
	if err := combinedK.Unmarshal("", &combined); err != nil {
		return fmt.Errorf("failed to unmarshal combined config: %w", err)
	}

	if err := combined.Validate(); err != nil {
		return err
	}

	m.config = combined

	return nil
}
