package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"mdsheet/engine/internal/model"
)

const schemaVersion = 1

const (
	defaultSettleDelayMS = 150
)

// Sync configures the host patch pipeline.
type Sync struct {
	// Optimistic applies patches locally before the host acknowledges them.
	Optimistic bool `json:"optimistic"`
	// SettleDelayMS is the pause after the initial bulk recalculation before
	// the first patch goes out, so the host editor finishes its own parse.
	SettleDelayMS int `json:"settle_delay_ms"`
}

type Settings struct {
	SchemaVersion int  `json:"schema_version"`
	Debug         bool `json:"debug,omitempty"`
	Sync          Sync `json:"sync"`
}

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultSettings(), nil
		}
		return nil, err
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	backfillSettings(&settings)
	return &settings, nil
}

func (s *Store) Save(settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	backfillSettings(settings)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *Store) Update(fn func(*Settings)) (*Settings, error) {
	settings, err := s.Load()
	if err != nil {
		return nil, err
	}
	fn(settings)
	return settings, s.Save(settings)
}

// Defaults returns the settings used when no store is configured.
func Defaults() *Settings { return defaultSettings() }

func defaultSettings() *Settings {
	return &Settings{
		SchemaVersion: schemaVersion,
		Sync: Sync{
			Optimistic:    true,
			SettleDelayMS: defaultSettleDelayMS,
		},
	}
}

func backfillSettings(settings *Settings) {
	if settings.SchemaVersion == 0 {
		settings.SchemaVersion = schemaVersion
	}
	if settings.Sync.SettleDelayMS <= 0 {
		settings.Sync.SettleDelayMS = defaultSettleDelayMS
	}
}

// LoadSchemaFile reads a markdown layout schema from a YAML file, filling
// omitted fields with the defaults. The export CLI uses this; the editor host
// passes the same shape as JSON at session initialization instead.
func LoadSchemaFile(path string) (model.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.DefaultSchema(), err
	}
	schema := model.DefaultSchema()
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return model.DefaultSchema(), err
	}
	schema.Backfill()
	return schema, nil
}
