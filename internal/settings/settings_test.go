package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	settings, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.SchemaVersion != schemaVersion {
		t.Fatalf("schema version = %d", settings.SchemaVersion)
	}
	if !settings.Sync.Optimistic || settings.Sync.SettleDelayMS != defaultSettleDelayMS {
		t.Fatalf("unexpected sync defaults: %+v", settings.Sync)
	}
}

func TestUpdateRoundTrips(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if _, err := store.Update(func(s *Settings) {
		s.Debug = true
		s.Sync.SettleDelayMS = 300
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	settings, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !settings.Debug || settings.Sync.SettleDelayMS != 300 {
		t.Fatalf("settings not persisted: %+v", settings)
	}
}

func TestBackfillRepairsZeroDelay(t *testing.T) {
	settings := &Settings{}
	backfillSettings(settings)
	if settings.Sync.SettleDelayMS != defaultSettleDelayMS {
		t.Fatalf("settle delay = %d", settings.Sync.SettleDelayMS)
	}
}

func TestLoadSchemaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	content := "rootMarker: \"# Workbook\"\nsheetHeaderLevel: 3\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	schema, err := LoadSchemaFile(path)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	if schema.RootMarker != "# Workbook" || schema.SheetHeaderLevel != 3 {
		t.Fatalf("schema = %+v", schema)
	}
	// Omitted fields keep their defaults.
	if schema.TableHeaderLevel != 3 || schema.ColumnSeparator != "|" {
		t.Fatalf("defaults lost: %+v", schema)
	}
}
