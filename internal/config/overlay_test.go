package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeOverlay(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStore_LoadsOverlayFiles(t *testing.T) {
	dir := t.TempDir()
	writeOverlay(t, dir, "default", `{"DailyQuest": {"server": "bilibili", "skip_cutscene": false}}`)
	writeOverlay(t, dir, "farming", `{"DailyQuest": {"stage_name": "CE-6"}}`)

	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()

	overlay := store.Overlay("default", "DailyQuest")
	if overlay == nil || overlay["server"] != "bilibili" {
		t.Errorf("default overlay = %v", overlay)
	}

	// Empty config name falls back to the default overlay.
	if got := store.Overlay("", "DailyQuest"); got == nil || got["server"] != "bilibili" {
		t.Errorf("empty-name overlay = %v", got)
	}

	if got := store.Overlay("farming", "DailyQuest"); got == nil || got["stage_name"] != "CE-6" {
		t.Errorf("farming overlay = %v", got)
	}

	// Unknown config or resource resolves to defaults.
	if got := store.Overlay("ghost", "DailyQuest"); got != nil {
		t.Errorf("unknown config overlay = %v, want nil", got)
	}
	if got := store.Overlay("default", "Arena"); got != nil {
		t.Errorf("unknown resource overlay = %v, want nil", got)
	}

	if !store.Has("farming") || store.Has("ghost") {
		t.Error("Has() misreports loaded configs")
	}
	if len(store.Names()) != 2 {
		t.Errorf("Names() = %v, want 2 entries", store.Names())
	}
}

func TestStore_MissingDirectoryIsEmpty(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nope"), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()

	if got := store.Overlay("default", "DailyQuest"); got != nil {
		t.Errorf("overlay = %v, want nil", got)
	}
	if err := store.Watch(); err != nil {
		t.Errorf("Watch() on missing dir error = %v", err)
	}
}

func TestStore_MalformedFileFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeOverlay(t, dir, "broken", `{"DailyQuest": `)

	if _, err := NewStore(dir, nil); err == nil {
		t.Fatal("NewStore() should reject a malformed overlay file")
	}
}

func TestStore_WatchReloadsChanges(t *testing.T) {
	dir := t.TempDir()
	writeOverlay(t, dir, "default", `{"DailyQuest": {"server": "official"}}`)

	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()

	if err := store.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeOverlay(t, dir, "default", `{"DailyQuest": {"server": "bilibili"}}`)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if o := store.Overlay("default", "DailyQuest"); o != nil && o["server"] == "bilibili" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("overlay edit was not picked up")
}
