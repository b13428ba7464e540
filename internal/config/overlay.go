package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/asagiri-dev/mfwrun/internal/logging"
	"github.com/asagiri-dev/mfwrun/internal/resolver"
)

// DefaultOverlayName is the overlay used when neither the run request nor
// the device names one.
const DefaultOverlayName = "default"

// overlayFile is one saved configuration: resource name to option overlay.
type overlayFile map[string]resolver.Overlay

// Store serves saved option overlays from <dir>/<name>.json files. Each
// file maps resource names to partial option-name→value overlays. The
// store can watch its directory and hot-reload edited files so a
// long-lived windowed session picks up changes.
//
// Store is safe for concurrent use.
type Store struct {
	dir    string
	logger *logging.Logger

	mu      sync.RWMutex
	configs map[string]overlayFile

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewStore loads every overlay file under dir. A missing directory is not
// an error: the store starts empty and overlays resolve to defaults.
func NewStore(dir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Store{
		dir:     dir,
		logger:  logger,
		configs: make(map[string]overlayFile),
		stopCh:  make(chan struct{}),
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading overlay directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := s.loadFile(filepath.Join(dir, entry.Name())); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// loadFile parses one overlay file and stores it under its base name.
func (s *Store) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading overlay %s: %w", path, err)
	}
	var parsed overlayFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parsing overlay %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), ".json")
	s.mu.Lock()
	s.configs[name] = parsed
	s.mu.Unlock()
	return nil
}

// Overlay returns the saved overlay for a resource under the named
// configuration. A nil result means defaults only.
func (s *Store) Overlay(configName, resource string) resolver.Overlay {
	if configName == "" {
		configName = DefaultOverlayName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[configName]
	if !ok {
		return nil
	}
	return cfg[resource]
}

// Has reports whether a configuration with the given name is loaded.
func (s *Store) Has(configName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.configs[configName]
	return ok
}

// Names returns the loaded configuration names, unordered.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.configs))
	for name := range s.configs {
		names = append(names, name)
	}
	return names
}

// Watch starts hot-reloading overlay files on filesystem changes. It is a
// no-op if the overlay directory does not exist.
func (s *Store) Watch() error {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher
	go s.watchLoop()
	return nil
}

// watchLoop processes filesystem events. Editors fire several events per
// save, so changes are debounced before reloading.
func (s *Store) watchLoop() {
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C

	pending := make(map[string]fsnotify.Op)

	for {
		select {
		case <-s.stopCh:
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[ev.Name] = ev.Op
			debounceTimer.Reset(50 * time.Millisecond)

		case <-debounceTimer.C:
			for path, op := range pending {
				s.handleChange(path, op)
			}
			pending = make(map[string]fsnotify.Op)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("overlay watcher error", "error", err)
		}
	}
}

func (s *Store) handleChange(path string, op fsnotify.Op) {
	name := strings.TrimSuffix(filepath.Base(path), ".json")

	if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		s.mu.Lock()
		delete(s.configs, name)
		s.mu.Unlock()
		s.logger.Info("overlay removed", "config", name)
		return
	}

	if err := s.loadFile(path); err != nil {
		// A malformed edit keeps the previous in-memory overlay.
		s.logger.Warn("overlay reload failed", "config", name, "error", err)
		return
	}
	s.logger.Info("overlay reloaded", "config", name)
}

// Close stops the watcher, if one was started.
func (s *Store) Close() error {
	close(s.stopCh)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
