// Package mapping is the Mapping Store: it loads and serves the two
// daemon-name -> canonical-name tables (physics, inventory) from a
// JSON configuration file, and can watch that file for changes so the
// agent never needs restarting to pick up a new mapping document.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Kind selects which of the store's two tables an operation targets.
// Replacing the original's "lookup by mapping-name string" callback
// with this tagged variant lets callers address the store directly
// instead of threading a closure through every layer — the dynamic
// dispatch the design called out as unnecessary.
type Kind int

const (
	Physics Kind = iota
	Inventory
)

func (k Kind) String() string {
	switch k {
	case Physics:
		return "physicsMapping"
	case Inventory:
		return "inventoryMapping"
	default:
		return "unknown"
	}
}

// ErrInvalidKind is returned by Get for any Kind other than Physics or
// Inventory.
var ErrInvalidKind = errors.New("mapping: invalid kind")

type document struct {
	PhysicsMapping   map[string]json.RawMessage `json:"physicsMapping"`
	InventoryMapping map[string]json.RawMessage `json:"inventoryMapping"`
}

// Store holds the two immutable-per-load name->name tables.
type Store struct {
	mu        sync.RWMutex
	physics   map[string]string
	inventory map[string]string
	loaded    bool

	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

func New(logger zerolog.Logger) *Store {
	return &Store{
		physics:   map[string]string{},
		inventory: map[string]string{},
		logger:    logger,
	}
}

// Load reads path and, on success, atomically replaces both tables.
// A missing or unreadable file or invalid JSON is logged and returned
// as an error; the store is left in its prior state (possibly still
// unloaded). Individual non-string entries are logged and skipped
// without failing the load.
func (s *Store) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to read mapping file")
		return err
	}

	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("mapping file is not valid json")
		return err
	}

	physics := decodeStringMap(s.logger, "physicsMapping", doc.PhysicsMapping)
	inventory := decodeStringMap(s.logger, "inventoryMapping", doc.InventoryMapping)

	s.mu.Lock()
	s.physics = physics
	s.inventory = inventory
	s.loaded = true
	s.path = path
	s.mu.Unlock()

	s.logger.Debug().
		Int("physicsMapping", len(physics)).
		Int("inventoryMapping", len(inventory)).
		Msg("mapping loaded")

	return nil
}

func decodeStringMap(logger zerolog.Logger, member string, raw map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			logger.Warn().Str("member", member).Str("key", k).Msg("skipping non-string mapping entry")
			continue
		}
		out[k] = s
	}
	return out
}

// Get returns a snapshot of the table for kind.
func (s *Store) Get(kind Kind) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case Physics:
		return s.physics, nil
	case Inventory:
		return s.inventory, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidKind, kind)
	}
}

func (s *Store) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// WatchAndReload starts watching the last successfully loaded file for
// writes and reloads it in the background on every change. It returns
// an error if Load has not yet succeeded once. Call Close to stop.
func (s *Store) WatchAndReload() error {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()

	if path == "" {
		return errors.New("mapping: no file loaded yet")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return err
	}
	s.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := s.Load(path); err != nil {
						s.logger.Error().Err(err).Msg("failed to reload mapping file after change")
					} else {
						s.logger.Info().Str("path", path).Msg("mapping file reloaded")
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Error().Err(err).Msg("mapping file watcher error")
			}
		}
	}()

	return nil
}

func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}
