package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DirStore reads agent definitions from a directory of JSON files, one file
// per agent (<id>.json). Files are loaded once at construction and can be
// reloaded explicitly; reads are lock-protected so concurrent turns may share
// one store.
type DirStore struct {
	dir  string
	mu   sync.RWMutex
	defs map[string]AgentDefinition
}

// NewDirStore loads all definitions from dir. Missing directory yields an
// empty store rather than an error so first-run setups can seed defaults.
func NewDirStore(dir string) (*DirStore, error) {
	s := &DirStore{dir: dir, defs: make(map[string]AgentDefinition)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads every *.json file in the store directory.
func (s *DirStore) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read agent config dir: %w", err)
	}

	defs := make(map[string]AgentDefinition)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		def, err := loadDefinition(path)
		if err != nil {
			return err
		}
		defs[def.ID] = def
	}

	s.mu.Lock()
	s.defs = defs
	s.mu.Unlock()
	return nil
}

func loadDefinition(path string) (AgentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AgentDefinition{}, fmt.Errorf("read agent config %s: %w", path, err)
	}
	// Enabled and StreamEvents default to true when the file omits them.
	def := AgentDefinition{Enabled: true, StreamEvents: true}
	if err := json.Unmarshal(data, &def); err != nil {
		return AgentDefinition{}, fmt.Errorf("parse agent config %s: %w", path, err)
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	return def, nil
}

// Save writes a definition to <id>.json and updates the in-memory view.
func (s *DirStore) Save(def AgentDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("agent definition requires an id")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create agent config dir: %w", err)
	}
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("encode agent config %s: %w", def.ID, err)
	}
	path := filepath.Join(s.dir, def.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write agent config %s: %w", path, err)
	}

	s.mu.Lock()
	s.defs[def.ID] = def
	s.mu.Unlock()
	return nil
}

// SeedDefaults writes any default definition whose ID is not yet present on
// disk. Existing files are never overwritten.
func (s *DirStore) SeedDefaults() error {
	for _, def := range DefaultDefinitions() {
		if _, ok := s.Get(def.ID); ok {
			continue
		}
		if err := s.Save(def); err != nil {
			return err
		}
	}
	return nil
}

// Get implements Store.
func (s *DirStore) Get(agentID string) (AgentDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[agentID]
	return def, ok
}

// ListEnabledMembers implements Store.
func (s *DirStore) ListEnabledMembers(agentID string) []AgentDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coord, ok := s.defs[agentID]
	if !ok {
		return nil
	}
	members := make([]AgentDefinition, 0, len(coord.Members))
	for _, memberID := range coord.Members {
		member, ok := s.defs[memberID]
		if !ok || !member.Enabled {
			continue
		}
		members = append(members, member)
	}
	return members
}
