package config

import (
	"fmt"
	"sync"
)

// Store serves agent definitions to the orchestration core. Implementations
// must be safe for concurrent readers; the core never writes through a Store
// during a turn.
type Store interface {
	// Get returns the definition for an agent ID, or ok=false if absent.
	Get(agentID string) (AgentDefinition, bool)

	// ListEnabledMembers resolves the enabled member definitions of a
	// coordinator in declared order. Members that are missing or disabled
	// are silently excluded.
	ListEnabledMembers(agentID string) []AgentDefinition
}

// InMemoryStore is a map-backed Store for tests and embedded setups.
type InMemoryStore struct {
	mu   sync.RWMutex
	defs map[string]AgentDefinition
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{defs: make(map[string]AgentDefinition)}
}

// Put inserts or replaces a definition keyed by its ID.
func (s *InMemoryStore) Put(def AgentDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("agent definition requires an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.ID] = def
	return nil
}

// Get implements Store.
func (s *InMemoryStore) Get(agentID string) (AgentDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[agentID]
	return def, ok
}

// ListEnabledMembers implements Store.
func (s *InMemoryStore) ListEnabledMembers(agentID string) []AgentDefinition {
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
