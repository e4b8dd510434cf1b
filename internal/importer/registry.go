package importer

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]ModeDefinition)
	registryMu sync.RWMutex
)

// Register adds an import mode to the registry.
// Panics if a mode with the same key is already registered.
func Register(def ModeDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("import mode already registered: %s", def.Info.Key))
	}

	// Populate template columns from the schema if not set
	if len(def.Info.Columns) == 0 {
		def.Info.Columns = def.Schema.Columns()
	}

	registry[def.Info.Key] = def
}

// Get returns a mode definition by key.
// Returns false if not found.
func Get(key string) (ModeDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered modes, sorted by key for consistent listings.
func All() []ModeDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ModeDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// ModeCount returns the number of registered modes.
func ModeCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered modes.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]ModeDefinition)
}
