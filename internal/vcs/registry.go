package vcs

import (
	"fmt"
	"sync"
)

// Constructor creates a Repo for a working tree directory.
// Implementations register themselves with the registry using Register().
type Constructor func(dir string) (Repo, error)

// registry maps VCS types to their constructors
var (
	registry      = make(map[Type]Constructor)
	registryMutex sync.RWMutex
)

// Register registers a VCS implementation constructor.
// This is called from init() functions in implementation packages.
//
// Example:
//
//	func init() {
//	    vcs.Register(vcs.TypeGit, func(dir string) (vcs.Repo, error) {
//	        return New(dir)
//	    })
//	}
func Register(t Type, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("vcs: Register constructor is nil for type %s", t))
	}

	if _, exists := registry[t]; exists {
		panic(fmt.Sprintf("vcs: Register called twice for type %s", t))
	}

	registry[t] = constructor
}

// Open creates a Repo of type t rooted at dir.
func Open(t Type, dir string) (Repo, error) {
	constructor := getConstructor(t)
	if constructor == nil {
		return nil, fmt.Errorf("%w: %s (is the backend package imported?)", ErrUnknownType, t)
	}
	return constructor(dir)
}

// getConstructor retrieves the constructor for a VCS type.
// Returns nil if the type is not registered.
func getConstructor(t Type) Constructor {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	return registry[t]
}

// IsRegistered returns true if a constructor is registered for the given type.
func IsRegistered(t Type) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, exists := registry[t]
	return exists
}

// RegisteredTypes returns all registered VCS types.
// Useful for testing and debugging.
func RegisteredTypes() []Type {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	return types
}

// UnregisterAll clears all registered constructors.
// This is primarily useful for testing.
func UnregisterAll() {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	registry = make(map[Type]Constructor)
}
