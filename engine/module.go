package engine

import (
	"fmt"
	"sort"
	"sync"
)

// SessionFunc runs as session code in the context of the caller's account
type SessionFunc func(rt Runtime) error

// EntryPointFunc runs a contract entry point in the context of the contract
type EntryPointFunc func(rt Runtime) error

// Module is natively implemented contract code. Session runs when the
// module is executed as ModuleBytes; EntryPoints serve contracts installed by
// it.
type Module struct {
	Name        string
	Session     SessionFunc
	EntryPoints map[string]EntryPointFunc
}

var modules = struct {
	mu     sync.RWMutex
	byName map[string]Module
}{byName: make(map[string]Module)}

// RegisterModule adds m to the global module registry
func RegisterModule(m Module) error {
	if m.Name == "" {
		return fmt.Errorf("module name is empty")
	}
	if m.Session == nil && len(m.EntryPoints) == 0 {
		return fmt.Errorf("module %s has no code", m.Name)
	}

	modules.mu.Lock()
	defer modules.mu.Unlock()

	if _, exists := modules.byName[m.Name]; exists {
		return fmt.Errorf("module %s already registered", m.Name)
	}
	modules.byName[m.Name] = m
	return nil
}

// LookupModule returns the module registered under name
func LookupModule(name string) (Module, bool) {
	modules.mu.RLock()
	defer modules.mu.RUnlock()
	m, ok := modules.byName[name]
	return m, ok
}

// RegisteredModules returns the registered module names, sorted
func RegisteredModules() []string {
	modules.mu.RLock()
	defer modules.mu.RUnlock()

	out := make([]string, 0, len(modules.byName))
	for name := range modules.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
