package state

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Type names a GlobalState implementation
type Type string

const (
	// MemoryType represents the in-memory implementation
	MemoryType Type = "memory"
	// DBType represents the sqlite-backed implementation
	DBType Type = "db"
)

var (
	ErrUnknownBackend = errors.New("unknown global state backend")
	ErrInvalidParam   = errors.New("invalid global state parameter")
)

// Params are backend parameters, e.g. db_path
type Params map[string]any

// Constructor creates a GlobalState from params that have been checked
// against the backend's defaults
type Constructor func(params Params) (GlobalState, error)

// Backend is a registered GlobalState implementation. Defaults lists every
// parameter the backend accepts with its default value; supplied values must
// have the default's type.
type Backend struct {
	New        Constructor
	Defaults   Params
	Persistent bool // state survives Close and reopening
}

type registry struct {
	mu       sync.RWMutex
	backends map[Type]Backend
}

var defaultRegistry = &registry{backends: make(map[Type]Backend)}

// Register adds a backend. Registering the same type twice is an error.
func Register(st Type, b Backend) error {
	if b.New == nil {
		return fmt.Errorf("state type %s has no constructor", st)
	}
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()

	if _, exists := defaultRegistry.backends[st]; exists {
		return fmt.Errorf("state type %s already registered", st)
	}
	defaultRegistry.backends[st] = b
	return nil
}

// Lookup returns the backend registered for st
func Lookup(st Type) (Backend, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	b, ok := defaultRegistry.backends[st]
	return b, ok
}

// resolveParams overlays supplied on the backend defaults
func resolveParams(st Type, defaults, supplied Params) (Params, error) {
	out := make(Params, len(defaults))
	for name, v := range defaults {
		out[name] = v
	}
	for name, v := range supplied {
		def, ok := defaults[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s does not accept %q", ErrInvalidParam, st, name)
		}
		if v == nil {
			continue
		}
		if fmt.Sprintf("%T", v) != fmt.Sprintf("%T", def) {
			return nil, fmt.Errorf("%w: %s.%s must be %T, got %T", ErrInvalidParam, st, name, def, v)
		}
		out[name] = v
	}
	return out, nil
}

// Get opens a new instance of st, the memory backend if st is empty
func Get(st Type, params Params) (GlobalState, error) {
	if st == "" {
		st = MemoryType
	}
	b, ok := Lookup(st)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, st)
	}
	resolved, err := resolveParams(st, b.Defaults, params)
	if err != nil {
		return nil, err
	}
	gs, err := b.New(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s global state: %w", st, err)
	}
	slog.Debug("opened global state", "type", st, "persistent", b.Persistent, "root", gs.RootHash())
	return gs, nil
}

// ListRegistered returns the registered implementation names, sorted
func ListRegistered() []Type {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()

	out := make([]Type, 0, len(defaultRegistry.backends))
	for st := range defaultRegistry.backends {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
