// Package memory provides the in-memory GlobalState used by tests.
package memory

import (
	"log/slog"
	"sync"

	"github.com/govm-net/enginetest-support/state"
	"github.com/govm-net/enginetest-support/types"
)

// globalState keeps committed values in a map
type globalState struct {
	mu      sync.Mutex
	values  map[types.Key]types.StoredValue
	root    state.RootHash
	commits uint64
}

func init() {
	if err := state.Register(state.MemoryType, state.Backend{New: NewGlobalState}); err != nil {
		panic(err)
	}
}

// NewGlobalState creates an empty in-memory state. It accepts no params.
func NewGlobalState(state.Params) (state.GlobalState, error) {
	return New(), nil
}

// New creates an empty in-memory state
func New() state.GlobalState {
	return &globalState{
		values: make(map[types.Key]types.StoredValue),
	}
}

func (s *globalState) Get(key types.Key) (types.StoredValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key.Normalize()]
	if !ok {
		return types.StoredValue{}, state.ErrNotFound
	}
	return v.Clone(), nil
}

func (s *globalState) Commit(effects *state.Effects) (state.RootHash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range effects.Keys() {
		v, _ := effects.Get(k)
		s.values[k] = v
	}
	s.root = state.NextRoot(s.root, effects)
	s.commits++
	slog.Debug("committed effects", "backend", state.MemoryType, "writes", effects.Len(), "root", s.root, "commit", s.commits)
	return s.root, nil
}

func (s *globalState) RootHash() state.RootHash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

func (s *globalState) Close() error {
	return nil
}
