// Package state defines the global state store the engine reads from and
// commits execution effects to, and a registry of store implementations.
package state

import (
	"bytes"
	"encoding/hex"
	"errors"
	"sort"

	"github.com/govm-net/enginetest-support/types"
)

// ErrNotFound is returned by Get when no value is stored under a key
var ErrNotFound = errors.New("value not found")

// RootHash identifies a committed version of global state
type RootHash [32]byte

func (h RootHash) String() string {
	return hex.EncodeToString(h[:])
}

// GlobalState is a committed key/value store of StoredValues.
// Keys are normalized before lookup, so URef access rights are ignored.
type GlobalState interface {
	// Get returns a copy of the value stored under key or ErrNotFound
	Get(key types.Key) (types.StoredValue, error)
	// Commit atomically applies effects and returns the new root hash
	Commit(effects *Effects) (RootHash, error)
	// RootHash returns the hash of the last commit
	RootHash() RootHash
	// Close releases backend resources
	Close() error
}

// Effects is the write set produced by an execution
type Effects struct {
	writes map[types.Key]types.StoredValue
}

func NewEffects() *Effects {
	return &Effects{writes: make(map[types.Key]types.StoredValue)}
}

// Put records a write, replacing any earlier write to the same key
func (e *Effects) Put(key types.Key, value types.StoredValue) {
	e.writes[key.Normalize()] = value.Clone()
}

func (e *Effects) Get(key types.Key) (types.StoredValue, bool) {
	v, ok := e.writes[key.Normalize()]
	if !ok {
		return types.StoredValue{}, false
	}
	return v.Clone(), true
}

func (e *Effects) Len() int {
	return len(e.writes)
}

// Keys returns the written keys ordered by their binary form
func (e *Effects) Keys() []types.Key {
	keys := make([]types.Key, 0, len(e.writes))
	for k := range e.writes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i].Bytes(), keys[j].Bytes()) < 0
	})
	return keys
}

// Merge applies o's writes on top of e
func (e *Effects) Merge(o *Effects) {
	for k, v := range o.writes {
		e.writes[k] = v
	}
}

// NextRoot chains prev with the ordered contents of effects
func NextRoot(prev RootHash, effects *Effects) RootHash {
	parts := [][]byte{prev[:]}
	for _, k := range effects.Keys() {
		parts = append(parts, k.Bytes(), effects.writes[k].Bytes())
	}
	return RootHash(types.Blake2b256(parts...))
}
