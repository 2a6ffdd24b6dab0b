// Package enginetest drives an Engine from tests. Builder methods fail the
// bound test instead of returning errors, except for the query methods which
// leave the decision to the caller.
package enginetest

import (
	"context"

	"github.com/stretchr/testify/require"

	"github.com/govm-net/enginetest-support/engine"
	"github.com/govm-net/enginetest-support/genesis"
	"github.com/govm-net/enginetest-support/state"
	"github.com/govm-net/enginetest-support/types"
)

var (
	// DefaultAccountPublicKey is the public key of the account funded by
	// genesis.DefaultRequest
	DefaultAccountPublicKey = genesis.DefaultAccountPublicKey()
	// DefaultAccountAddr is the account hash of DefaultAccountPublicKey
	DefaultAccountAddr = DefaultAccountPublicKey.AccountHash()
)

type tHelper interface {
	Helper()
}

// Builder wraps an Engine and the results of the requests it executed
type Builder struct {
	t       require.TestingT
	engine  *engine.Engine
	results []*engine.ExecutionResult
}

// NewInMemoryBuilder creates a builder over a fresh in-memory engine
func NewInMemoryBuilder(t require.TestingT) *Builder {
	return NewBuilder(t, engine.DefaultConfig())
}

// NewBuilder creates a builder over an engine created from config
func NewBuilder(t require.TestingT, config *engine.Config) *Builder {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	e, err := engine.NewEngine(config)
	require.NoError(t, err, "failed to create engine")
	return &Builder{t: t, engine: e}
}

func (b *Builder) helper() {
	if h, ok := b.t.(tHelper); ok {
		h.Helper()
	}
}

// Engine returns the underlying engine
func (b *Builder) Engine() *engine.Engine {
	return b.engine
}

// RunGenesis runs genesis and commits it
func (b *Builder) RunGenesis(req genesis.Request) *Builder {
	b.helper()
	_, err := b.engine.RunGenesis(req)
	require.NoError(b.t, err, "genesis must succeed")
	return b
}

// Exec executes req and records the result
func (b *Builder) Exec(req engine.ExecuteRequest) *Builder {
	b.results = append(b.results, b.engine.Exec(context.Background(), req))
	return b
}

// Commit applies the last result. A failed result has nothing to apply.
func (b *Builder) Commit() *Builder {
	b.helper()
	last := b.LastResult()
	require.NotNil(b.t, last, "nothing executed")
	if !last.IsSuccess() {
		return b
	}
	_, err := b.engine.Commit(last)
	require.NoError(b.t, err, "commit must succeed")
	return b
}

// ExpectSuccess fails the test unless the last execution succeeded
func (b *Builder) ExpectSuccess() *Builder {
	b.helper()
	last := b.LastResult()
	require.NotNil(b.t, last, "nothing executed")
	require.NoError(b.t, last.Err, "expected successful execution")
	return b
}

// ExpectFailure fails the test unless the last execution failed
func (b *Builder) ExpectFailure() *Builder {
	b.helper()
	last := b.LastResult()
	require.NotNil(b.t, last, "nothing executed")
	require.Error(b.t, last.Err, "expected failed execution")
	return b
}

// GetError returns the error of the last execution, nil if it succeeded
func (b *Builder) GetError() error {
	last := b.LastResult()
	if last == nil {
		return nil
	}
	return last.Err
}

// LastResult returns the most recent execution result or nil
func (b *Builder) LastResult() *engine.ExecutionResult {
	if len(b.results) == 0 {
		return nil
	}
	return b.results[len(b.results)-1]
}

// Query resolves path under base in committed state
func (b *Builder) Query(base types.Key, path []string) (types.StoredValue, error) {
	return b.engine.Query(base, path)
}

// QueryDictionaryItem reads itemKey from the dictionary rooted at seed
func (b *Builder) QueryDictionaryItem(seed types.URef, itemKey string) (types.StoredValue, error) {
	return b.engine.QueryDictionaryItem(seed, itemKey)
}

// GetExpectedAccount returns the committed account, failing the test if it
// does not exist
func (b *Builder) GetExpectedAccount(hash types.AccountHash) *types.Account {
	b.helper()
	a, err := b.engine.GetAccount(hash)
	require.NoError(b.t, err, "account should exist")
	return a
}

// GetNamedKey returns a named key of the account, failing the test if absent
func (b *Builder) GetNamedKey(hash types.AccountHash, name string) types.Key {
	b.helper()
	a := b.GetExpectedAccount(hash)
	k, ok := a.NamedKeys[name]
	require.True(b.t, ok, "account should have named key %s", name)
	return k
}

func (b *Builder) PostStateHash() state.RootHash {
	return b.engine.PostStateHash()
}

func (b *Builder) Close() error {
	return b.engine.Close()
}
