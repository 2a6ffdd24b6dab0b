package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/enginetest-support/state"
	"github.com/govm-net/enginetest-support/types"
)

func hashKey(b byte) types.Key {
	var h types.HashAddr
	h[0] = b
	return types.HashKey(h)
}

func TestGetMissing(t *testing.T) {
	s := New()
	_, err := s.Get(hashKey(1))
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestCommitAndGet(t *testing.T) {
	s := New()
	assert.Equal(t, state.RootHash{}, s.RootHash())

	effects := state.NewEffects()
	effects.Put(hashKey(1), types.NewStoredCLValue(types.MustCLValue(uint64(42))))
	root, err := s.Commit(effects)
	require.NoError(t, err)
	assert.NotEqual(t, state.RootHash{}, root)
	assert.Equal(t, root, s.RootHash())

	v, err := s.Get(hashKey(1))
	require.NoError(t, err)
	cv, ok := v.AsCLValue()
	require.True(t, ok)
	n, err := types.IntoT[uint64](cv)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
}

func TestReadsAreCopies(t *testing.T) {
	s := New()
	key := hashKey(2)
	effects := state.NewEffects()
	effects.Put(key, types.NewStoredContract(types.Contract{NamedKeys: types.NamedKeys{}}))
	_, err := s.Commit(effects)
	require.NoError(t, err)

	v, err := s.Get(key)
	require.NoError(t, err)
	v.Contract.NamedKeys["x"] = hashKey(3)

	again, err := s.Get(key)
	require.NoError(t, err)
	assert.Empty(t, again.Contract.NamedKeys)
}

func TestURefAccessIgnored(t *testing.T) {
	s := New()
	var addr [32]byte
	addr[0] = 9
	effects := state.NewEffects()
	effects.Put(types.URefKey(types.NewURef(addr, types.AccessReadAddWrite)), types.NewStoredCLValue(types.UnitValue()))
	_, err := s.Commit(effects)
	require.NoError(t, err)

	_, err = s.Get(types.URefKey(types.NewURef(addr, types.AccessRead)))
	assert.NoError(t, err)
}

func TestRootHashChain(t *testing.T) {
	a, b := New(), New()
	e := state.NewEffects()
	e.Put(hashKey(1), types.NewStoredCLValue(types.MustCLValue("x")))

	ra, err := a.Commit(e)
	require.NoError(t, err)
	rb, err := b.Commit(e)
	require.NoError(t, err)
	assert.Equal(t, ra, rb)

	ra2, err := a.Commit(state.NewEffects())
	require.NoError(t, err)
	assert.NotEqual(t, ra, ra2)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, state.ListRegistered(), state.MemoryType)
	s, err := state.Get("", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestRegistryParams(t *testing.T) {
	_, err := state.Get(state.MemoryType, state.Params{"db_path": "x.db"})
	assert.ErrorIs(t, err, state.ErrInvalidParam)

	_, err = state.Get("leveldb", nil)
	assert.ErrorIs(t, err, state.ErrUnknownBackend)

	assert.Error(t, state.Register(state.MemoryType, state.Backend{New: NewGlobalState}))
	assert.Error(t, state.Register("nil-constructor", state.Backend{}))
	assert.NotContains(t, state.ListRegistered(), state.Type("nil-constructor"))

	b, ok := state.Lookup(state.MemoryType)
	require.True(t, ok)
	assert.False(t, b.Persistent)
}
