package db

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/enginetest-support/state"
	"github.com/govm-net/enginetest-support/types"
)

func setupTestDB(t *testing.T) (*GlobalState, string) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s, path
}

func addr(b byte) [types.AddrLength]byte {
	var a [types.AddrLength]byte
	a[0] = b
	return a
}

func TestGetMissing(t *testing.T) {
	s, _ := setupTestDB(t)
	_, err := s.Get(types.HashKey(addr(1)))
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestStoredValueRecords(t *testing.T) {
	s, _ := setupTestDB(t)

	purse := types.NewURef(addr(2), types.AccessReadAddWrite)
	seed := types.NewURef(addr(3), types.AccessReadAddWrite)
	values := map[types.Key]types.StoredValue{
		types.URefKey(purse): types.NewStoredCLValue(types.MustCLValue(big.NewInt(1000))),
		types.URefKey(seed):  types.NewStoredCLValue(types.UnitValue()),
		types.AccountKey(addr(4)): types.NewStoredAccount(types.Account{
			Hash:      addr(4),
			MainPurse: purse,
			NamedKeys: types.NamedKeys{"nft_contract": types.HashKey(addr(5))},
		}),
		types.HashKey(addr(5)): types.NewStoredContract(types.Contract{
			PackageHash: addr(6),
			Module:      "contract.wasm",
			EntryPoints: []string{"mint", "balance_of"},
			NamedKeys:   types.NamedKeys{"token_owners": types.URefKey(seed)},
		}),
		types.DictionaryKey(types.DictionaryItemAddr(seed, "0")): types.NewStoredDictionary(types.DictionaryValue{
			Value:    types.MustCLValue("meta"),
			SeedAddr: seed.Addr,
			ItemKey:  "0",
		}),
	}

	effects := state.NewEffects()
	for k, v := range values {
		effects.Put(k, v)
	}
	root, err := s.Commit(effects)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.Height())

	for k, want := range values {
		got, err := s.Get(k)
		require.NoError(t, err, k.Formatted())
		assert.Equal(t, want.Bytes(), got.Bytes(), k.Formatted())
	}

	mem := state.NewEffects()
	mem.Merge(effects)
	assert.Equal(t, state.NextRoot(state.RootHash{}, mem), root)
}

func TestOverwriteAndReopen(t *testing.T) {
	s, path := setupTestDB(t)
	key := types.HashKey(addr(7))

	e1 := state.NewEffects()
	e1.Put(key, types.NewStoredCLValue(types.MustCLValue(uint64(1))))
	_, err := s.Commit(e1)
	require.NoError(t, err)

	e2 := state.NewEffects()
	e2.Put(key, types.NewStoredCLValue(types.MustCLValue(uint64(2))))
	root, err := s.Commit(e2)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, root, reopened.RootHash())
	assert.Equal(t, uint64(2), reopened.Height())

	v, err := reopened.Get(key)
	require.NoError(t, err)
	cv, ok := v.AsCLValue()
	require.True(t, ok)
	n, err := types.IntoT[uint64](cv)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestRegistryConstructor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.db")
	s, err := state.Get(state.DBType, map[string]any{"db_path": path})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, path)
}

func TestRegistryParamValidation(t *testing.T) {
	b, ok := state.Lookup(state.DBType)
	require.True(t, ok)
	assert.True(t, b.Persistent)
	assert.Equal(t, defaultDBPath, b.Defaults["db_path"])

	_, err := state.Get(state.DBType, state.Params{"db_path": 42})
	assert.ErrorIs(t, err, state.ErrInvalidParam)
	assert.Contains(t, err.Error(), "must be string")

	_, err = state.Get(state.DBType, state.Params{"path": "x.db"})
	assert.ErrorIs(t, err, state.ErrInvalidParam)

	_, err = state.Get(state.DBType, state.Params{"db_path": ""})
	assert.ErrorIs(t, err, state.ErrInvalidParam)
	assert.Contains(t, err.Error(), "failed to open db global state")
}
