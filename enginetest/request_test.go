package enginetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/enginetest-support/engine"
	"github.com/govm-net/enginetest-support/types"
)

func TestRequestBuilderDeployHash(t *testing.T) {
	a := Standard(DefaultAccountAddr, storeModule, map[string]any{"value": "x"}).Build()
	b := Standard(DefaultAccountAddr, storeModule, map[string]any{"value": "x"}).Build()
	c := Standard(DefaultAccountAddr, storeModule, map[string]any{"value": "y"}).Build()

	assert.Equal(t, a.DeployHash, b.DeployHash)
	assert.NotEqual(t, a.DeployHash, c.DeployHash)

	explicit := Standard(DefaultAccountAddr, storeModule, nil).WithDeployHash([32]byte{9}).Build()
	assert.Equal(t, [32]byte{9}, explicit.DeployHash)
}

func TestRequestBuilderArgs(t *testing.T) {
	args := map[string]any{"b": uint64(2), "a": "one"}
	req := Standard(DefaultAccountAddr, storeModule, args).
		WithArg("c", true).
		WithBlockTime(42).
		Build()

	assert.Len(t, args, 2, "caller's map must not change")
	require.Len(t, req.Args, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{req.Args[0].Name, req.Args[1].Name, req.Args[2].Name})
	assert.Equal(t, uint64(42), req.BlockTime)

	v, ok := req.Args.Get("b")
	require.True(t, ok)
	n, err := types.IntoT[uint64](v)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestRequestBuilderSessions(t *testing.T) {
	code := []byte{0x00, 0x61, 0x73, 0x6d}
	assert.Equal(t, engine.ModuleBytes{Code: code}, ModuleBytes(DefaultAccountAddr, code, nil).Build().Session)

	byHash := ContractCallByHash(DefaultAccountAddr, types.HashAddr{1}, "mint", nil).Build()
	assert.Equal(t, engine.StoredContractByHash{Hash: types.HashAddr{1}, EntryPoint: "mint"}, byHash.Session)

	byName := ContractCallByName(DefaultAccountAddr, "nft_contract", "mint", nil).Build()
	assert.Equal(t, engine.StoredContractByName{Name: "nft_contract", EntryPoint: "mint"}, byName.Session)
	assert.Equal(t, DefaultAccountAddr, byName.Account)
}

func TestRequestBuilderInvalidArg(t *testing.T) {
	assert.Panics(t, func() {
		Standard(DefaultAccountAddr, storeModule, map[string]any{"bad": make(chan int)}).Build()
	})
}
