package nft

import (
	"fmt"

	"github.com/govm-net/enginetest-support/engine"
	"github.com/govm-net/enginetest-support/types"
)

// InstallerRequestBuilder builds the install request of a collection.
// Arguments can be replaced with arbitrary CLValues or removed to exercise
// the installer's validation.
type InstallerRequestBuilder struct {
	account     types.AccountHash
	sessionFile string
	args        map[string]types.CLValue
	deployHash  *[32]byte
}

// NewInstallerRequestBuilder starts from a valid one-token collection
func NewInstallerRequestBuilder(account types.AccountHash, sessionFile string) *InstallerRequestBuilder {
	return &InstallerRequestBuilder{
		account:     account,
		sessionFile: sessionFile,
		args: map[string]types.CLValue{
			ArgCollectionName:   types.MustCLValue(""),
			ArgCollectionSymbol: types.MustCLValue(""),
			ArgTotalTokenSupply: types.MustCLValue(uint64(1)),
			ArgAllowMinting:     types.MustCLValue(true),
			ArgOwnershipMode:    types.MustCLValue(uint8(OwnershipMinter)),
			ArgMintingMode:      types.MustCLValue(uint8(MintingInstaller)),
		},
	}
}

func (b *InstallerRequestBuilder) WithCollectionName(name string) *InstallerRequestBuilder {
	return b.WithArg(ArgCollectionName, types.MustCLValue(name))
}

func (b *InstallerRequestBuilder) WithInvalidCollectionName(v types.CLValue) *InstallerRequestBuilder {
	return b.WithArg(ArgCollectionName, v)
}

func (b *InstallerRequestBuilder) WithCollectionSymbol(symbol string) *InstallerRequestBuilder {
	return b.WithArg(ArgCollectionSymbol, types.MustCLValue(symbol))
}

func (b *InstallerRequestBuilder) WithInvalidCollectionSymbol(v types.CLValue) *InstallerRequestBuilder {
	return b.WithArg(ArgCollectionSymbol, v)
}

func (b *InstallerRequestBuilder) WithTotalTokenSupply(supply uint64) *InstallerRequestBuilder {
	return b.WithArg(ArgTotalTokenSupply, types.MustCLValue(supply))
}

func (b *InstallerRequestBuilder) WithInvalidTotalTokenSupply(v types.CLValue) *InstallerRequestBuilder {
	return b.WithArg(ArgTotalTokenSupply, v)
}

func (b *InstallerRequestBuilder) WithAllowMinting(allow bool) *InstallerRequestBuilder {
	return b.WithArg(ArgAllowMinting, types.MustCLValue(allow))
}

func (b *InstallerRequestBuilder) WithOwnershipMode(mode OwnershipMode) *InstallerRequestBuilder {
	return b.WithArg(ArgOwnershipMode, types.MustCLValue(uint8(mode)))
}

func (b *InstallerRequestBuilder) WithMintingMode(mode MintingMode) *InstallerRequestBuilder {
	return b.WithArg(ArgMintingMode, types.MustCLValue(uint8(mode)))
}

// WithArg sets any runtime argument
func (b *InstallerRequestBuilder) WithArg(name string, v types.CLValue) *InstallerRequestBuilder {
	b.args[name] = v
	return b
}

// Without removes a runtime argument
func (b *InstallerRequestBuilder) Without(name string) *InstallerRequestBuilder {
	delete(b.args, name)
	return b
}

func (b *InstallerRequestBuilder) WithDeployHash(hash [32]byte) *InstallerRequestBuilder {
	b.deployHash = &hash
	return b
}

// Build returns the install request
func (b *InstallerRequestBuilder) Build() engine.ExecuteRequest {
	args := make(map[string]any, len(b.args))
	for name, v := range b.args {
		args[name] = v
	}
	runtimeArgs, err := engine.NewRuntimeArgs(args)
	if err != nil {
		// CLValues are passed through unchanged
		panic(fmt.Errorf("invalid installer args: %w", err))
	}

	req := engine.ExecuteRequest{
		Account: b.account,
		Session: engine.ModuleBytes{Name: b.sessionFile},
		Args:    runtimeArgs,
	}
	if b.deployHash != nil {
		req.DeployHash = *b.deployHash
	} else {
		parts := [][]byte{[]byte(b.sessionFile)}
		for _, a := range runtimeArgs {
			parts = append(parts, []byte(a.Name), a.Value.ToBytes())
		}
		req.DeployHash = types.Blake2b256(parts...)
	}
	return req
}
