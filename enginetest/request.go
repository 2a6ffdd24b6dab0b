package enginetest

import (
	"fmt"

	"github.com/govm-net/enginetest-support/engine"
	"github.com/govm-net/enginetest-support/types"
)

// ExecuteRequestBuilder assembles an engine.ExecuteRequest
type ExecuteRequestBuilder struct {
	req        engine.ExecuteRequest
	args       map[string]any
	deployHash bool
}

func newRequest(account types.AccountHash, session engine.ExecutableItem, args map[string]any) *ExecuteRequestBuilder {
	copied := make(map[string]any, len(args))
	for name, v := range args {
		copied[name] = v
	}
	return &ExecuteRequestBuilder{
		req:  engine.ExecuteRequest{Account: account, Session: session},
		args: copied,
	}
}

// Standard runs the session module registered or stored under moduleName
func Standard(account types.AccountHash, moduleName string, args map[string]any) *ExecuteRequestBuilder {
	return newRequest(account, engine.ModuleBytes{Name: moduleName}, args)
}

// ModuleBytes runs inline wasm session code
func ModuleBytes(account types.AccountHash, code []byte, args map[string]any) *ExecuteRequestBuilder {
	return newRequest(account, engine.ModuleBytes{Code: code}, args)
}

// ContractCallByHash calls entryPoint of the contract at hash
func ContractCallByHash(account types.AccountHash, hash types.HashAddr, entryPoint string, args map[string]any) *ExecuteRequestBuilder {
	return newRequest(account, engine.StoredContractByHash{Hash: hash, EntryPoint: entryPoint}, args)
}

// ContractCallByName calls entryPoint of the contract under the account's
// named key name
func ContractCallByName(account types.AccountHash, name, entryPoint string, args map[string]any) *ExecuteRequestBuilder {
	return newRequest(account, engine.StoredContractByName{Name: name, EntryPoint: entryPoint}, args)
}

// WithArg sets a single runtime argument
func (b *ExecuteRequestBuilder) WithArg(name string, value any) *ExecuteRequestBuilder {
	b.args[name] = value
	return b
}

func (b *ExecuteRequestBuilder) WithDeployHash(hash [32]byte) *ExecuteRequestBuilder {
	b.req.DeployHash = hash
	b.deployHash = true
	return b
}

func (b *ExecuteRequestBuilder) WithBlockTime(ms uint64) *ExecuteRequestBuilder {
	b.req.BlockTime = ms
	return b
}

// Build encodes the arguments and returns the request. Arguments that have no
// CLType are a programming error and panic. Without an explicit deploy hash
// one is derived from the session and its arguments.
func (b *ExecuteRequestBuilder) Build() engine.ExecuteRequest {
	args, err := engine.NewRuntimeArgs(b.args)
	if err != nil {
		panic(fmt.Errorf("invalid runtime args: %w", err))
	}
	req := b.req
	req.Args = args
	if !b.deployHash {
		parts := [][]byte{[]byte(req.Session.String())}
		for _, arg := range args {
			parts = append(parts, []byte(arg.Name), arg.Value.ToBytes())
		}
		req.DeployHash = types.Blake2b256(parts...)
	}
	return req
}
