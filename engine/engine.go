// Package engine executes deploys against global state.
//
// An Engine runs genesis once, then executes requests whose effects are held
// on the ExecutionResult until committed. Session code is either a native
// module registered with RegisterModule or a wasm module run by wazero.
package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/govm-net/enginetest-support/genesis"
	"github.com/govm-net/enginetest-support/repository"
	"github.com/govm-net/enginetest-support/state"
	"github.com/govm-net/enginetest-support/types"
	"github.com/govm-net/enginetest-support/wasm"

	// Register the built-in state backends
	_ "github.com/govm-net/enginetest-support/state/db"
	_ "github.com/govm-net/enginetest-support/state/memory"
)

// ErrQuery is wrapped by every query failure
var ErrQuery = errors.New("query failed")

// Config represents engine configuration
type Config struct {
	StateType              state.Type     // Global state implementation, memory by default
	StateParams            state.Params   // Global state parameters, e.g. db_path
	WasmDir                string         // Wasm module repository directory, optional
	MaxWasmSize            uint64         // Maximum wasm module size
	MaxDictionaryKeyLength int            // Maximum dictionary item key length in bytes
}

// DefaultConfig returns an in-memory configuration
func DefaultConfig() *Config {
	return &Config{
		StateType:              state.MemoryType,
		MaxWasmSize:            wasm.DefaultConfig().MaxCodeSize,
		MaxDictionaryKeyLength: 64,
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if config.MaxWasmSize == 0 {
		return fmt.Errorf("invalid max wasm size: %d", config.MaxWasmSize)
	}

	if config.MaxDictionaryKeyLength <= 0 {
		return fmt.Errorf("invalid max dictionary key length: %d", config.MaxDictionaryKeyLength)
	}

	return nil
}

// Engine is responsible for genesis, execution, commit and queries
type Engine struct {
	config      *Config
	state       state.GlobalState
	runner      *wasm.Runner
	codeManager *repository.Manager // nil without WasmDir
}

// NewEngine creates a new engine
func NewEngine(config *Config) (*Engine, error) {
	// Ensure configuration is valid
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var codeManager *repository.Manager
	if config.WasmDir != "" {
		var err error
		codeManager, err = repository.NewManager(config.WasmDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create code manager: %w", err)
		}
	}

	gs, err := state.Get(config.StateType, config.StateParams)
	if err != nil {
		return nil, fmt.Errorf("failed to get global state: %w", err)
	}

	return &Engine{
		config:      config,
		state:       gs,
		runner:      wasm.NewRunner(wasm.Config{MaxCodeSize: config.MaxWasmSize}),
		codeManager: codeManager,
	}, nil
}

// WithState replaces the engine's global state
func (e *Engine) WithState(gs state.GlobalState) *Engine {
	e.state = gs
	return e
}

func (e *Engine) GetState() state.GlobalState {
	return e.state
}

// CodeManager returns the wasm repository, or nil when none is configured
func (e *Engine) CodeManager() *repository.Manager {
	return e.codeManager
}

func (e *Engine) Close() error {
	return e.state.Close()
}

// PostStateHash returns the root hash of the last commit
func (e *Engine) PostStateHash() state.RootHash {
	return e.state.RootHash()
}

// GenesisRun reports whether anything has been committed
func (e *Engine) GenesisRun() bool {
	return e.state.RootHash() != state.RootHash{}
}

// RunGenesis creates the genesis accounts and commits them
func (e *Engine) RunGenesis(req genesis.Request) (state.RootHash, error) {
	if e.GenesisRun() {
		return state.RootHash{}, ErrGenesisAlreadyRun
	}
	if err := req.Validate(); err != nil {
		return state.RootHash{}, fmt.Errorf("%w: %v", ErrGenesisFailed, err)
	}

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], req.Timestamp)
	addrs := &addressGenerator{seed: types.Blake2b256([]byte(req.ChainName), ts[:])}

	effects := state.NewEffects()
	for _, a := range req.Accounts {
		amount := a.Balance
		if amount == nil {
			amount = new(big.Int)
		}
		balance, err := types.U512Value(amount)
		if err != nil {
			return state.RootHash{}, fmt.Errorf("%w: invalid balance for %s: %v", ErrGenesisFailed, a.PublicKey, err)
		}
		purse := types.NewURef(addrs.next(), types.AccessReadAddWrite)
		hash := a.PublicKey.AccountHash()
		effects.Put(types.URefKey(purse), types.NewStoredCLValue(balance))
		effects.Put(types.AccountKey(hash), types.NewStoredAccount(types.Account{
			Hash:      hash,
			NamedKeys: types.NamedKeys{},
			MainPurse: purse,
		}))
	}

	root, err := e.state.Commit(effects)
	if err != nil {
		return state.RootHash{}, fmt.Errorf("%w: %v", ErrGenesisFailed, err)
	}
	slog.Info("genesis completed", "chain", req.ChainName, "accounts", len(req.Accounts), "root", root)
	return root, nil
}

// ExecutionResult is the outcome of Exec
type ExecutionResult struct {
	Request      ExecuteRequest
	PreStateHash state.RootHash
	Effects      *state.Effects // nil unless the execution succeeded
	Err          error          // *Error on failure
}

func (r *ExecutionResult) IsSuccess() bool {
	return r != nil && r.Err == nil
}

func (e *Engine) fail(result *ExecutionResult, err *Error) *ExecutionResult {
	result.Err = err
	slog.Debug("execution failed", "session", result.Request.Session, "error", fmt.Sprintf("%#v", err))
	return result
}

// Exec runs req against the last committed state. Its effects are kept on
// the result and applied only by Commit.
func (e *Engine) Exec(ctx context.Context, req ExecuteRequest) *ExecutionResult {
	result := &ExecutionResult{Request: req, PreStateHash: e.state.RootHash()}
	if !e.GenesisRun() {
		return e.fail(result, &Error{Kind: ErrorKindRootNotFound, Detail: result.PreStateHash.String()})
	}
	if req.Session == nil {
		return e.fail(result, &Error{Kind: ErrorKindInvalidRequest, Detail: "missing session"})
	}

	accountKey := types.AccountKey(req.Account)
	v, err := e.state.Get(accountKey)
	if errors.Is(err, state.ErrNotFound) {
		return e.fail(result, &Error{Kind: ErrorKindAuthorization})
	}
	if err != nil {
		return e.fail(result, &Error{Kind: ErrorKindStorage, Detail: err.Error()})
	}
	account, ok := v.AsAccount()
	if !ok {
		return e.fail(result, &Error{Kind: ErrorKindAuthorization})
	}

	rt := &runtime{
		ctx:           ctx,
		tc:            newTrackingCopy(e.state),
		addrs:         &addressGenerator{seed: types.Blake2b256(req.DeployHash[:], result.PreStateHash[:])},
		caller:        req.Account,
		blockTime:     req.BlockTime,
		args:          req.Args,
		contextKey:    accountKey,
		maxItemKeyLen: e.config.MaxDictionaryKeyLength,
	}

	switch item := req.Session.(type) {
	case ModuleBytes:
		err = e.runModuleBytes(ctx, rt, item)
	case StoredContractByHash:
		err = rt.callContract(types.HashKey(item.Hash), item.EntryPoint)
	case StoredContractByName:
		key, found := account.NamedKeys[item.Name]
		if !found {
			err = &ExecError{Kind: ExecKeyNotFound, Name: item.Name}
			break
		}
		err = rt.callContract(key, item.EntryPoint)
	default:
		return e.fail(result, &Error{Kind: ErrorKindInvalidRequest, Detail: fmt.Sprintf("unsupported session %T", req.Session)})
	}

	if err != nil {
		var reqErr *Error
		if errors.As(err, &reqErr) {
			return e.fail(result, reqErr)
		}
		return e.fail(result, &Error{Kind: ErrorKindExec, Exec: toExecError(err)})
	}

	result.Effects = rt.tc.effects
	slog.Debug("execution succeeded", "session", req.Session, "writes", result.Effects.Len())
	return result
}

func (e *Engine) runModuleBytes(ctx context.Context, rt *runtime, item ModuleBytes) error {
	if item.Name != "" {
		if m, ok := LookupModule(item.Name); ok && m.Session != nil {
			rt.module = m.Name
			return runNative(m.Session, rt)
		}
	}

	code := item.Code
	if item.Name != "" && e.codeManager != nil && e.codeManager.Has(item.Name) {
		mc, err := e.codeManager.GetCode(item.Name)
		if err != nil {
			return &Error{Kind: ErrorKindStorage, Detail: err.Error()}
		}
		code = mc.Code
	}
	if len(code) == 0 {
		return &Error{Kind: ErrorKindInvalidRequest, Detail: fmt.Sprintf("module %q not found", item.Name)}
	}

	rt.module = item.Name
	return e.runner.Run(ctx, code, rt, wasm.DefaultEntryPoint)
}

// Commit applies the effects of a successful execution
func (e *Engine) Commit(result *ExecutionResult) (state.RootHash, error) {
	if !result.IsSuccess() {
		return state.RootHash{}, ErrNothingToCommit
	}
	root, err := e.state.Commit(result.Effects)
	if err != nil {
		return state.RootHash{}, fmt.Errorf("failed to commit effects: %w", err)
	}
	return root, nil
}

// GetAccount returns the committed account for hash
func (e *Engine) GetAccount(hash types.AccountHash) (*types.Account, error) {
	v, err := e.Query(types.AccountKey(hash), nil)
	if err != nil {
		return nil, err
	}
	a, ok := v.AsAccount()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an account", ErrQuery, types.AccountKey(hash))
	}
	return a, nil
}

// Query resolves path through named keys starting at base
func (e *Engine) Query(base types.Key, path []string) (types.StoredValue, error) {
	v, err := e.state.Get(base)
	if errors.Is(err, state.ErrNotFound) {
		return types.StoredValue{}, fmt.Errorf("%w: failed to find base key %s", ErrQuery, base)
	}
	if err != nil {
		return types.StoredValue{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	for _, name := range path {
		nk, ok := v.NamedKeys()
		if !ok {
			return types.StoredValue{}, fmt.Errorf("%w: cannot resolve %q through a %s value", ErrQuery, name, v.Kind)
		}
		next, ok := nk[name]
		if !ok {
			return types.StoredValue{}, fmt.Errorf("%w: named key %q not found", ErrQuery, name)
		}
		v, err = e.state.Get(next)
		if errors.Is(err, state.ErrNotFound) {
			return types.StoredValue{}, fmt.Errorf("%w: no value under named key %q (%s)", ErrQuery, name, next)
		}
		if err != nil {
			return types.StoredValue{}, fmt.Errorf("%w: %v", ErrQuery, err)
		}
	}
	return v, nil
}

// QueryDictionaryItem reads itemKey from the dictionary rooted at seed. The
// result holds the item's CLValue.
func (e *Engine) QueryDictionaryItem(seed types.URef, itemKey string) (types.StoredValue, error) {
	v, err := e.state.Get(types.URefKey(seed))
	if errors.Is(err, state.ErrNotFound) {
		return types.StoredValue{}, fmt.Errorf("%w: dictionary seed %s not found", ErrQuery, seed)
	}
	if err != nil {
		return types.StoredValue{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	if cv, ok := v.AsCLValue(); !ok || !cv.IsUnit() {
		return types.StoredValue{}, fmt.Errorf("%w: %s is not a dictionary seed", ErrQuery, seed)
	}

	key := types.DictionaryKey(types.DictionaryItemAddr(seed, itemKey))
	v, err = e.state.Get(key)
	if errors.Is(err, state.ErrNotFound) {
		return types.StoredValue{}, fmt.Errorf("%w: dictionary item %q not found", ErrQuery, itemKey)
	}
	if err != nil {
		return types.StoredValue{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	d, ok := v.AsDictionary()
	if !ok {
		return types.StoredValue{}, fmt.Errorf("%w: %s is not a dictionary item", ErrQuery, key)
	}
	return types.NewStoredCLValue(d.Value), nil
}
