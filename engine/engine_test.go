package engine

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/enginetest-support/genesis"
	"github.com/govm-net/enginetest-support/state"
	"github.com/govm-net/enginetest-support/types"
)

const testModuleName = "engine_test_session.wasm"

// revertUser1Wasm exports call, which reverts with User(1)
var revertUser1Wasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x08, 0x02, 0x60, 0x01, 0x7f, 0x00, 0x60, 0x00, 0x00,
	0x02, 0x15, 0x01, 0x03, 0x65, 0x6e, 0x76, 0x0d,
	0x63, 0x61, 0x73, 0x70, 0x65, 0x72, 0x5f, 0x72, 0x65, 0x76, 0x65, 0x72, 0x74,
	0x00, 0x00,
	0x03, 0x02, 0x01, 0x01,
	0x07, 0x08, 0x01, 0x04, 0x63, 0x61, 0x6c, 0x6c, 0x00, 0x01,
	0x0a, 0x0a, 0x01, 0x08, 0x00, 0x41, 0x81, 0x80, 0x04, 0x10, 0x00, 0x0b,
}

func init() {
	err := RegisterModule(Module{
		Name:    testModuleName,
		Session: testSession,
		EntryPoints: map[string]EntryPointFunc{
			"set_note": testSetNote,
		},
	})
	if err != nil {
		panic(err)
	}
}

// testSession stores its "value" argument in a named URef and a dictionary,
// installs a contract, then reverts with User(7) if "fail" is set.
func testSession(rt Runtime) error {
	value, err := GetNamedArg[string](rt, "value")
	if err != nil {
		return err
	}
	fail, err := GetOptionalNamedArg(rt, "fail", false)
	if err != nil {
		return err
	}

	cv, err := types.NewCLValue(value)
	if err != nil {
		return err
	}
	uref, err := rt.NewURef(cv)
	if err != nil {
		return err
	}
	if err := rt.PutKey("stored", types.URefKey(uref)); err != nil {
		return err
	}

	seed, err := rt.NewDictionary("dict")
	if err != nil {
		return err
	}
	if err := rt.DictionaryPut(seed, "item", cv); err != nil {
		return err
	}
	got, ok, err := rt.DictionaryGet(seed, "item")
	if err != nil || !ok || got.Type.Tag != types.CLTagString {
		return fmt.Errorf("dictionary read back failed: %v", err)
	}

	hash, pkg, err := rt.NewContract([]string{"set_note"}, types.NamedKeys{"stored": types.URefKey(uref)})
	if err != nil {
		return err
	}
	if err := rt.PutKey("test_contract", types.HashKey(hash)); err != nil {
		return err
	}
	if err := rt.PutKey("test_contract_package", types.HashKey(pkg)); err != nil {
		return err
	}

	if fail {
		return rt.Revert(types.UserError(7))
	}
	return nil
}

// testSetNote overwrites the contract's stored URef with "note"
func testSetNote(rt Runtime) error {
	note, err := GetNamedArg[string](rt, "note")
	if err != nil {
		return err
	}
	key, ok := rt.GetKey("stored")
	if !ok {
		return rt.Revert(types.ApiErrorGetKey)
	}
	uref, ok := key.AsURef()
	if !ok {
		return rt.Revert(types.ApiErrorUnexpectedKeyVariant)
	}
	if err := rt.Write(uref, types.MustCLValue(note)); err != nil {
		return err
	}
	return rt.PutKey("last_caller", types.AccountKey(rt.Caller()))
}

func setupTestEngine(t *testing.T) (*Engine, types.AccountHash) {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	_, err = e.RunGenesis(genesis.DefaultRequest())
	require.NoError(t, err)
	return e, genesis.DefaultAccountPublicKey().AccountHash()
}

func sessionRequest(t *testing.T, account types.AccountHash, args map[string]any) ExecuteRequest {
	t.Helper()
	ra, err := NewRuntimeArgs(args)
	require.NoError(t, err)
	return ExecuteRequest{
		Account:    account,
		Session:    ModuleBytes{Name: testModuleName},
		Args:       ra,
		DeployHash: [32]byte{1},
	}
}

func execCommit(t *testing.T, e *Engine, req ExecuteRequest) {
	t.Helper()
	result := e.Exec(context.Background(), req)
	require.NoError(t, result.Err)
	_, err := e.Commit(result)
	require.NoError(t, err)
}

func execError(t *testing.T, e *Engine, req ExecuteRequest) *Error {
	t.Helper()
	result := e.Exec(context.Background(), req)
	require.False(t, result.IsSuccess())
	engineErr, ok := result.Err.(*Error)
	require.True(t, ok, "unexpected error type %T", result.Err)
	return engineErr
}

func TestNewEngineInvalidConfig(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.MaxDictionaryKeyLength = 0
	_, err = NewEngine(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.StateType = "unknown"
	_, err = NewEngine(cfg)
	assert.Error(t, err)
}

func TestRunGenesis(t *testing.T) {
	e, account := setupTestEngine(t)
	assert.NotEqual(t, state.RootHash{}, e.PostStateHash())

	_, err := e.RunGenesis(genesis.DefaultRequest())
	assert.ErrorIs(t, err, ErrGenesisAlreadyRun)

	a, err := e.GetAccount(account)
	require.NoError(t, err)
	assert.Equal(t, account, a.Hash)

	purse, err := e.Query(types.URefKey(a.MainPurse), nil)
	require.NoError(t, err)
	cv, ok := purse.AsCLValue()
	require.True(t, ok)
	assert.Equal(t, types.CLU512, cv.Type)
	balance, err := types.IntoT[*big.Int](cv)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Cmp(genesis.DefaultAccountBalance))
}

func TestRunGenesisInvalid(t *testing.T) {
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	_, err = e.RunGenesis(genesis.Request{ChainName: "empty"})
	assert.ErrorIs(t, err, ErrGenesisFailed)
	assert.False(t, e.GenesisRun())
}

func TestExecWithoutGenesis(t *testing.T) {
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	engineErr := execError(t, e, sessionRequest(t, types.AccountHash{}, map[string]any{"value": "x"}))
	assert.Equal(t, ErrorKindRootNotFound, engineErr.Kind)
}

func TestExecUnknownAccount(t *testing.T) {
	e, _ := setupTestEngine(t)
	engineErr := execError(t, e, sessionRequest(t, types.AccountHash{42}, map[string]any{"value": "x"}))
	assert.Equal(t, ErrorKindAuthorization, engineErr.Kind)
	assert.Equal(t, "Authorization", fmt.Sprintf("%#v", engineErr))
}

func TestExecSessionAndQuery(t *testing.T) {
	e, account := setupTestEngine(t)
	before := e.PostStateHash()

	execCommit(t, e, sessionRequest(t, account, map[string]any{"value": "hello"}))
	assert.NotEqual(t, before, e.PostStateHash())

	v, err := e.Query(types.AccountKey(account), []string{"stored"})
	require.NoError(t, err)
	cv, ok := v.AsCLValue()
	require.True(t, ok)
	s, err := types.IntoT[string](cv)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	v, err = e.Query(types.AccountKey(account), []string{"test_contract", "stored"})
	require.NoError(t, err)
	cv, _ = v.AsCLValue()
	s, err = types.IntoT[string](cv)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	a, err := e.GetAccount(account)
	require.NoError(t, err)
	seed, ok := a.NamedKeys["dict"].AsURef()
	require.True(t, ok)
	item, err := e.QueryDictionaryItem(seed, "item")
	require.NoError(t, err)
	cv, ok = item.AsCLValue()
	require.True(t, ok)
	s, err = types.IntoT[string](cv)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestQueryFailures(t *testing.T) {
	e, account := setupTestEngine(t)
	execCommit(t, e, sessionRequest(t, account, map[string]any{"value": "hello"}))

	_, err := e.Query(types.HashKey(types.HashAddr{9}), nil)
	assert.ErrorIs(t, err, ErrQuery)

	_, err = e.Query(types.AccountKey(account), []string{"missing"})
	assert.ErrorIs(t, err, ErrQuery)
	assert.Contains(t, err.Error(), `"missing"`)

	_, err = e.Query(types.AccountKey(account), []string{"stored", "deeper"})
	assert.ErrorIs(t, err, ErrQuery)

	a, err := e.GetAccount(account)
	require.NoError(t, err)
	seed, _ := a.NamedKeys["dict"].AsURef()
	_, err = e.QueryDictionaryItem(seed, "absent")
	assert.ErrorIs(t, err, ErrQuery)

	notSeed, _ := a.NamedKeys["stored"].AsURef()
	_, err = e.QueryDictionaryItem(notSeed, "item")
	assert.ErrorIs(t, err, ErrQuery)
	assert.Contains(t, err.Error(), "not a dictionary seed")
}

func TestFailedExecutionDiscardsEffects(t *testing.T) {
	e, account := setupTestEngine(t)
	before := e.PostStateHash()

	result := e.Exec(context.Background(), sessionRequest(t, account, map[string]any{"value": "x", "fail": true}))
	require.False(t, result.IsSuccess())
	assert.Nil(t, result.Effects)
	assert.Equal(t, "Exec(Revert(User(7)))", fmt.Sprintf("%#v", result.Err))

	_, err := e.Commit(result)
	assert.ErrorIs(t, err, ErrNothingToCommit)
	assert.Equal(t, before, e.PostStateHash())

	_, err = e.Query(types.AccountKey(account), []string{"stored"})
	assert.ErrorIs(t, err, ErrQuery)
}

func TestMissingAndInvalidArguments(t *testing.T) {
	e, account := setupTestEngine(t)

	engineErr := execError(t, e, sessionRequest(t, account, nil))
	assert.Equal(t, "Exec(Revert(MissingArgument))", fmt.Sprintf("%#v", engineErr))

	engineErr = execError(t, e, sessionRequest(t, account, map[string]any{"value": uint64(1)}))
	assert.Equal(t, "Exec(Revert(InvalidArgument))", fmt.Sprintf("%#v", engineErr))
}

func TestStoredContractCalls(t *testing.T) {
	e, account := setupTestEngine(t)
	execCommit(t, e, sessionRequest(t, account, map[string]any{"value": "hello"}))

	a, err := e.GetAccount(account)
	require.NoError(t, err)
	hash, ok := a.NamedKeys["test_contract"].AsHash()
	require.True(t, ok)

	args, err := NewRuntimeArgs(map[string]any{"note": "by name"})
	require.NoError(t, err)
	execCommit(t, e, ExecuteRequest{
		Account: account,
		Session: StoredContractByName{Name: "test_contract", EntryPoint: "set_note"},
		Args:    args,
	})

	v, err := e.Query(types.HashKey(hash), []string{"stored"})
	require.NoError(t, err)
	cv, _ := v.AsCLValue()
	s, err := types.IntoT[string](cv)
	require.NoError(t, err)
	assert.Equal(t, "by name", s)

	v, err = e.Query(types.HashKey(hash), []string{"last_caller"})
	require.NoError(t, err)
	assert.NotNil(t, v.Account)

	args = args.With("note", types.MustCLValue("by hash"))
	execCommit(t, e, ExecuteRequest{
		Account: account,
		Session: StoredContractByHash{Hash: hash, EntryPoint: "set_note"},
		Args:    args,
	})
	v, err = e.Query(types.AccountKey(account), []string{"stored"})
	require.NoError(t, err)
	cv, _ = v.AsCLValue()
	s, err = types.IntoT[string](cv)
	require.NoError(t, err)
	assert.Equal(t, "by hash", s)

	engineErr := execError(t, e, ExecuteRequest{
		Account: account,
		Session: StoredContractByHash{Hash: hash, EntryPoint: "nope"},
	})
	assert.Equal(t, `Exec(NoSuchMethod("nope"))`, fmt.Sprintf("%#v", engineErr))

	engineErr = execError(t, e, ExecuteRequest{
		Account: account,
		Session: StoredContractByName{Name: "unknown", EntryPoint: "set_note"},
	})
	assert.Equal(t, `Exec(KeyNotFound("unknown"))`, fmt.Sprintf("%#v", engineErr))

	engineErr = execError(t, e, ExecuteRequest{
		Account: account,
		Session: StoredContractByHash{Hash: types.HashAddr{3}, EntryPoint: "set_note"},
	})
	assert.True(t, strings.HasPrefix(fmt.Sprintf("%#v", engineErr), "Exec(InvalidContract(hash-"))
}

func TestDeterministicAddresses(t *testing.T) {
	a, account := setupTestEngine(t)
	b, _ := setupTestEngine(t)

	req := sessionRequest(t, account, map[string]any{"value": "same"})
	execCommit(t, a, req)
	execCommit(t, b, req)
	assert.Equal(t, a.PostStateHash(), b.PostStateHash())
}

func TestWasmSession(t *testing.T) {
	e, account := setupTestEngine(t)

	engineErr := execError(t, e, ExecuteRequest{
		Account: account,
		Session: ModuleBytes{Code: revertUser1Wasm},
	})
	assert.Equal(t, "Exec(Revert(User(1)))", fmt.Sprintf("%#v", engineErr))

	engineErr = execError(t, e, ExecuteRequest{
		Account: account,
		Session: ModuleBytes{Code: []byte("junk")},
	})
	assert.Equal(t, ErrorKindExec, engineErr.Kind)
	assert.Equal(t, ExecInterpreter, engineErr.Exec.Kind)

	engineErr = execError(t, e, ExecuteRequest{
		Account: account,
		Session: ModuleBytes{Name: "missing.wasm"},
	})
	assert.Equal(t, ErrorKindInvalidRequest, engineErr.Kind)
}

func TestWasmFromRepository(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WasmDir = filepath.Join(t.TempDir(), "wasm")
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	defer e.Close()
	_, err = e.RunGenesis(genesis.DefaultRequest())
	require.NoError(t, err)

	require.NoError(t, e.CodeManager().RegisterCode("revert.wasm", revertUser1Wasm))

	engineErr := execError(t, e, ExecuteRequest{
		Account: genesis.DefaultAccountPublicKey().AccountHash(),
		Session: ModuleBytes{Name: "revert.wasm"},
	})
	assert.Equal(t, "Exec(Revert(User(1)))", fmt.Sprintf("%#v", engineErr))
}

func TestDBBackedEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	cfg := DefaultConfig()
	cfg.StateType = state.DBType
	cfg.StateParams = map[string]any{"db_path": path}

	e, err := NewEngine(cfg)
	require.NoError(t, err)
	_, err = e.RunGenesis(genesis.DefaultRequest())
	require.NoError(t, err)
	account := genesis.DefaultAccountPublicKey().AccountHash()
	execCommit(t, e, sessionRequest(t, account, map[string]any{"value": "persisted"}))
	root := e.PostStateHash()
	require.NoError(t, e.Close())

	reopened, err := NewEngine(cfg)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, root, reopened.PostStateHash())
	_, err = reopened.RunGenesis(genesis.DefaultRequest())
	assert.ErrorIs(t, err, ErrGenesisAlreadyRun)

	v, err := reopened.Query(types.AccountKey(account), []string{"stored"})
	require.NoError(t, err)
	cv, _ := v.AsCLValue()
	s, err := types.IntoT[string](cv)
	require.NoError(t, err)
	assert.Equal(t, "persisted", s)
}

func TestDictionaryItemKeyLimit(t *testing.T) {
	e, _ := setupTestEngine(t)
	rt := &runtime{
		tc:            newTrackingCopy(e.GetState()),
		addrs:         &addressGenerator{},
		maxItemKeyLen: e.config.MaxDictionaryKeyLength,
	}
	seed, err := rt.NewURef(types.UnitValue())
	require.NoError(t, err)

	assert.NoError(t, rt.DictionaryPut(seed, strings.Repeat("k", 64), types.MustCLValue(true)))
	err = rt.DictionaryPut(seed, strings.Repeat("k", 65), types.MustCLValue(true))
	assert.Equal(t, types.ApiErrorInvalidDictionaryItemKey, err)

	readOnly := seed.WithAccess(types.AccessRead)
	err = rt.DictionaryPut(readOnly, "k", types.MustCLValue(true))
	assert.IsType(t, &ExecError{}, err)
}

const panicModuleName = "engine_test_panic.wasm"

func init() {
	err := RegisterModule(Module{
		Name: panicModuleName,
		Session: func(rt Runtime) error {
			install, err := GetOptionalNamedArg(rt, "install", false)
			if err != nil {
				return err
			}
			if !install {
				panic("boom")
			}
			hash, _, err := rt.NewContract([]string{"explode"}, nil)
			if err != nil {
				return err
			}
			return rt.PutKey("panic_contract", types.HashKey(hash))
		},
		EntryPoints: map[string]EntryPointFunc{
			"explode": func(rt Runtime) error {
				var m map[string]int
				m["boom"]++
				return nil
			},
		},
	})
	if err != nil {
		panic(err)
	}
}

func TestNativePanicIsInterpreterError(t *testing.T) {
	e, account := setupTestEngine(t)
	root := e.PostStateHash()

	engineErr := execError(t, e, ExecuteRequest{Account: account, Session: ModuleBytes{Name: panicModuleName}})
	assert.Equal(t, ErrorKindExec, engineErr.Kind)
	require.NotNil(t, engineErr.Exec)
	assert.Equal(t, ExecInterpreter, engineErr.Exec.Kind)
	assert.Contains(t, engineErr.Exec.Detail, "boom")
	assert.Equal(t, root, e.PostStateHash())

	args, err := NewRuntimeArgs(map[string]any{"install": true})
	require.NoError(t, err)
	execCommit(t, e, ExecuteRequest{Account: account, Session: ModuleBytes{Name: panicModuleName}, Args: args})

	engineErr = execError(t, e, ExecuteRequest{
		Account: account,
		Session: StoredContractByName{Name: "panic_contract", EntryPoint: "explode"},
	})
	require.NotNil(t, engineErr.Exec)
	assert.Equal(t, ExecInterpreter, engineErr.Exec.Kind)
	assert.Contains(t, engineErr.Exec.Detail, "nil map")
}
