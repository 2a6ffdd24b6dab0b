package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/govm-net/enginetest-support/state"
	"github.com/govm-net/enginetest-support/types"
)

// Runtime is the host API available to native modules
type Runtime interface {
	Context() context.Context
	// Caller is the account that signed the request
	Caller() types.AccountHash
	BlockTime() uint64
	Args() RuntimeArgs
	NamedArg(name string) (types.CLValue, bool)

	// GetKey and PutKey operate on the named keys of the current context:
	// the caller's account for session code, the contract for entry points.
	GetKey(name string) (types.Key, bool)
	PutKey(name string, key types.Key) error

	NewURef(value types.CLValue) (types.URef, error)
	Read(uref types.URef) (types.CLValue, error)
	Write(uref types.URef, value types.CLValue) error

	// NewDictionary creates a dictionary and stores its seed under name
	NewDictionary(name string) (types.URef, error)
	DictionaryGet(seed types.URef, itemKey string) (types.CLValue, bool, error)
	DictionaryPut(seed types.URef, itemKey string, value types.CLValue) error

	// NewContract installs a contract served by the running module
	NewContract(entryPoints []string, namedKeys types.NamedKeys) (contractHash, packageHash types.HashAddr, err error)

	// CallContract runs entryPoint of the contract at hash with args in the
	// contract's context
	CallContract(hash types.HashAddr, entryPoint string, args RuntimeArgs) error

	// Revert returns the error that reverts execution with code
	Revert(code types.ApiError) error
}

// GetNamedArg decodes the named runtime argument. A missing argument reverts
// with MissingArgument, a mistyped one with InvalidArgument.
func GetNamedArg[T any](rt Runtime, name string) (T, error) {
	var zero T
	cv, ok := rt.NamedArg(name)
	if !ok {
		return zero, rt.Revert(types.ApiErrorMissingArgument)
	}
	v, err := types.IntoT[T](cv)
	if err != nil {
		return zero, rt.Revert(types.ApiErrorInvalidArgument)
	}
	return v, nil
}

// GetOptionalNamedArg is like GetNamedArg but returns def when the argument is
// absent.
func GetOptionalNamedArg[T any](rt Runtime, name string, def T) (T, error) {
	if _, ok := rt.NamedArg(name); !ok {
		return def, nil
	}
	return GetNamedArg[T](rt, name)
}

// trackingCopy layers uncommitted writes over committed state
type trackingCopy struct {
	base    state.GlobalState
	effects *state.Effects
}

func newTrackingCopy(base state.GlobalState) *trackingCopy {
	return &trackingCopy{base: base, effects: state.NewEffects()}
}

func (tc *trackingCopy) get(key types.Key) (types.StoredValue, error) {
	if v, ok := tc.effects.Get(key); ok {
		return v, nil
	}
	return tc.base.Get(key)
}

func (tc *trackingCopy) put(key types.Key, v types.StoredValue) {
	tc.effects.Put(key, v)
}

// addressGenerator derives addresses from a deploy hash and a counter
type addressGenerator struct {
	seed [32]byte
	n    uint64
}

func (g *addressGenerator) next() [types.AddrLength]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], g.n)
	g.n++
	return types.Blake2b256(g.seed[:], b[:])
}

type runtime struct {
	ctx           context.Context
	tc            *trackingCopy
	addrs         *addressGenerator
	caller        types.AccountHash
	blockTime     uint64
	args          RuntimeArgs
	contextKey    types.Key
	module        string
	maxItemKeyLen int
}

func (rt *runtime) Context() context.Context         { return rt.ctx }
func (rt *runtime) Caller() types.AccountHash        { return rt.caller }
func (rt *runtime) BlockTime() uint64                { return rt.blockTime }
func (rt *runtime) Args() RuntimeArgs                { return rt.args }
func (rt *runtime) Revert(code types.ApiError) error { return Revert(code) }

func (rt *runtime) NamedArg(name string) (types.CLValue, bool) {
	return rt.args.Get(name)
}

func (rt *runtime) contextValue() (types.StoredValue, error) {
	v, err := rt.tc.get(rt.contextKey)
	if err != nil {
		return types.StoredValue{}, fmt.Errorf("failed to load context %s: %w", rt.contextKey, err)
	}
	return v, nil
}

func (rt *runtime) GetKey(name string) (types.Key, bool) {
	v, err := rt.contextValue()
	if err != nil {
		return types.Key{}, false
	}
	nk, ok := v.NamedKeys()
	if !ok {
		return types.Key{}, false
	}
	k, ok := nk[name]
	return k, ok
}

func (rt *runtime) PutKey(name string, key types.Key) error {
	if name == "" {
		return types.ApiErrorInvalidArgument
	}
	v, err := rt.contextValue()
	if err != nil {
		return err
	}
	switch {
	case v.Account != nil:
		if v.Account.NamedKeys == nil {
			v.Account.NamedKeys = types.NamedKeys{}
		}
		v.Account.NamedKeys[name] = key
	case v.Contract != nil:
		if v.Contract.NamedKeys == nil {
			v.Contract.NamedKeys = types.NamedKeys{}
		}
		v.Contract.NamedKeys[name] = key
	default:
		return fmt.Errorf("context %s has no named keys", rt.contextKey)
	}
	rt.tc.put(rt.contextKey, v)
	return nil
}

func (rt *runtime) NewURef(value types.CLValue) (types.URef, error) {
	uref := types.NewURef(rt.addrs.next(), types.AccessReadAddWrite)
	rt.tc.put(types.URefKey(uref), types.NewStoredCLValue(value))
	return uref, nil
}

func forged(uref types.URef) error {
	return &ExecError{Kind: ExecForgedReference, Name: uref.Formatted()}
}

func (rt *runtime) readURef(uref types.URef) (types.CLValue, error) {
	v, err := rt.tc.get(types.URefKey(uref))
	if errors.Is(err, state.ErrNotFound) {
		return types.CLValue{}, types.ApiErrorValueNotFound
	}
	if err != nil {
		return types.CLValue{}, err
	}
	cv, ok := v.AsCLValue()
	if !ok {
		return types.CLValue{}, types.ApiErrorUnexpectedKeyVariant
	}
	return cv, nil
}

func (rt *runtime) Read(uref types.URef) (types.CLValue, error) {
	if !uref.Access.CanRead() {
		return types.CLValue{}, forged(uref)
	}
	return rt.readURef(uref)
}

func (rt *runtime) Write(uref types.URef, value types.CLValue) error {
	if !uref.Access.CanWrite() {
		return forged(uref)
	}
	if _, err := rt.readURef(uref); err != nil {
		return err
	}
	rt.tc.put(types.URefKey(uref), types.NewStoredCLValue(value))
	return nil
}

func (rt *runtime) NewDictionary(name string) (types.URef, error) {
	if _, exists := rt.GetKey(name); exists {
		return types.URef{}, types.ApiErrorInvalidArgument
	}
	seed, err := rt.NewURef(types.UnitValue())
	if err != nil {
		return types.URef{}, err
	}
	if err := rt.PutKey(name, types.URefKey(seed)); err != nil {
		return types.URef{}, err
	}
	return seed, nil
}

// checkDictionary verifies seed addresses a dictionary and itemKey is usable
func (rt *runtime) checkDictionary(seed types.URef, itemKey string) error {
	if len(itemKey) > rt.maxItemKeyLen {
		return types.ApiErrorInvalidDictionaryItemKey
	}
	cv, err := rt.readURef(seed)
	if err != nil {
		return err
	}
	if !cv.IsUnit() {
		return types.ApiErrorUnexpectedKeyVariant
	}
	return nil
}

func (rt *runtime) DictionaryGet(seed types.URef, itemKey string) (types.CLValue, bool, error) {
	if !seed.Access.CanRead() {
		return types.CLValue{}, false, forged(seed)
	}
	if err := rt.checkDictionary(seed, itemKey); err != nil {
		return types.CLValue{}, false, err
	}
	v, err := rt.tc.get(types.DictionaryKey(types.DictionaryItemAddr(seed, itemKey)))
	if errors.Is(err, state.ErrNotFound) {
		return types.CLValue{}, false, nil
	}
	if err != nil {
		return types.CLValue{}, false, err
	}
	d, ok := v.AsDictionary()
	if !ok {
		return types.CLValue{}, false, types.ApiErrorUnexpectedKeyVariant
	}
	return d.Value, true, nil
}

func (rt *runtime) DictionaryPut(seed types.URef, itemKey string, value types.CLValue) error {
	if !seed.Access.CanWrite() {
		return forged(seed)
	}
	if err := rt.checkDictionary(seed, itemKey); err != nil {
		return err
	}
	rt.tc.put(types.DictionaryKey(types.DictionaryItemAddr(seed, itemKey)), types.NewStoredDictionary(types.DictionaryValue{
		Value:    value,
		SeedAddr: seed.Addr,
		ItemKey:  itemKey,
	}))
	return nil
}

func (rt *runtime) NewContract(entryPoints []string, namedKeys types.NamedKeys) (types.HashAddr, types.HashAddr, error) {
	m, ok := LookupModule(rt.module)
	if !ok {
		return types.HashAddr{}, types.HashAddr{}, fmt.Errorf("module %q is not registered", rt.module)
	}
	eps := append([]string(nil), entryPoints...)
	sort.Strings(eps)
	for _, ep := range eps {
		if _, ok := m.EntryPoints[ep]; !ok {
			return types.HashAddr{}, types.HashAddr{}, &ExecError{Kind: ExecNoSuchMethod, Name: ep}
		}
	}

	contractHash := types.HashAddr(rt.addrs.next())
	packageHash := types.HashAddr(rt.addrs.next())
	if namedKeys == nil {
		namedKeys = types.NamedKeys{}
	}
	rt.tc.put(types.HashKey(contractHash), types.NewStoredContract(types.Contract{
		PackageHash: packageHash,
		Module:      rt.module,
		EntryPoints: eps,
		NamedKeys:   namedKeys.Clone(),
	}))
	// The package records its current contract version
	rt.tc.put(types.HashKey(packageHash), types.NewStoredCLValue(types.MustCLValue(types.HashKey(contractHash))))
	return contractHash, packageHash, nil
}

func (rt *runtime) callContract(key types.Key, entryPoint string) error {
	v, err := rt.tc.get(key)
	if errors.Is(err, state.ErrNotFound) {
		return &ExecError{Kind: ExecInvalidContract, Name: key.Formatted()}
	}
	if err != nil {
		return &Error{Kind: ErrorKindStorage, Detail: err.Error()}
	}
	contract, ok := v.AsContract()
	if !ok {
		return &ExecError{Kind: ExecInvalidContract, Name: key.Formatted()}
	}
	if !contract.HasEntryPoint(entryPoint) {
		return &ExecError{Kind: ExecNoSuchMethod, Name: entryPoint}
	}
	m, ok := LookupModule(contract.Module)
	if !ok {
		return &ExecError{Kind: ExecInvalidContract, Name: key.Formatted()}
	}
	fn, ok := m.EntryPoints[entryPoint]
	if !ok || fn == nil {
		return &ExecError{Kind: ExecNoSuchMethod, Name: entryPoint}
	}

	rt.contextKey = key.Normalize()
	rt.module = contract.Module
	return runNative(fn, rt)
}

// runNative runs native module code, reporting a panic as an interpreter
// error the way a wasm trap is reported
func runNative(fn func(rt Runtime) error, rt *runtime) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("native module panicked", "module", rt.module, "panic", r)
			err = &ExecError{Kind: ExecInterpreter, Detail: fmt.Sprintf("%s panicked: %v", rt.module, r)}
		}
	}()
	return fn(rt)
}

func (rt *runtime) CallContract(hash types.HashAddr, entryPoint string, args RuntimeArgs) error {
	contextKey, module, callerArgs := rt.contextKey, rt.module, rt.args
	defer func() {
		rt.contextKey, rt.module, rt.args = contextKey, module, callerArgs
	}()
	rt.args = args
	return rt.callContract(types.HashKey(hash), entryPoint)
}
