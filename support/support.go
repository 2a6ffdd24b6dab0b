// Package support holds assertion helpers for contract tests run through an
// enginetest.Builder. The helpers fail the test on any unexpected condition.
package support

import (
	"errors"
	"fmt"

	"github.com/stretchr/testify/require"

	"github.com/govm-net/enginetest-support/engine"
	"github.com/govm-net/enginetest-support/enginetest"
	"github.com/govm-net/enginetest-support/genesis"
	"github.com/govm-net/enginetest-support/keys"
	"github.com/govm-net/enginetest-support/types"
)

var (
	ErrNotContract       = errors.New("not a contract")
	ErrNamedKeyNotFound  = errors.New("named key not found")
	ErrNotDictionarySeed = errors.New("not a dictionary seed")
	ErrNotCLValue        = errors.New("not a cl value")
)

type tHelper interface {
	Helper()
}

func helper(t require.TestingT) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
}

// RequestBuilder is anything that produces an execute request, such as
// nft.InstallerRequestBuilder or enginetest.ExecuteRequestBuilder
type RequestBuilder interface {
	Build() engine.ExecuteRequest
}

// StoredValue resolves path under key and decodes the CLValue found there
func StoredValue[T any](b *enginetest.Builder, key types.Key, path []string) (T, error) {
	var zero T
	v, err := b.Query(key, path)
	if err != nil {
		return zero, err
	}
	cv, ok := v.AsCLValue()
	if !ok {
		return zero, fmt.Errorf("%w: found %s", ErrNotCLValue, v.Kind)
	}
	return types.IntoT[T](cv)
}

// QueryStoredValue is StoredValue failing the test on error
func QueryStoredValue[T any](t require.TestingT, b *enginetest.Builder, key types.Key, path []string) T {
	helper(t)
	v, err := b.Query(key, path)
	require.NoError(t, err, "must have stored value")
	cv, ok := v.AsCLValue()
	require.True(t, ok, "must have cl value")
	out, err := types.IntoT[T](cv)
	require.NoError(t, err, "must get value")
	return out
}

// dictionarySeed returns the seed URef named dictionaryName in the contract
// at contractKey
func dictionarySeed(b *enginetest.Builder, contractKey types.Key, dictionaryName string) (types.URef, error) {
	v, err := b.Query(contractKey, nil)
	if err != nil {
		return types.URef{}, err
	}
	contract, ok := v.AsContract()
	if !ok {
		return types.URef{}, fmt.Errorf("%w: %s holds %s", ErrNotContract, contractKey, v.Kind)
	}
	key, ok := contract.NamedKeys[dictionaryName]
	if !ok {
		return types.URef{}, fmt.Errorf("%w: %s", ErrNamedKeyNotFound, dictionaryName)
	}
	seed, ok := key.AsURef()
	if !ok {
		return types.URef{}, fmt.Errorf("%w: %s is %#v", ErrNotDictionarySeed, dictionaryName, key)
	}
	return seed, nil
}

// DictionaryValue reads dictionaryKey from the contract's dictionary
// dictionaryName and decodes it
func DictionaryValue[T any](b *enginetest.Builder, contractKey types.Key, dictionaryName, dictionaryKey string) (T, error) {
	var zero T
	seed, err := dictionarySeed(b, contractKey, dictionaryName)
	if err != nil {
		return zero, err
	}
	v, err := b.QueryDictionaryItem(seed, dictionaryKey)
	if err != nil {
		return zero, err
	}
	cv, ok := v.AsCLValue()
	if !ok {
		return zero, fmt.Errorf("%w: found %s", ErrNotCLValue, v.Kind)
	}
	return types.IntoT[T](cv)
}

// GetDictionaryValueFromKey is DictionaryValue failing the test on error
func GetDictionaryValueFromKey[T any](t require.TestingT, b *enginetest.Builder, contractKey types.Key, dictionaryName, dictionaryKey string) T {
	helper(t)
	v, err := b.Query(contractKey, nil)
	require.NoError(t, err, "must have nft contract")
	contract, ok := v.AsContract()
	require.True(t, ok, "must convert contract")
	key, ok := contract.NamedKeys[dictionaryName]
	require.True(t, ok, "must have key")
	seed, ok := key.AsURef()
	require.True(t, ok, "must convert to seed uref")

	item, err := b.QueryDictionaryItem(seed, dictionaryKey)
	require.NoError(t, err, "should have dictionary value")
	cv, ok := item.AsCLValue()
	require.True(t, ok, "T should be CLValue")
	out, err := types.IntoT[T](cv)
	require.NoError(t, err, "must get value")
	return out
}

// AssertExpectedInvalidInstallerRequest runs the request against a fresh
// genesis state and requires it to revert with the user error code
func AssertExpectedInvalidInstallerRequest(t require.TestingT, rb RequestBuilder, expectedErrorCode uint16) {
	helper(t)
	b := enginetest.NewInMemoryBuilder(t).RunGenesis(genesis.DefaultRequest())
	defer b.Close()

	b.Exec(rb.Build()).ExpectFailure()
	err := b.GetError()
	require.NotNil(t, err, "should have an error")
	AssertExpectedError(t, err, expectedErrorCode)
}

// AssertExpectedError requires actual to be an execution revert with the
// user error code, comparing debug forms
func AssertExpectedError(t require.TestingT, actual error, code uint16) {
	helper(t)
	expected := &engine.Error{Kind: engine.ErrorKindExec, Exec: engine.Revert(types.UserError(code))}
	actualForm := fmt.Sprintf("%#v", actual)
	expectedForm := fmt.Sprintf("%#v", expected)
	require.Equal(t, expectedForm, actualForm, "Error should match %d", code)
}

// CreateDummyKeyPair derives an ed25519 key pair from seed
func CreateDummyKeyPair(t require.TestingT, seed [32]byte) (keys.SecretKey, keys.PublicKey) {
	helper(t)
	sk, err := keys.Ed25519FromBytes(seed[:])
	require.NoError(t, err, "failed to create secret key")
	return sk, keys.PublicKeyFrom(sk)
}
