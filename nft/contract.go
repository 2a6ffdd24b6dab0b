// Package nft is a native NFT collection contract used as an installer
// fixture. The installer session is registered as "contract.wasm".
package nft

import (
	"strconv"

	"github.com/govm-net/enginetest-support/engine"
	"github.com/govm-net/enginetest-support/types"
)

// ContractWasm is the module name of the installer session
const ContractWasm = "contract.wasm"

// MaxTotalTokenSupply bounds total_token_supply
const MaxTotalTokenSupply uint64 = 1_000_000

// Runtime argument names
const (
	ArgCollectionName   = "collection_name"
	ArgCollectionSymbol = "collection_symbol"
	ArgTotalTokenSupply = "total_token_supply"
	ArgAllowMinting     = "allow_minting"
	ArgOwnershipMode    = "ownership_mode"
	ArgMintingMode      = "minting_mode"
	ArgTokenOwner       = "token_owner"
	ArgTokenMetaData    = "token_meta_data"
)

// Named keys
const (
	KeyCollectionName       = "collection_name"
	KeyCollectionSymbol     = "collection_symbol"
	KeyTotalTokenSupply     = "total_token_supply"
	KeyNumberOfMintedTokens = "number_of_minted_tokens"
	KeyAllowMinting         = "allow_minting"
	KeyOwnershipMode        = "ownership_mode"
	KeyMintingMode          = "minting_mode"
	KeyInstaller            = "installer"
	KeyBalanceOfResult      = "balance_of_result"

	KeyNFTContract        = "nft_contract"
	KeyNFTContractPackage = "nft_contract_package"

	DictTokenOwners = "token_owners"
	DictMetadata    = "metadata"
	DictBalances    = "balances"
)

// Entry points
const (
	EntryPointInit      = "init"
	EntryPointMint      = "mint"
	EntryPointBalanceOf = "balance_of"
)

// OwnershipMode controls who a minted token may belong to
type OwnershipMode uint8

const (
	// OwnershipMinter mints only to the caller
	OwnershipMinter OwnershipMode = iota
	OwnershipAssigned
	OwnershipTransferable
)

// MintingMode controls who may mint
type MintingMode uint8

const (
	// MintingInstaller allows only the installing account to mint
	MintingInstaller MintingMode = iota
	MintingPublic
)

func init() {
	err := engine.RegisterModule(engine.Module{
		Name:    ContractWasm,
		Session: install,
		EntryPoints: map[string]engine.EntryPointFunc{
			EntryPointInit:      initialize,
			EntryPointMint:      mint,
			EntryPointBalanceOf: balanceOf,
		},
	})
	if err != nil {
		panic(err)
	}
}

// arg decodes a required argument, reverting with missing or invalid
func arg[T any](rt engine.Runtime, name string, missing, invalid types.ApiError) (T, error) {
	var zero T
	cv, ok := rt.NamedArg(name)
	if !ok {
		return zero, rt.Revert(missing)
	}
	v, err := types.IntoT[T](cv)
	if err != nil {
		return zero, rt.Revert(invalid)
	}
	return v, nil
}

// optionalArg is like arg but returns def for an absent argument
func optionalArg[T any](rt engine.Runtime, name string, def T, invalid types.ApiError) (T, error) {
	if _, ok := rt.NamedArg(name); !ok {
		return def, nil
	}
	return arg[T](rt, name, invalid, invalid)
}

type collectionConfig struct {
	name          string
	symbol        string
	totalSupply   uint64
	allowMinting  bool
	ownershipMode OwnershipMode
	mintingMode   MintingMode
}

func readCollectionConfig(rt engine.Runtime) (collectionConfig, error) {
	var c collectionConfig
	var err error
	if c.name, err = arg[string](rt, ArgCollectionName, ErrMissingCollectionName, ErrInvalidCollectionName); err != nil {
		return c, err
	}
	if c.symbol, err = arg[string](rt, ArgCollectionSymbol, ErrMissingCollectionSymbol, ErrInvalidCollectionSymbol); err != nil {
		return c, err
	}
	if c.totalSupply, err = arg[uint64](rt, ArgTotalTokenSupply, ErrMissingTotalTokenSupply, ErrInvalidTotalTokenSupply); err != nil {
		return c, err
	}
	if c.totalSupply == 0 {
		return c, rt.Revert(ErrCannotInstallWithZeroSupply)
	}
	if c.totalSupply > MaxTotalTokenSupply {
		return c, rt.Revert(ErrExceededMaxTotalSupply)
	}
	if c.allowMinting, err = optionalArg(rt, ArgAllowMinting, true, types.ApiErrorInvalidArgument); err != nil {
		return c, err
	}

	ownership, err := optionalArg(rt, ArgOwnershipMode, uint8(OwnershipMinter), ErrInvalidOwnershipMode)
	if err != nil {
		return c, err
	}
	if ownership > uint8(OwnershipTransferable) {
		return c, rt.Revert(ErrInvalidOwnershipMode)
	}
	c.ownershipMode = OwnershipMode(ownership)

	minting, err := optionalArg(rt, ArgMintingMode, uint8(MintingInstaller), ErrInvalidMintingMode)
	if err != nil {
		return c, err
	}
	if minting > uint8(MintingPublic) {
		return c, rt.Revert(ErrInvalidMintingMode)
	}
	c.mintingMode = MintingMode(minting)
	return c, nil
}

// install validates the collection arguments, installs the contract and
// initializes its dictionaries.
func install(rt engine.Runtime) error {
	c, err := readCollectionConfig(rt)
	if err != nil {
		return err
	}

	values := []struct {
		name  string
		value any
	}{
		{KeyCollectionName, c.name},
		{KeyCollectionSymbol, c.symbol},
		{KeyTotalTokenSupply, c.totalSupply},
		{KeyNumberOfMintedTokens, uint64(0)},
		{KeyAllowMinting, c.allowMinting},
		{KeyOwnershipMode, uint8(c.ownershipMode)},
		{KeyMintingMode, uint8(c.mintingMode)},
		{KeyInstaller, types.AccountKey(rt.Caller())},
	}
	namedKeys := types.NamedKeys{}
	for _, v := range values {
		cv, err := types.NewCLValue(v.value)
		if err != nil {
			return err
		}
		uref, err := rt.NewURef(cv)
		if err != nil {
			return err
		}
		namedKeys[v.name] = types.URefKey(uref)
	}

	contractHash, packageHash, err := rt.NewContract(
		[]string{EntryPointInit, EntryPointMint, EntryPointBalanceOf},
		namedKeys,
	)
	if err != nil {
		return err
	}
	if err := rt.PutKey(KeyNFTContract, types.HashKey(contractHash)); err != nil {
		return err
	}
	if err := rt.PutKey(KeyNFTContractPackage, types.HashKey(packageHash)); err != nil {
		return err
	}

	return rt.CallContract(contractHash, EntryPointInit, nil)
}

// initialize creates the contract's dictionaries; it runs once
func initialize(rt engine.Runtime) error {
	if _, ok := rt.GetKey(DictTokenOwners); ok {
		return rt.Revert(ErrContractAlreadyInitialized)
	}
	for _, name := range []string{DictTokenOwners, DictMetadata, DictBalances} {
		if _, err := rt.NewDictionary(name); err != nil {
			return err
		}
	}
	return nil
}

func namedURef(rt engine.Runtime, name string) (types.URef, error) {
	key, ok := rt.GetKey(name)
	if !ok {
		return types.URef{}, rt.Revert(types.ApiErrorGetKey)
	}
	uref, ok := key.AsURef()
	if !ok {
		return types.URef{}, rt.Revert(types.ApiErrorUnexpectedKeyVariant)
	}
	return uref, nil
}

func readNamed[T any](rt engine.Runtime, name string) (T, types.URef, error) {
	var zero T
	uref, err := namedURef(rt, name)
	if err != nil {
		return zero, types.URef{}, err
	}
	cv, err := rt.Read(uref)
	if err != nil {
		return zero, types.URef{}, err
	}
	v, err := types.IntoT[T](cv)
	if err != nil {
		return zero, types.URef{}, rt.Revert(types.ApiErrorDeserialize)
	}
	return v, uref, nil
}

// balanceKey is the balances item key of an owner
func balanceKey(owner types.AccountHash) string {
	return owner.String()
}

func readBalance(rt engine.Runtime, balances types.URef, owner types.AccountHash) (uint64, error) {
	cv, ok, err := rt.DictionaryGet(balances, balanceKey(owner))
	if err != nil || !ok {
		return 0, err
	}
	n, err := types.IntoT[uint64](cv)
	if err != nil {
		return 0, rt.Revert(types.ApiErrorDeserialize)
	}
	return n, nil
}

// mint assigns the next token id to token_owner with token_meta_data
func mint(rt engine.Runtime) error {
	allowMinting, _, err := readNamed[bool](rt, KeyAllowMinting)
	if err != nil {
		return err
	}
	if !allowMinting {
		return rt.Revert(ErrMintingIsPaused)
	}

	minted, mintedURef, err := readNamed[uint64](rt, KeyNumberOfMintedTokens)
	if err != nil {
		return err
	}
	total, _, err := readNamed[uint64](rt, KeyTotalTokenSupply)
	if err != nil {
		return err
	}
	if minted >= total {
		return rt.Revert(ErrTokenSupplyDepleted)
	}

	mintingMode, _, err := readNamed[uint8](rt, KeyMintingMode)
	if err != nil {
		return err
	}
	if MintingMode(mintingMode) == MintingInstaller {
		installer, _, err := readNamed[types.Key](rt, KeyInstaller)
		if err != nil {
			return err
		}
		if installer != types.AccountKey(rt.Caller()) {
			return rt.Revert(ErrInvalidMinter)
		}
	}

	ownerKey, err := engine.GetNamedArg[types.Key](rt, ArgTokenOwner)
	if err != nil {
		return err
	}
	owner, ok := ownerKey.AsAccount()
	if !ok {
		return rt.Revert(ErrInvalidTokenOwner)
	}
	ownership, _, err := readNamed[uint8](rt, KeyOwnershipMode)
	if err != nil {
		return err
	}
	if OwnershipMode(ownership) == OwnershipMinter && owner != rt.Caller() {
		return rt.Revert(ErrInvalidTokenOwner)
	}
	meta, err := engine.GetNamedArg[string](rt, ArgTokenMetaData)
	if err != nil {
		return err
	}

	owners, err := namedURef(rt, DictTokenOwners)
	if err != nil {
		return err
	}
	metadata, err := namedURef(rt, DictMetadata)
	if err != nil {
		return err
	}
	balances, err := namedURef(rt, DictBalances)
	if err != nil {
		return err
	}

	tokenID := strconv.FormatUint(minted, 10)
	if err := rt.DictionaryPut(owners, tokenID, types.MustCLValue(ownerKey)); err != nil {
		return err
	}
	if err := rt.DictionaryPut(metadata, tokenID, types.MustCLValue(meta)); err != nil {
		return err
	}
	balance, err := readBalance(rt, balances, owner)
	if err != nil {
		return err
	}
	if err := rt.DictionaryPut(balances, balanceKey(owner), types.MustCLValue(balance+1)); err != nil {
		return err
	}
	return rt.Write(mintedURef, types.MustCLValue(minted+1))
}

// balanceOf stores the token count of token_owner under balance_of_result
func balanceOf(rt engine.Runtime) error {
	ownerKey, err := engine.GetNamedArg[types.Key](rt, ArgTokenOwner)
	if err != nil {
		return err
	}
	owner, ok := ownerKey.AsAccount()
	if !ok {
		return rt.Revert(ErrInvalidTokenOwner)
	}
	balances, err := namedURef(rt, DictBalances)
	if err != nil {
		return err
	}
	balance, err := readBalance(rt, balances, owner)
	if err != nil {
		return err
	}

	result := types.MustCLValue(balance)
	if key, ok := rt.GetKey(KeyBalanceOfResult); ok {
		if uref, ok := key.AsURef(); ok {
			return rt.Write(uref, result)
		}
	}
	uref, err := rt.NewURef(result)
	if err != nil {
		return err
	}
	return rt.PutKey(KeyBalanceOfResult, types.URefKey(uref))
}
