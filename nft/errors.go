package nft

import "github.com/govm-net/enginetest-support/types"

// User error codes the contract reverts with
const (
	CodeMissingCollectionName       uint16 = 1
	CodeInvalidCollectionName       uint16 = 2
	CodeMissingCollectionSymbol     uint16 = 3
	CodeInvalidCollectionSymbol     uint16 = 4
	CodeMissingTotalTokenSupply     uint16 = 5
	CodeInvalidTotalTokenSupply     uint16 = 6
	CodeCannotInstallWithZeroSupply uint16 = 7
	CodeExceededMaxTotalSupply      uint16 = 8
	CodeInvalidOwnershipMode        uint16 = 9
	CodeInvalidMintingMode          uint16 = 10
	CodeMintingIsPaused             uint16 = 11
	CodeTokenSupplyDepleted         uint16 = 12
	CodeInvalidTokenOwner           uint16 = 13
	CodeInvalidMinter               uint16 = 14
	CodeContractAlreadyInitialized  uint16 = 58
)

var (
	ErrMissingCollectionName       = types.UserError(CodeMissingCollectionName)
	ErrInvalidCollectionName       = types.UserError(CodeInvalidCollectionName)
	ErrMissingCollectionSymbol     = types.UserError(CodeMissingCollectionSymbol)
	ErrInvalidCollectionSymbol     = types.UserError(CodeInvalidCollectionSymbol)
	ErrMissingTotalTokenSupply     = types.UserError(CodeMissingTotalTokenSupply)
	ErrInvalidTotalTokenSupply     = types.UserError(CodeInvalidTotalTokenSupply)
	ErrCannotInstallWithZeroSupply = types.UserError(CodeCannotInstallWithZeroSupply)
	ErrExceededMaxTotalSupply      = types.UserError(CodeExceededMaxTotalSupply)
	ErrInvalidOwnershipMode        = types.UserError(CodeInvalidOwnershipMode)
	ErrInvalidMintingMode          = types.UserError(CodeInvalidMintingMode)
	ErrMintingIsPaused             = types.UserError(CodeMintingIsPaused)
	ErrTokenSupplyDepleted         = types.UserError(CodeTokenSupplyDepleted)
	ErrInvalidTokenOwner           = types.UserError(CodeInvalidTokenOwner)
	ErrInvalidMinter               = types.UserError(CodeInvalidMinter)
	ErrContractAlreadyInitialized  = types.UserError(CodeContractAlreadyInitialized)
)
