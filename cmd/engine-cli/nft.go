package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/govm-net/enginetest-support/enginetest"
	"github.com/govm-net/enginetest-support/genesis"
	"github.com/govm-net/enginetest-support/keys"
	"github.com/govm-net/enginetest-support/nft"
	"github.com/govm-net/enginetest-support/types"
)

var (
	accountHex string

	collectionName   string
	collectionSymbol string
	totalTokenSupply uint64
	allowMinting     bool
	ownershipMode    uint8
	mintingMode      uint8

	tokenOwner string
	tokenMeta  string
)

// callerAccount resolves --account, defaulting to the genesis default account
func callerAccount() (types.AccountHash, error) {
	if accountHex == "" {
		return genesis.DefaultAccountPublicKey().AccountHash(), nil
	}
	pk, err := keys.ParsePublicKeyHex(accountHex)
	if err != nil {
		return types.AccountHash{}, err
	}
	return pk.AccountHash(), nil
}

var installNFTCmd = &cobra.Command{
	Use:   "install-nft",
	Short: "Install an NFT collection",
	Long: `Install an NFT collection from the calling account.
Example: engine-cli install-nft --name cep78 --symbol C78 --supply 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := callerAccount()
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		req := nft.NewInstallerRequestBuilder(account, nft.ContractWasm).
			WithCollectionName(collectionName).
			WithCollectionSymbol(collectionSymbol).
			WithTotalTokenSupply(totalTokenSupply).
			WithAllowMinting(allowMinting).
			WithOwnershipMode(nft.OwnershipMode(ownershipMode)).
			WithMintingMode(nft.MintingMode(mintingMode)).
			Build()
		if err := execCommit(cmd, e, req); err != nil {
			return err
		}

		a, err := e.GetAccount(account)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Contract: %s\n", a.NamedKeys[nft.KeyNFTContract])
		fmt.Fprintf(cmd.OutOrStdout(), "Contract package: %s\n", a.NamedKeys[nft.KeyNFTContractPackage])
		return nil
	},
}

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a token of the account's NFT collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := callerAccount()
		if err != nil {
			return err
		}
		owner := types.AccountKey(account)
		if tokenOwner != "" {
			if owner, err = types.ParseKey(tokenOwner); err != nil {
				return err
			}
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		req := enginetest.ContractCallByName(account, nft.KeyNFTContract, nft.EntryPointMint, map[string]any{
			nft.ArgTokenOwner:    owner,
			nft.ArgTokenMetaData: tokenMeta,
		}).Build()
		return execCommit(cmd, e, req)
	},
}

func init() {
	for _, c := range []*cobra.Command{installNFTCmd, mintCmd} {
		c.Flags().StringVarP(&accountHex, "account", "a", "", "Public key hex of the calling account")
	}

	installNFTCmd.Flags().StringVar(&collectionName, "name", "", "Collection name")
	installNFTCmd.Flags().StringVar(&collectionSymbol, "symbol", "", "Collection symbol")
	installNFTCmd.Flags().Uint64Var(&totalTokenSupply, "supply", 1, "Total token supply")
	installNFTCmd.Flags().BoolVar(&allowMinting, "allow-minting", true, "Allow minting after install")
	installNFTCmd.Flags().Uint8Var(&ownershipMode, "ownership-mode", 0, "Ownership mode (0 minter, 1 assigned, 2 transferable)")
	installNFTCmd.Flags().Uint8Var(&mintingMode, "minting-mode", 0, "Minting mode (0 installer, 1 public)")

	mintCmd.Flags().StringVar(&tokenOwner, "owner", "", "Token owner key, the caller by default")
	mintCmd.Flags().StringVar(&tokenMeta, "meta", "", "Token metadata")
}
