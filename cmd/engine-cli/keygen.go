package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/govm-net/enginetest-support/genesis"
	"github.com/govm-net/enginetest-support/keys"
)

var (
	keygenSeed string
	keygenAlgo string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Derive a key pair from a 32 byte seed",
	Long: `Derive a key pair from a hex encoded 32 byte seed and print the public key
and account hash. Without --seed the default genesis account seed is used.
Example: engine-cli keygen --seed 0101...01 --algo secp256k1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		algo, err := keys.ParseAlgorithm(keygenAlgo)
		if err != nil {
			return err
		}
		seed := genesis.DefaultAccountSeed[:]
		if keygenSeed != "" {
			if seed, err = hex.DecodeString(keygenSeed); err != nil {
				return fmt.Errorf("failed to decode seed: %w", err)
			}
		}

		sk, err := keys.FromSeed(algo, seed)
		if err != nil {
			return fmt.Errorf("failed to create secret key: %w", err)
		}
		pk := keys.PublicKeyFrom(sk)
		fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\n", pk.Hex())
		fmt.Fprintf(cmd.OutOrStdout(), "Account hash: %s\n", pk.AccountHash())
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenSeed, "seed", "", "Hex encoded 32 byte seed")
	keygenCmd.Flags().StringVar(&keygenAlgo, "algo", keys.Ed25519.String(), "Key algorithm (ed25519 or secp256k1)")
}
