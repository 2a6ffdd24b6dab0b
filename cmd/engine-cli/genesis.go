package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/govm-net/enginetest-support/genesis"
)

var genesisConfig string

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Run genesis on an empty database",
	Long: `Create the genesis accounts described by a YAML config, or the default
account when no config is given.
Example: engine-cli genesis --db engine.db -c genesis.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := genesis.DefaultRequest()
		if genesisConfig != "" {
			var err error
			if req, err = genesis.LoadConfig(genesisConfig); err != nil {
				return err
			}
		}

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		root, err := e.RunGenesis(req)
		if err != nil {
			return fmt.Errorf("failed to run genesis: %w", err)
		}
		for _, a := range req.Accounts {
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s: %s\n", a.PublicKey.AccountHash(), a.Balance)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Genesis state hash: %s\n", root)
		return nil
	},
}

func init() {
	genesisCmd.Flags().StringVarP(&genesisConfig, "config", "c", "", "Genesis YAML config")
}
