package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/govm-net/enginetest-support/types"
)

var queryCmd = &cobra.Command{
	Use:   "query <key> [named-key...]",
	Short: "Query a value in global state",
	Long: `Resolve a path of named keys under a base key and print the stored value.
Example: engine-cli query account-hash-<hex> nft_contract collection_name`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := types.ParseKey(args[0])
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		v, err := e.Query(base, args[1:])
		if err != nil {
			return err
		}
		return printStoredValue(cmd.OutOrStdout(), v)
	},
}

var dictionaryCmd = &cobra.Command{
	Use:   "dictionary <seed-uref> <item-key>",
	Short: "Query a dictionary item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := types.ParseURef(args[0])
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		v, err := e.QueryDictionaryItem(seed, args[1])
		if err != nil {
			return err
		}
		return printStoredValue(cmd.OutOrStdout(), v)
	},
}

func namedKeysJSON(nk types.NamedKeys) map[string]string {
	out := make(map[string]string, len(nk))
	for name, key := range nk {
		out[name] = key.Formatted()
	}
	return out
}

func printStoredValue(w io.Writer, v types.StoredValue) error {
	var out map[string]any
	switch v.Kind {
	case types.StoredCLValue:
		out = map[string]any{
			"cl_type": v.CLValue.Type.String(),
			"bytes":   hex.EncodeToString(v.CLValue.Bytes),
		}
	case types.StoredAccount:
		out = map[string]any{
			"account_hash": v.Account.Hash.String(),
			"main_purse":   v.Account.MainPurse.Formatted(),
			"named_keys":   namedKeysJSON(v.Account.NamedKeys),
		}
	case types.StoredContract:
		out = map[string]any{
			"package_hash": v.Contract.PackageHash.String(),
			"module":       v.Contract.Module,
			"entry_points": v.Contract.EntryPoints,
			"named_keys":   namedKeysJSON(v.Contract.NamedKeys),
		}
	case types.StoredDictionary:
		out = map[string]any{
			"cl_type":   v.Dictionary.Value.Type.String(),
			"bytes":     hex.EncodeToString(v.Dictionary.Value.Bytes),
			"seed_addr": hex.EncodeToString(v.Dictionary.SeedAddr[:]),
			"item_key":  v.Dictionary.ItemKey,
		}
	default:
		return fmt.Errorf("cannot print %s value", v.Kind)
	}

	data, err := json.MarshalIndent(map[string]any{v.Kind.String(): out}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Fprintf(w, "%s\n", data)
	return nil
}
