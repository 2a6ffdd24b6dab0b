package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/govm-net/enginetest-support/engine"
	"github.com/govm-net/enginetest-support/state"
)

var (
	dbPath  string
	wasmDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "engine-cli",
	Short: "Contract execution engine command line tool",
	Long: `Contract execution engine command line tool for running genesis,
installing contracts and querying global state stored in a sqlite database.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "engine.db", "Global state database file")
	rootCmd.PersistentFlags().StringVarP(&wasmDir, "wasm", "w", "", "Wasm module repository directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(genesisCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(installNFTCmd)
	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(dictionaryCmd)
	rootCmd.AddCommand(inspectCmd)
}

// openEngine opens the database-backed engine selected by the global flags
func openEngine() (*engine.Engine, error) {
	config := engine.DefaultConfig()
	config.StateType = state.DBType
	config.StateParams = map[string]any{"db_path": dbPath}
	config.WasmDir = wasmDir

	slog.Debug("opening engine", "db", dbPath, "wasm", wasmDir)
	e, err := engine.NewEngine(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return e, nil
}

// execCommit executes req and commits its effects
func execCommit(cmd *cobra.Command, e *engine.Engine, req engine.ExecuteRequest) error {
	result := e.Exec(cmd.Context(), req)
	if !result.IsSuccess() {
		return fmt.Errorf("execution failed: %#v", result.Err)
	}
	root, err := e.Commit(result)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Post state hash: %s\n", root)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
