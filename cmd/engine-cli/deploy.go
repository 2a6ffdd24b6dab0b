package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/govm-net/enginetest-support/enginetest"
)

var (
	sourceFile string
	moduleName string
	runSession bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Store a wasm session module in the repository",
	Long: `Store a wasm session module in the module repository so that requests can
run it by name, optionally running it right away from the calling account.
Example: engine-cli deploy -f session.wasm -w /path/to/wasm --run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if wasmDir == "" {
			return errors.New("wasm directory is required")
		}
		code, err := os.ReadFile(sourceFile)
		if err != nil {
			return fmt.Errorf("failed to read source file: %w", err)
		}
		name := moduleName
		if name == "" {
			name = filepath.Base(sourceFile)
		}
		if !strings.HasSuffix(name, ".wasm") {
			name += ".wasm"
		}

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		slog.Info("deploying module", "name", name, "size", len(code))
		if err := e.CodeManager().RegisterCode(name, code); err != nil {
			return fmt.Errorf("failed to register module: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Module %s stored in: %s\n", name, filepath.Join(wasmDir, name))

		if !runSession {
			return nil
		}
		account, err := callerAccount()
		if err != nil {
			return err
		}
		return execCommit(cmd, e, enginetest.Standard(account, name, nil).Build())
	},
}

func init() {
	deployCmd.Flags().StringVarP(&sourceFile, "file", "f", "", "Wasm file of the module (required)")
	deployCmd.Flags().StringVarP(&moduleName, "name", "n", "", "Module name, the file name by default")
	deployCmd.Flags().BoolVar(&runSession, "run", false, "Run the module as a session after storing it")
	deployCmd.Flags().StringVarP(&accountHex, "account", "a", "", "Public key hex of the calling account")
	deployCmd.MarkFlagRequired("file")
}
