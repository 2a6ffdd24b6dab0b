package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.wasm>",
	Short: "List the imports and exports of a wasm module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read wasm file: %w", err)
		}

		ctx := cmd.Context()
		r := wazero.NewRuntime(ctx)
		defer r.Close(ctx)

		compiled, err := r.CompileModule(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to compile module: %w", err)
		}
		w := cmd.OutOrStdout()

		fmt.Fprintln(w, "Exports:")
		exports := compiled.ExportedFunctions()
		names := make([]string, 0, len(exports))
		for name := range exports {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  - %s: function\n", name)
		}
		for name := range compiled.ExportedMemories() {
			fmt.Fprintf(w, "  - %s: memory\n", name)
		}

		fmt.Fprintln(w, "Imports:")
		for _, def := range compiled.ImportedFunctions() {
			module, name, _ := def.Import()
			fmt.Fprintf(w, "  - module: '%s', name: '%s', type: function\n", module, name)
		}
		for _, def := range compiled.ImportedMemories() {
			module, name, _ := def.Import()
			fmt.Fprintf(w, "  - module: '%s', name: '%s', type: memory\n", module, name)
		}
		return nil
	},
}
