package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/interop-stubs/il"
	"github.com/wippyai/interop-stubs/lower"
	"github.com/wippyai/interop-stubs/stubs"
)

func newLowerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lower FILE -o OUT.wasm",
		Short: "Emit every stub and lower them to a WebAssembly module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output == "" {
				return fmt.Errorf("--output is required")
			}
			d, err := opts.load(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			results, err := emitAll(cmd.Context(), d.Methods, cfg, opts.jobs)
			if err != nil {
				return err
			}
			mod, err := lowerResults(results)
			if err != nil {
				return err
			}
			if err := os.WriteFile(opts.output, mod.Binary, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", opts.output, err)
			}
			printModule(cmd.OutOrStdout(), opts.output, mod)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output wasm file")
	return cmd
}

func lowerResults(results []stubs.Result) (*lower.Module, error) {
	bodies := make([]*il.MethodIL, len(results))
	for i, r := range results {
		bodies[i] = r.Body
	}
	return lower.Lower(bodies)
}

func printModule(w io.Writer, path string, mod *lower.Module) {
	fmt.Fprintf(w, "wrote %s (%d bytes)\n", path, len(mod.Binary))
	fmt.Fprintf(w, "  %d stubs, %d native imports, %d lazy cells, %d trampolines\n",
		len(mod.Exports), len(mod.Natives), len(mod.Cells), len(mod.Trampolines))
	for _, n := range mod.Natives {
		fmt.Fprintf(w, "  import %s!%s %s\n", n.Module, n.Entry, n.Signature)
	}
	for _, c := range mod.Cells {
		fmt.Fprintf(w, "  cell   %s @ %#x\n", c.Field.Name(), c.Address)
	}
}
