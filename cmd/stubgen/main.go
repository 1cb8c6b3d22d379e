// Command stubgen compiles interop declaration files into PInvoke stubs.
//
//	stubgen emit decls.yaml              print every stub's IL
//	stubgen lower decls.yaml -o out.wasm lower the stubs to a wasm module
//	stubgen browse decls.yaml            browse the stubs interactively
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/interop-stubs/decl"
	"github.com/wippyai/interop-stubs/lower"
	"github.com/wippyai/interop-stubs/stubs"
	"github.com/wippyai/interop-stubs/symtab"
)

type options struct {
	logLevel   string
	os         string
	resolution string
	output     string
	jobs       int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "stubgen",
		Short:         "Synthesize PInvoke stubs from interop declarations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.logLevel)
			if err != nil {
				return err
			}
			stubs.SetLogger(logger)
			lower.SetLogger(logger)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.os, "os", "", "target OS, overrides the declaration file")
	flags.StringVar(&opts.resolution, "resolution", "auto", "native binding: auto, lazy or eager")
	flags.IntVar(&opts.jobs, "jobs", runtime.GOMAXPROCS(0), "stubs emitted in parallel by lower; emit and browse run in declaration order")

	root.AddCommand(newEmitCmd(opts), newLowerCmd(opts), newBrowseCmd(opts))
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// load reads the declaration file and applies the target overrides.
func (o *options) load(path string) (*decl.Declarations, error) {
	f, err := decl.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if o.os != "" {
		f.Target.OS = o.os
	}
	return f.Resolve()
}

func (o *options) config() (*stubs.Config, error) {
	policy, err := stubs.ParseResolutionPolicy(o.resolution)
	if err != nil {
		return nil, err
	}
	cfg := stubs.DefaultConfig()
	cfg.Resolution = policy
	cfg.Symbols = symtab.New()
	return cfg, nil
}
