package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/wippyai/interop-stubs/stubs"
	"github.com/wippyai/interop-stubs/symtab"
	"github.com/wippyai/interop-stubs/typesys"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	methodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))
)

func newEmitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "emit FILE",
		Short: "Emit and print the stub of every declared method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.load(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			results, err := emitAll(cmd.Context(), d.Methods, cfg, listingJobs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printListing(out, d.Methods, results, isTerminal(out))
			printSymbols(out, cfg.Symbols.(*symtab.Table))
			return nil
		},
	}
}

// listingJobs is the parallelism of commands that print stub bodies. Native
// method sequence numbers are drawn in emission order, so printed listings
// are emitted one at a time to keep them stable between runs.
const listingJobs = 1

// emitAll emits the stubs of methods on up to jobs goroutines. Results come
// back in declaration order; with more than one job the sequence numbers of
// eager native methods depend on scheduling.
func emitAll(ctx context.Context, methods []*typesys.MethodDef, cfg *stubs.Config, jobs int) ([]stubs.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]stubs.Result, len(methods))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, m := range methods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = stubs.Emit(m, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func header(m typesys.Method, r stubs.Result, styled bool) string {
	tag := r.Kind.String()
	if r.Kind == stubs.NormalStub {
		tag += ", " + r.Binding.String()
	}
	if !styled {
		return fmt.Sprintf("%s [%s]", m, tag)
	}
	return methodStyle.Render(m.String()) + " " + tagStyle.Render("["+tag+"]")
}

func printListing(w io.Writer, methods []*typesys.MethodDef, results []stubs.Result, styled bool) {
	for i, r := range results {
		fmt.Fprintln(w, header(methods[i], r, styled))
		if r.Reason != nil {
			reason := "; " + r.Reason.Error()
			if styled {
				reason = errorStyle.Render(reason)
			}
			fmt.Fprintln(w, reason)
		}
		for _, line := range strings.Split(strings.TrimRight(r.Body.String(), "\n"), "\n") {
			fmt.Fprintln(w, "  "+line)
		}
		fmt.Fprintln(w)
	}
}

func printSymbols(w io.Writer, t *symtab.Table) {
	var natives, cells int
	symtab.Each(t, func(*stubs.PInvokeTargetNativeMethod) { natives++ })
	symtab.Each(t, func(*stubs.PInvokeLazyFixupField) { cells++ })
	fmt.Fprintf(w, "%d symbols: %d native methods, %d fixup cells\n", t.Len(), natives, cells)
}
