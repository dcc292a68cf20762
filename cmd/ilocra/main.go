// Command ilocra is the local register allocator driver: it reads an ILOC
// instruction stream from a file, runs one of the four allocators against a
// target register budget, and prints the rewritten stream to stdout.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/minz/ilocra/pkg/iloc"
	"github.com/minz/ilocra/pkg/regalloc"
	"github.com/minz/ilocra/pkg/version"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	showVersion     bool
	showVersionFull bool
)

var allocators = map[string]regalloc.Allocator{
	"b": regalloc.BottomUp{},
	"s": regalloc.Simple{},
	"t": regalloc.TopDown{},
	"o": regalloc.LinearScan{},
}

var rootCmd = &cobra.Command{
	Use:   "ilocra <registers> <algorithm> <filename>",
	Short: "ILOC local register allocator " + version.GetVersion(),
	Long: `ilocra rewrites an ILOC instruction stream to use a bounded physical
register file, inserting spill code against r0 where the working set
exceeds the requested budget.

ALGORITHMS:
  b    bottom-up (Belady-style farthest-next-use eviction)
  s    simple top-down (frequency-ranked, no live ranges)
  t    top-down with live ranges and max-live pruning
  o    linear scan (interval heap, spill-at-interval)`,
	Args: cobra.MaximumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersion())
			return
		}
		if showVersionFull {
			fmt.Println(version.GetFullVersion())
			return
		}
		if len(args) < 3 {
			cmd.Help()
			os.Exit(0)
		}
		if err := run(args[0], args[1], args[2]); err != nil {
			diagnostic(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.Flags().BoolVar(&showVersionFull, "version-full", false, "show full version info")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(registersArg, algorithmArg, filename string) error {
	registers, err := strconv.Atoi(registersArg)
	if err != nil {
		return &iloc.InvalidRegisterBudgetError{Budget: 0}
	}
	if registers < 2 {
		return &iloc.InvalidRegisterBudgetError{Budget: registers}
	}

	alloc, ok := allocators[algorithmArg]
	if !ok {
		return &iloc.UnknownAlgorithmError{Code: algorithmArg}
	}

	f, err := os.Open(filename)
	if err != nil {
		return &iloc.IOFailureError{Path: filename, Err: err}
	}
	defer f.Close()

	instructions, err := iloc.Parse(f)
	if err != nil {
		return err
	}

	out := alloc.Allocate(instructions, registers)
	if err := iloc.Print(os.Stdout, out); err != nil {
		return &iloc.IOFailureError{Path: "stdout", Err: err}
	}
	return nil
}

// diagnostic writes a one-line error report to stderr, colored red when
// stderr is an interactive terminal.
func diagnostic(err error) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintf(os.Stderr, "\x1b[31mError: %v\x1b[0m\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
