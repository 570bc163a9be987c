// Package astccmd provides the astc command-line interface: compile,
// dump, and inspect subcommands over the ast package.
package astccmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyjsvm/ast"
	"github.com/tinyjsvm/ast/inspect"
	"github.com/tinyjsvm/ast/internal/jsparse"
)

// Run parses command-line arguments and executes the matching astc
// subcommand. It should be called directly from main(); on error it prints
// a single-line message to stderr and exits nonzero.
func Run() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	return newRootCmd().Execute()
}

// newRootCmd builds the astc command tree. Split out from run() so tests
// can exercise it with Command.SetArgs instead of os.Args.
func newRootCmd() *cobra.Command {
	var format string

	compile := &cobra.Command{
		Use:   "compile <file>",
		Short: "Parse a JavaScript source file and emit its packed AST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := parseFile(args[0])
			if err != nil {
				return err
			}
			switch format {
			case "binary":
				_, err := os.Stdout.Write(tree.Bytes())
				return err
			case "text":
				return ast.Dump(os.Stdout, tree)
			default:
				return fmt.Errorf("unknown --format %q (want binary or text)", format)
			}
		},
	}
	compile.Flags().StringVar(&format, "format", "binary", `output format: "binary" or "text"`)

	var elideNames bool
	dump := &cobra.Command{
		Use:   "dump <file>",
		Short: "Parse a JavaScript source file and print its textual AST dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := parseFile(args[0])
			if err != nil {
				return err
			}
			var opts []ast.DumpOption
			if elideNames {
				opts = append(opts, ast.ElideNames())
			}
			return ast.Dump(os.Stdout, tree, opts...)
		},
	}
	dump.Flags().BoolVar(&elideNames, "elide-names", false, "print TAG_<n> instead of catalog display names")

	inspectCmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Parse a JavaScript source file and step through its packed AST interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := parseFile(args[0])
			if err != nil {
				return err
			}
			return inspect.RunTerminalUI(tree)
		},
	}

	root := &cobra.Command{
		Use:   "astc",
		Short: "Packed AST compiler/inspector for a compact JavaScript engine",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		// Run reports the error itself, on one line.
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(compile, dump, inspectCmd)
	return root
}

func parseFile(path string) (*ast.Tree, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	tree, err := jsparse.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}
