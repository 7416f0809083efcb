// Command vmscript is the CLI entrypoint for the language: it either
// drops into an interactive REPL or compiles and runs a single source
// file, per spec.md §6's CLI contract.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kristofer/vmscript/internal/ast"
	"github.com/kristofer/vmscript/internal/bytecode"
	"github.com/kristofer/vmscript/internal/compiler"
	"github.com/kristofer/vmscript/internal/parser"
	"github.com/kristofer/vmscript/internal/vm"
)

const version = "0.1.0"

// Exit codes per spec.md §6: 0 success, 70 compile error, 80 runtime error.
const (
	exitOK      = 0
	exitCompile = 70
	exitRuntime = 80
	exitUsage   = 1
)

func main() {
	var debug bool

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.InfoLevel)

	root := &cobra.Command{
		Use:           "vmscript [path]",
		Short:         "vmscript interprets a small bytecode-compiled scripting language",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				log.SetLevel(logrus.DebugLevel)
			}
			if os.Getenv("VMSCRIPT_DEBUG") != "" {
				log.SetLevel(logrus.DebugLevel)
			}
			entry := logrus.NewEntry(log)

			if len(args) == 0 {
				runREPL(entry)
				return nil
			}
			os.Exit(runFile(args[0], entry))
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "trace compiled bytecode and VM call frames to stderr")

	runCmd := &cobra.Command{
		Use:   "run <path>",
		Short: "compile and run a vmscript source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug || os.Getenv("VMSCRIPT_DEBUG") != "" {
				log.SetLevel(logrus.DebugLevel)
			}
			entry := logrus.NewEntry(log)
			os.Exit(runFile(args[0], entry))
			return nil
		},
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print the vmscript version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("vmscript version " + version)
		},
	}
	root.AddCommand(runCmd, versionCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
}

// runFile compiles and runs a single source file, returning the process
// exit code spec.md §6 specifies.
func runFile(path string, log *logrus.Entry) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmscript: %v\n", err)
		return exitUsage
	}

	machine := vm.New()
	machine.SetLogger(log)
	machine.DefineStandardNatives()

	fn, err := compileSource(machine, string(src), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitCompile
	}

	if err := machine.Run(fn); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitRuntime
	}
	return exitOK
}

// compileSource runs a source string through the parser and compiler,
// refusing to proceed to compilation if parsing produced any diagnostic.
func compileSource(alloc compiler.Allocator, src string, log *logrus.Entry) (*bytecode.Function, error) {
	p := parser.New(src)
	prog, err := p.Parse()
	if err != nil {
		return nil, fmt.Errorf("parse error:\n%v", err)
	}

	c := compiler.New(alloc)
	c.SetLogger(log)
	fn, err := c.Compile(prog)
	if err != nil {
		return nil, fmt.Errorf("compile error:\n%v", err)
	}
	return fn, nil
}

// runREPL implements the `>> ` / `:quit` loop spec.md §6 and SPEC_FULL.md
// §4.9 describe: a persistent VM across lines, and auto-printing the
// value of a bare expression statement.
func runREPL(log *logrus.Entry) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmscript: %v\n", err)
		os.Exit(exitUsage)
	}
	defer rl.Close()

	machine := vm.New()
	machine.SetLogger(log)
	machine.DefineStandardNatives()

	fmt.Printf("vmscript %s\n", version)
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF (Ctrl-D) or readline.ErrInterrupt
			if err == io.EOF || err == readline.ErrInterrupt {
				return
			}
			fmt.Fprintf(os.Stderr, "vmscript: %v\n", err)
			return
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", ":quit", ":exit":
			return
		}

		evalLine(machine, line, log)
	}
}

// evalLine compiles and runs a single REPL line against the persistent
// VM, printing the trailing expression value (if any) per the auto-print
// convenience.
func evalLine(machine *vm.VM, line string, log *logrus.Entry) {
	p := parser.New(line)
	prog, err := p.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error:\n%v\n", err)
		return
	}

	c := compiler.New(machine)
	c.SetLogger(log)
	fn, err := c.Compile(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile error:\n%v\n", err)
		return
	}

	machine.Reset()
	if err := machine.Run(fn); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}

	if isBareExpression(prog) {
		if v, ok := machine.LastValue(); ok {
			fmt.Printf("=> %s\n", v.String())
		}
	}
}

// isBareExpression reports whether the REPL line compiled down to exactly
// one top-level ExpressionStatement, the only case the auto-print applies
// to.
func isBareExpression(prog *ast.Program) bool {
	if len(prog.Statements) != 1 {
		return false
	}
	_, ok := prog.Statements[0].(*ast.ExpressionStatement)
	return ok
}
