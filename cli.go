package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/strager/tyro/sexy"
)

func showUsage() {
	fmt.Fprintf(os.Stderr, `Tyro - a small imperative language compiled to a stack VM

Usage:
    tyro <command> [arguments]

Commands:
    run <file>      Compile and execute a program
    check <file>    Link and type-check a program
    disasm <file>   Compile a program and print its bytecode
    repl            Read programs interactively and run them
    help            Show this help message

Programs are s-expressions:
    (program (var "x" int) (block (assign (var "x") 42) (write (var "x"))))

Use "tyro <command> -h" for more information about a command.
`)
}

// loadFile reads and loads a program, reporting failures on stderr.
func loadFile(filename string, stderr io.Writer) (*ASTNode, bool) {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading file %s: %v\n", filename, err)
		return nil, false
	}
	program, err := LoadProgram(string(source))
	if err != nil {
		fmt.Fprintf(stderr, "%s:%v\n", filename, err)
		return nil, false
	}
	return program, true
}

// printDiagnostics renders everything collected so far, one per line.
func printDiagnostics(w io.Writer, prefix string, diags *Diagnostics) {
	for _, d := range diags.Items {
		fmt.Fprintf(w, "%s%s\n", prefix, d)
	}
}

func runCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	verbose := fs.Bool("v", false, "Show verbose compilation details")
	trace := fs.Bool("trace", false, "Log every executed instruction to stderr")
	heap := fs.Int("heap", DefaultOptions().HeapSize, "Heap size in cells")
	stack := fs.Int("stack", DefaultOptions().StackSize, "Activation stack size in cells")
	maxSteps := fs.Int("max-steps", 0, "Stop after this many instructions (0 = no limit)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tyro run [-v] [-trace] [-heap N] [-stack N] [-max-steps N] <file>\n")
		fmt.Fprintf(os.Stderr, "Compile and execute a program\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: expected exactly one file argument\n")
		fs.Usage()
		return 1
	}
	if err := checkSizes(*heap, *stack, *maxSteps); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return 1
	}
	filename := fs.Arg(0)

	if *verbose {
		fmt.Fprintf(os.Stderr, "Compiling %s...\n", filename)
	}
	program, ok := loadFile(filename, os.Stderr)
	if !ok {
		return 1
	}

	opts := DefaultOptions()
	opts.HeapSize = *heap
	opts.StackSize = *stack
	opts.MaxSteps = *maxSteps
	opts.Output = os.Stdout
	opts.Input = os.Stdin
	if *trace {
		opts.Trace = os.Stderr
	}
	return execute(program, opts, filename+":", *verbose, os.Stderr)
}

// checkSizes rejects memory and step limits the VM cannot honor.
func checkSizes(heap, stack, maxSteps int) error {
	switch {
	case heap < 0:
		return fmt.Errorf("-heap must not be negative, got %d", heap)
	case stack < 0:
		return fmt.Errorf("-stack must not be negative, got %d", stack)
	case maxSteps < 0:
		return fmt.Errorf("-max-steps must not be negative, got %d", maxSteps)
	}
	return nil
}

// execute compiles and runs program, printing diagnostics to stderr. It
// returns the process exit status.
func execute(program *ASTNode, opts Options, prefix string, verbose bool, stderr io.Writer) int {
	result, err := CompileAndRun(program, opts)
	printDiagnostics(stderr, prefix, result.Diagnostics)
	if verbose && result.Bytecode != nil {
		fmt.Fprintf(stderr, "Generated %d instructions, %d static cells\n", len(result.Bytecode.Code), result.Bytecode.StaticSize)
	}
	switch {
	case errors.Is(err, ErrCompilationFailed):
		fmt.Fprintf(stderr, "Compilation failed: %v\n", err)
		return 1
	case err != nil:
		fmt.Fprintf(stderr, "%s%v\n", prefix, err)
		return 1
	}
	return 0
}

func checkCommand(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	verbose := fs.Bool("v", false, "Show verbose checking details")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tyro check [-v] <file>\n")
		fmt.Fprintf(os.Stderr, "Link and type-check a program\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: expected exactly one file argument\n")
		fs.Usage()
		return 1
	}
	filename := fs.Arg(0)

	if *verbose {
		fmt.Fprintf(os.Stderr, "Checking %s...\n", filename)
	}
	program, ok := loadFile(filename, os.Stderr)
	if !ok {
		return 1
	}

	diags := &Diagnostics{}
	_, err := Compile(program, diags)
	if err != nil {
		fmt.Printf("Errors in %s:\n", filename)
		printDiagnostics(os.Stdout, filename+":", diags)
		return 1
	}

	fmt.Printf("%s: no errors found\n", filename)
	if *verbose {
		fmt.Printf("AST: %s\n", ToSExpr(program))
	}
	return 0
}

func disasmCommand(args []string) int {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tyro disasm <file>\n")
		fmt.Fprintf(os.Stderr, "Compile a program and print its bytecode\n")
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: expected exactly one file argument\n")
		fs.Usage()
		return 1
	}
	filename := fs.Arg(0)

	program, ok := loadFile(filename, os.Stderr)
	if !ok {
		return 1
	}
	diags := &Diagnostics{}
	bytecode, err := Compile(program, diags)
	if err != nil {
		printDiagnostics(os.Stderr, filename+":", diags)
		fmt.Fprintf(os.Stderr, "Compilation failed: %v\n", err)
		return 1
	}
	fmt.Printf("; %d static cells\n", bytecode.StaticSize)
	fmt.Print(bytecode.Disassemble())
	return 0
}

const (
	replHistoryFile = ".tyro_history"
	replPrompt      = "tyro> "
	replContinue    = "...   "
)

func replCommand(args []string) int {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	disasm := fs.Bool("disasm", false, "Print the bytecode of every program before running it")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	fmt.Println("Tyro REPL. Enter a (program ...) to run it, :quit to exit.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, replHistoryFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	saveHistory := func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}
	defer saveHistory()

	// Ctrl-C at the prompt is handled by liner. An interrupt while a program
	// runs stops the REPL, keeping the history.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	defer signal.Stop(sigc)
	go func() {
		if _, ok := <-sigc; ok {
			saveHistory()
			ln.Close()
			os.Exit(130)
		}
	}()

	for {
		src, ok := readProgram(ln)
		if !ok {
			fmt.Println()
			return 0
		}
		switch strings.TrimSpace(src) {
		case "":
			continue
		case ":quit":
			return 0
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		evalREPLInput(src, *disasm, os.Stdout, os.Stderr)
	}
}

// linePrompter reads one line of input. *liner.State implements it.
type linePrompter interface {
	Prompt(prompt string) (string, error)
}

// readProgram reads lines until they form a complete datum, a :command, or
// a syntax error. Ctrl-C discards the lines read so far and prompts again.
// It returns false at end of input.
func readProgram(ln linePrompter) (string, bool) {
	var b strings.Builder
	for {
		prompt := replPrompt
		if b.Len() > 0 {
			prompt = replContinue
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			b.Reset()
			continue
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if _, err := sexy.Parse(src); errors.Is(err, sexy.ErrIncomplete) && strings.TrimSpace(src) != "" {
			continue
		}
		return src, true
	}
}

// evalREPLInput loads, compiles and runs one program entered at the prompt.
func evalREPLInput(src string, disasm bool, stdout, stderr io.Writer) int {
	program, err := LoadProgram(src)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	opts := DefaultOptions()
	opts.Output = stdout
	if disasm {
		diags := &Diagnostics{}
		bytecode, err := Compile(program, diags)
		if err != nil {
			printDiagnostics(stderr, "", diags)
			return 1
		}
		fmt.Fprint(stdout, bytecode.Disassemble())
		// Compile decorated the AST in place; run from a fresh copy.
		program, _ = LoadProgram(src)
	}
	return execute(program, opts, "", false, stderr)
}

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "run":
		os.Exit(runCommand(args))
	case "check":
		os.Exit(checkCommand(args))
	case "disasm":
		os.Exit(disasmCommand(args))
	case "repl":
		os.Exit(replCommand(args))
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		showUsage()
		os.Exit(1)
	}
}
