package main

import (
	"errors"
	"fmt"
	"io"
)

// ErrCompilationFailed is returned when a pass reported errors. The errors
// themselves went to the Reporter.
var ErrCompilationFailed = errors.New("compilation failed")

// Options configures execution.
type Options struct {
	// Sizes, in cells, of the heap and the activation stack.
	HeapSize  int
	StackSize int
	// MaxSteps stops the VM after that many instructions. 0 means no limit.
	MaxSteps int

	// Output receives what write prints. Input supplies what read reads.
	Output io.Writer
	Input  io.Reader
	// Trace, if set, receives one line per executed instruction.
	Trace io.Writer
}

func DefaultOptions() Options {
	return Options{
		HeapSize:  4096,
		StackSize: 4096,
	}
}

// Compile runs every pass but execution: linking, type checking, type sizes,
// addresses, labels and code generation. Passes after linking and after type
// checking do not run if the pass before reported an error.
func Compile(program *ASTNode, reporter Reporter) (*Bytecode, error) {
	if LinkProgram(program, reporter) {
		return nil, fmt.Errorf("%w: linking", ErrCompilationFailed)
	}
	if CheckProgram(program, reporter) {
		return nil, fmt.Errorf("%w: type checking", ErrCompilationFailed)
	}
	if ComputeTypeSizes(program, reporter) {
		return nil, fmt.Errorf("%w: type sizes", ErrCompilationFailed)
	}
	staticSize := AssignAddresses(program)
	AssignLabels(program)
	return GenerateCode(program, staticSize)
}

// Result is what CompileAndRun produced.
type Result struct {
	// Diagnostics holds every error and warning, from compilation and from
	// execution.
	Diagnostics *Diagnostics
	// Bytecode is nil if compilation failed.
	Bytecode *Bytecode
	// VM is nil if compilation failed. After a run it holds the final state.
	VM *VM
}

// CompileAndRun compiles program and, if that succeeds, executes it. The
// error is ErrCompilationFailed (wrapped) or a *RuntimeError.
func CompileAndRun(program *ASTNode, opts Options) (*Result, error) {
	result := &Result{Diagnostics: &Diagnostics{}}
	bytecode, err := Compile(program, result.Diagnostics)
	if err != nil {
		return result, err
	}
	result.Bytecode = bytecode
	result.VM = NewVM(bytecode, opts, result.Diagnostics)
	return result, result.VM.Execute()
}
