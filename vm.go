package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
)

var (
	ErrInvalidAddress  = errors.New("invalid memory address")
	ErrUninitialized   = errors.New("read of uninitialized memory")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrOutOfMemory     = errors.New("out of heap memory")
	ErrInvalidFree     = errors.New("invalid free")
	ErrStackOverflow   = errors.New("activation stack overflow")
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrTypeMismatch    = errors.New("operand type mismatch")
	ErrBadInput        = errors.New("bad input")
	ErrStepLimit       = errors.New("step limit exceeded")
)

// RuntimeError is a fatal error that stopped the VM.
type RuntimeError struct {
	Err error
	PC  int
	Op  Opcode
	Loc SourceLocation
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: runtime error at %04d (%s): %v", e.Loc, e.PC, e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// VM executes Bytecode.
//
// Memory is one array of cells: the static variables, then the heap, then
// the activation stack. The operand stack is separate.
type VM struct {
	code     []Instruction
	locs     []SourceLocation
	memory   []Value
	stack    []Value
	heap     *Heap
	frames   *ActivationStack
	static   int
	pc       int
	steps    int
	maxSteps int
	output   io.Writer
	input    *bufio.Reader
	reporter Reporter
	trace    *log.Logger

	// fault is set by stack operations that cannot fail loudly and checked
	// after every instruction.
	fault error
}

// NewVM prepares bytecode for execution. Warnings go to reporter.
func NewVM(bytecode *Bytecode, opts Options, reporter Reporter) *VM {
	static := bytecode.StaticSize
	heapStart := static
	stackStart := heapStart + opts.HeapSize
	vm := &VM{
		code:     bytecode.Code,
		locs:     bytecode.Locs,
		memory:   make([]Value, stackStart+opts.StackSize),
		heap:     NewHeap(heapStart, opts.HeapSize),
		frames:   NewActivationStack(stackStart, stackStart+opts.StackSize),
		static:   static,
		maxSteps: opts.MaxSteps,
		output:   opts.Output,
		reporter: reporter,
	}
	if vm.output == nil {
		vm.output = io.Discard
	}
	if opts.Input != nil {
		vm.input = bufio.NewReader(opts.Input)
	} else {
		vm.input = bufio.NewReader(strings.NewReader(""))
	}
	if opts.Trace != nil {
		vm.trace = log.New(opts.Trace, "", 0)
	}
	return vm
}

// Execute runs the program until it falls off the end of the code or fails.
func (vm *VM) Execute() error {
	for vm.pc < len(vm.code) {
		pc := vm.pc
		in := vm.code[pc]
		vm.pc++
		vm.steps++
		if vm.maxSteps > 0 && vm.steps > vm.maxSteps {
			return &RuntimeError{Err: ErrStepLimit, PC: pc, Op: in.Op, Loc: vm.loc(pc)}
		}
		if vm.trace != nil {
			vm.trace.Printf("[%04d] %-24s stack=%v", pc, in, vm.stack)
		}
		err := vm.step(in)
		if err == nil {
			err = vm.fault
		}
		if err != nil {
			return &RuntimeError{Err: err, PC: pc, Op: in.Op, Loc: vm.loc(pc)}
		}
	}
	return nil
}

// loc returns the source location of the instruction at pc, if known.
func (vm *VM) loc(pc int) SourceLocation {
	if pc < len(vm.locs) {
		return vm.locs[pc]
	}
	return SourceLocation{}
}

// Memory returns the VM's memory cells. Intended for inspection after
// Execute returns.
func (vm *VM) Memory() []Value {
	return vm.memory
}

// Heap returns the VM's dynamic memory manager.
func (vm *VM) Heap() *Heap {
	return vm.heap
}

// Stack returns the operand stack.
func (vm *VM) Stack() []Value {
	return vm.stack
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	if len(vm.stack) == 0 {
		if vm.fault == nil {
			vm.fault = ErrStackUnderflow
		}
		return Unknown
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek() Value {
	if len(vm.stack) == 0 {
		if vm.fault == nil {
			vm.fault = ErrStackUnderflow
		}
		return Unknown
	}
	return vm.stack[len(vm.stack)-1]
}

// popAddress pops a value that must be a usable memory address.
func (vm *VM) popAddress() (int, error) {
	v := vm.pop()
	if v.Kind != ValInt {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAddress, v.Literal())
	}
	addr := int(v.Int())
	if !vm.validAddress(addr) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAddress, addr)
	}
	return addr, nil
}

// validAddress reports whether addr is a static cell, an allocated heap
// cell, or a cell of a live activation register.
func (vm *VM) validAddress(addr int) bool {
	return (addr >= 0 && addr < vm.static) || vm.heap.IsAllocated(addr) || vm.frames.Contains(addr)
}

// validRange reports whether all of [addr, addr+n) are valid.
func (vm *VM) validRange(addr, n int) bool {
	for i := 0; i < n; i++ {
		if !vm.validAddress(addr + i) {
			return false
		}
	}
	return true
}

func (vm *VM) step(in Instruction) error {
	switch in.Op {
	case OpPush:
		vm.push(in.Val)

	case OpLoad:
		if in.A < 0 || in.A >= vm.static {
			return fmt.Errorf("%w: %d", ErrInvalidAddress, in.A)
		}
		v := vm.memory[in.A]
		if v.IsUnknown() {
			vm.reporter.Warning(UninitializedRead, vm.loc(vm.pc-1), in.A)
		}
		vm.push(v)

	case OpStore:
		if in.A < 0 || in.A >= vm.static {
			return fmt.Errorf("%w: %d", ErrInvalidAddress, in.A)
		}
		vm.memory[in.A] = vm.pop()

	case OpLoadInd:
		addr, err := vm.popAddress()
		if err != nil {
			return err
		}
		v := vm.memory[addr]
		if v.IsUnknown() {
			return fmt.Errorf("%w at address %d", ErrUninitialized, addr)
		}
		vm.push(v)

	case OpStoreInd:
		v := vm.pop()
		addr, err := vm.popAddress()
		if err != nil {
			return err
		}
		vm.memory[addr] = v

	case OpCopy:
		src, err := vm.popAddress()
		if err != nil {
			return err
		}
		dst, err := vm.popAddress()
		if err != nil {
			return err
		}
		if !vm.validRange(src, in.A) || !vm.validRange(dst, in.A) {
			return fmt.Errorf("%w: copy of %d cells from %d to %d", ErrInvalidAddress, in.A, src, dst)
		}
		copy(vm.memory[dst:dst+in.A], vm.memory[src:src+in.A])

	case OpDup:
		vm.push(vm.peek())

	case OpPop:
		vm.pop()

	case OpJump:
		vm.pc = in.A

	case OpJumpIfFalse:
		// An Unknown condition counts as false.
		cond := vm.pop()
		if cond.Kind != ValBool || !cond.Bool() {
			vm.pc = in.A
		}

	case OpJumpInd:
		target := vm.pop()
		if target.Kind != ValInt || target.Int() < 0 || int(target.Int()) > len(vm.code) {
			return fmt.Errorf("%w: jump to %s", ErrInvalidAddress, target.Literal())
		}
		vm.pc = int(target.Int())

	case OpAlloc:
		addr, err := vm.heap.Alloc(in.A)
		if err != nil {
			return err
		}
		vm.push(IntValue(int64(addr)))

	case OpDealloc:
		v := vm.pop()
		if v.Kind != ValInt {
			return fmt.Errorf("%w: %s is not an address", ErrInvalidFree, v.Literal())
		}
		addr := int(v.Int())
		if err := vm.heap.Free(addr, in.A); err != nil {
			return err
		}
		for i := addr; i < addr+max(in.A, 1); i++ {
			vm.memory[i] = Unknown
		}

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr:
		r := vm.pop()
		l := vm.pop()
		v, err := binaryOp(in.Op, l, r)
		if err != nil {
			return err
		}
		vm.push(v)

	case OpEqKeep:
		r := vm.pop()
		v, err := binaryOp(in.Op, vm.peek(), r)
		if err != nil {
			return err
		}
		vm.push(v)

	case OpNeg, OpNot, OpToInt, OpToReal, OpToBool, OpToChar, OpToString:
		v, err := unaryOp(in.Op, vm.pop())
		if err != nil {
			return err
		}
		vm.push(v)

	case OpCharAt:
		i := vm.pop()
		s := vm.pop()
		if i.IsUnknown() || s.IsUnknown() {
			vm.push(Unknown)
			break
		}
		if i.Kind != ValInt || s.Kind != ValString {
			return fmt.Errorf("%w: elem of %s at %s", ErrTypeMismatch, s.Literal(), i.Literal())
		}
		runes := []rune(s.Str())
		if i.Int() < 0 || i.Int() >= int64(len(runes)) {
			return fmt.Errorf("%w: index %d of string of length %d", ErrIndexOutOfRange, i.Int(), len(runes))
		}
		vm.push(CharValue(runes[i.Int()]))

	case OpCheckIndex:
		i := vm.peek()
		if i.IsUnknown() {
			return fmt.Errorf("%w: array index", ErrUninitialized)
		}
		if i.Kind != ValInt {
			return fmt.Errorf("%w: array index %s", ErrTypeMismatch, i.Literal())
		}
		if i.Int() < 0 || i.Int() >= int64(in.A) {
			return fmt.Errorf("%w: index %d of array of length %d", ErrIndexOutOfRange, i.Int(), in.A)
		}

	case OpWrite:
		if _, err := fmt.Fprintln(vm.output, vm.pop()); err != nil {
			return err
		}

	case OpRead:
		line, err := vm.input.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		v, err := ParseValue(ValueKind(in.A), strings.TrimRight(line, "\r\n"))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		vm.push(v)

	case OpActivate:
		base, err := vm.frames.CreateActivationRegister(in.B)
		if err != nil {
			return err
		}
		for i := base; i < base+in.B+2; i++ {
			vm.memory[i] = Unknown
		}
		vm.memory[base] = IntValue(int64(in.C))
		vm.memory[base+1] = IntValue(int64(vm.frames.Display(in.A)))
		vm.push(IntValue(int64(base)))

	case OpSetDisplay:
		base := vm.pop()
		if base.Kind != ValInt {
			return fmt.Errorf("%w: display base %s", ErrInvalidAddress, base.Literal())
		}
		vm.frames.FixDisplay(in.A, int(base.Int()))

	case OpDeactivate:
		base := vm.frames.Display(in.A)
		if base < 0 || !vm.frames.Contains(base) {
			return fmt.Errorf("%w: no register at level %d", ErrStackUnderflow, in.A)
		}
		ret := vm.memory[base]
		vm.frames.FixDisplay(in.A, int(vm.memory[base+1].Int()))
		if _, err := vm.frames.FreeActivationRegister(in.B); err != nil {
			return err
		}
		vm.push(ret)

	case OpLoadDisplay:
		base := vm.frames.Display(in.A)
		if base < 0 {
			return fmt.Errorf("%w: no register at level %d", ErrInvalidAddress, in.A)
		}
		vm.push(IntValue(int64(base)))

	default:
		return fmt.Errorf("unknown opcode %s", in.Op)
	}
	return nil
}
