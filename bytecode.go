package main

import (
	"fmt"
	"strings"
)

// Opcode is a VM instruction.
type Opcode uint8

const (
	OpPush        Opcode = iota // push Val
	OpLoad                      // push mem[A]
	OpStore                     // mem[A] = pop
	OpLoadInd                   // addr = pop; push mem[addr]
	OpStoreInd                  // v = pop; addr = pop; mem[addr] = v
	OpCopy                      // src = pop; dst = pop; copy A cells
	OpDup                       // push top
	OpPop                       // discard top
	OpJump                      // pc = A
	OpJumpIfFalse               // if !pop { pc = A }
	OpJumpInd                   // pc = pop
	OpAlloc                     // push address of A new heap cells
	OpDealloc                   // free A heap cells at pop

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpEqKeep // r = pop; push top == r, keeping the left operand
	OpAnd
	OpOr
	OpNot
	OpToInt
	OpToReal
	OpToBool
	OpToChar
	OpToString
	OpCharAt     // i = pop; s = pop; push s[i]
	OpCheckIndex // fail unless 0 <= top < A

	OpWrite // print pop
	OpRead  // push a value of kind A read from input

	OpActivate    // reserve a register for level A with B cells, returning to C; push its base
	OpSetDisplay  // display[A] = pop
	OpDeactivate  // release the level A register of B cells; push its return address
	OpLoadDisplay // push display[A]
)

var opcodeNames = [...]string{
	OpPush:        "PUSH",
	OpLoad:        "LOAD",
	OpStore:       "STORE",
	OpLoadInd:     "LOAD_IND",
	OpStoreInd:    "STORE_IND",
	OpCopy:        "COPY",
	OpDup:         "DUP",
	OpPop:         "POP",
	OpJump:        "JUMP",
	OpJumpIfFalse: "JUMP_IF_FALSE",
	OpJumpInd:     "JUMP_IND",
	OpAlloc:       "ALLOC",
	OpDealloc:     "DEALLOC",
	OpAdd:         "ADD",
	OpSub:         "SUB",
	OpMul:         "MUL",
	OpDiv:         "DIV",
	OpMod:         "MOD",
	OpNeg:         "NEG",
	OpEq:          "EQ",
	OpNe:          "NE",
	OpLt:          "LT",
	OpLe:          "LE",
	OpGt:          "GT",
	OpGe:          "GE",
	OpEqKeep:      "EQ_KEEP",
	OpAnd:         "AND",
	OpOr:          "OR",
	OpNot:         "NOT",
	OpToInt:       "TO_INT",
	OpToReal:      "TO_REAL",
	OpToBool:      "TO_BOOL",
	OpToChar:      "TO_CHAR",
	OpToString:    "TO_STRING",
	OpCharAt:      "CHAR_AT",
	OpCheckIndex:  "CHECK_INDEX",
	OpWrite:       "WRITE",
	OpRead:        "READ",
	OpActivate:    "ACTIVATE",
	OpSetDisplay:  "SET_DISPLAY",
	OpDeactivate:  "DEACTIVATE",
	OpLoadDisplay: "LOAD_DISPLAY",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// operandCount is the number of integer operands op uses.
func (op Opcode) operandCount() int {
	switch op {
	case OpLoad, OpStore, OpCopy, OpJump, OpJumpIfFalse, OpAlloc, OpDealloc,
		OpCheckIndex, OpRead, OpSetDisplay, OpLoadDisplay:
		return 1
	case OpDeactivate:
		return 2
	case OpActivate:
		return 3
	default:
		return 0
	}
}

// Instruction is one VM instruction. Only OpPush uses Val; the meaning of
// A, B and C depends on Op.
type Instruction struct {
	Op      Opcode
	A, B, C int
	Val     Value
}

func (in Instruction) String() string {
	name := in.Op.String()
	if in.Op == OpPush {
		return name + " " + in.Val.Literal()
	}
	if in.Op == OpRead {
		return name + " " + ValueKind(in.A).String()
	}
	operands := []int{in.A, in.B, in.C}[:in.Op.operandCount()]
	for _, n := range operands {
		name += fmt.Sprintf(" %d", n)
	}
	return name
}

// Bytecode is a compiled program.
type Bytecode struct {
	Code []Instruction
	// Locs[pc] is the source location Code[pc] was generated from.
	Locs []SourceLocation
	// StaticSize is the number of memory cells the program's static
	// variables need.
	StaticSize int
}

// Disassemble renders one instruction per line, prefixed with its position.
func (b *Bytecode) Disassemble() string {
	var sb strings.Builder
	for pc, in := range b.Code {
		fmt.Fprintf(&sb, "%04d  %s\n", pc, in)
	}
	return sb.String()
}
