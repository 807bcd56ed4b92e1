package main

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/strager/tyro/sexy"
)

func TestLoadProgramShape(t *testing.T) {
	program := mustLoad(t, `
(program
  (type "P" (pointer (named "P")))
  (var "x" int)
  (proc "f" [(val "a" real) (ref "b" (array 2 char))]
    (block (var "l" bool) (write (var "a"))))
  (block
    (assign (var "x") 1)
    (if (lt (var "x") 2) (write "yes") (write "no"))
    (if true (write 1))
    (while false (block))
    (call "f" 2.5 (var "x"))))`)

	be.Equal(t, program.Kind, NodeProgram)
	be.Equal(t, len(program.Decls), 3)
	be.Equal(t, program.Decls[0].Kind, NodeTypeDecl)
	be.Equal(t, program.Decls[1].Kind, NodeVarDecl)
	be.Equal(t, program.Decls[1].DeclType, IntType)

	proc := program.Decls[2]
	be.Equal(t, proc.Kind, NodeProcDecl)
	be.Equal(t, proc.String, "f")
	be.Equal(t, len(proc.Params), 2)
	be.True(t, !proc.Params[0].ByRef)
	be.True(t, proc.Params[1].ByRef)
	be.Equal(t, TypeToString(proc.Params[1].DeclType), "[2]Char")
	be.Equal(t, len(proc.Body.Decls), 1)
	be.Equal(t, len(proc.Body.Children), 1)

	var kinds []NodeKind
	for _, instr := range program.Body.Children {
		kinds = append(kinds, instr.Kind)
	}
	be.Equal(t, kinds, []NodeKind{NodeAssign, NodeIfElse, NodeIf, NodeWhile, NodeCall})

	call := program.Body.Children[4]
	be.Equal(t, call.String, "f")
	be.Equal(t, call.Children[0].Kind, NodeReal)
	be.Equal(t, call.Children[0].Real, 2.5)
	be.Equal(t, call.Children[1].Kind, NodeIdent)
}

func TestLoadExpressions(t *testing.T) {
	tests := []struct {
		src  string
		kind NodeKind
		op   Operator
	}{
		{`42`, NodeInteger, ""},
		{`-1.25`, NodeReal, ""},
		{`"text"`, NodeString, ""},
		{`true`, NodeBoolean, ""},
		{`null`, NodeNull, ""},
		{`(char "z")`, NodeChar, ""},
		{`(var "x")`, NodeIdent, ""},
		{`(index (var "a") 1)`, NodeIndex, ""},
		{`(field (var "r") "f")`, NodeSelect, ""},
		{`(deref (var "p"))`, NodeDeref, ""},
		{`(neg 1)`, NodeUnary, OperatorNeg},
		{`(to-string 1)`, NodeUnary, OperatorToString},
		{`(elem "ab" 0)`, NodeBinary, OperatorElem},
		{`(ge 1 2)`, NodeBinary, OperatorGe},
		{`(or true false)`, NodeBinary, OperatorOr},
	}

	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			program := mustLoad(t, "(program (write "+test.src+"))")
			exp := program.Body.Children[0]
			be.Equal(t, exp.Kind, test.kind)
			be.Equal(t, exp.Op, test.op)
		})
	}
}

func TestLoadSwitch(t *testing.T) {
	program := mustLoad(t, `
(program (switch 1
  (case 1 (write "one"))
  (case 2 (write "two"))
  (default (write "other"))))`)

	sw := program.Body
	be.Equal(t, sw.Kind, NodeSwitch)
	be.Equal(t, len(sw.Children), 3)
	be.Equal(t, sw.Children[1].Kind, NodeCase)
	be.Equal(t, sw.Children[2].Children[0].Integer, int64(2))
	be.Equal(t, sw.Body.Kind, NodeWrite)
}

func TestLoadLocations(t *testing.T) {
	program := mustLoad(t, "(program\n  (var \"x\" int)\n  (block\n    (write ^{line: 40, col: 2} (var \"x\"))\n    (write ^{line: 50} 1)))")

	be.Equal(t, program.Loc, SourceLocation{Line: 1, Column: 1})
	be.Equal(t, program.Decls[0].Loc, SourceLocation{Line: 2, Column: 3})
	be.Equal(t, program.Body.Loc, SourceLocation{Line: 3, Column: 3})

	// Metadata overrides where a form is reported. A line without a
	// column leaves the column unknown.
	write := program.Body.Children[0]
	be.Equal(t, write.Loc, SourceLocation{Line: 40, Column: 2})
	be.Equal(t, write.Children[0].Loc, SourceLocation{Line: 4, Column: 32})
	be.Equal(t, program.Body.Children[1].Loc.String(), "50")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{"not a program", `(block)`, "1:1: expected (program decl... instruction)"},
		{"no instruction", `(program)`, "1:1: expected (program decl... instruction)"},
		{"instruction among declarations", `(program (write 1) (block))`, "1:10: expected a declaration, got (write 1)"},
		{"unknown type", `(program (var "x" integer) (block))`, "1:19: unknown type integer"},
		{"bad array dimension", `(program (var "x" (array "n" int)) (block))`, "1:26: array dimension must be an integer"},
		{"bad field", `(program (var "x" (record "f")) (block))`, `1:27: expected (NAME TYPE), got "f"`},
		{"params not an array", `(program (proc "p" () (block)) (block))`, "1:20: expected [param...], got ()"},
		{"bad param mode", `(program (proc "p" [(out "n" int)] (block)) (block))`, `1:21: expected (val NAME TYPE) or (ref NAME TYPE), got (out "n" int)`},
		{"proc body not a block", `(program (proc "p" [] (write 1)) (block))`, "1:23: procedure body must be a block"},
		{"unknown instruction", `(program (print 1))`, "1:10: expected an instruction, got (print 1)"},
		{"assign arity", `(program (assign (var "x")))`, "1:10: assign takes 2 operands, got 1"},
		{"assign to a constant", `(program (assign 1 2))`, "1:18: expected a variable, index, field or deref, got 1"},
		{"if arity", `(program (if true))`, "1:10: if takes 2 operands, got 1"},
		{"switch without default", `(program (switch 1 (case 1 (write 1))))`, "1:10: switch needs a scrutinee and a final (default instr)"},
		{"misplaced default", `(program (switch 1 (default (write 1)) (default (write 2))))`, "1:20: expected (case const instr), got (default (write 1))"},
		{"call without name", `(program (call))`, "1:10: call needs a procedure name"},
		{"unknown symbol", `(program (write maybe))`, "1:17: unexpected symbol maybe"},
		{"long char", `(program (write (char "ab")))`, "1:17: char takes a one-character string"},
		{"unknown operator", `(program (write (pow 2 3)))`, "1:17: expected an expression, got (pow 2 3)"},
		{"binary arity", `(program (write (add 1)))`, "1:17: add takes 2 operands, got 1"},
		{"deref of a constant", `(program (write (deref 5)))`, "1:24: expected a variable, index, field or deref, got 5"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadProgram(test.src)
			be.True(t, err != nil)
			be.Equal(t, err.Error(), test.expected)
		})
	}
}

func TestLoadIncomplete(t *testing.T) {
	_, err := LoadProgram(`(program (block (write 1)`)
	be.Err(t, err, sexy.ErrIncomplete)
}

func TestToSExprReadsBack(t *testing.T) {
	src := `(program
  (type "Node" (record ("val" int) ("next" (pointer (named "Node")))))
  (var "head" (pointer (named "Node")))
  (var "s" string)
  (proc "p" [(val "a" real) (ref "b" (array 3 char))]
    (block
      (var "i" int)
      (assign (var "i") (to-int (var "a")))
      (write (index (var "b") (var "i")))))
  (block
    (new (var "head"))
    (assign (field (deref (var "head")) "val") -4)
    (assign (var "s") "say \"hi\"")
    (read (var "s"))
    (if (ne (var "head") null) (free (var "head")))
    (while (not true) (block))
    (switch (elem (var "s") 0)
      (case (char "a") (write 1.5))
      (default (write false)))
    (call "p" 2 (var "s"))))`

	program := mustLoad(t, src)
	text := ToSExpr(program)
	be.True(t, !strings.Contains(text, "\n"))

	reloaded := mustLoad(t, text)
	be.Equal(t, ToSExpr(reloaded), text)

	// Whitespace aside, the text is what was loaded.
	be.Equal(t, text, strings.Join(strings.Fields(src), " "))
}
