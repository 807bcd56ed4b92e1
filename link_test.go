package main

import (
	"testing"

	"github.com/nalgeon/be"
)

func linkSource(t *testing.T, src string) (*ASTNode, *Diagnostics) {
	t.Helper()
	program := mustLoad(t, src)
	diags := &Diagnostics{}
	failed := LinkProgram(program, diags)
	be.Equal(t, failed, diags.HasErrors())
	return program, diags
}

func TestLinkErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected []ErrorKind
	}{
		{
			name: "declared variable",
			src:  `(program (var "x" int) (write (var "x")))`,
		},
		{
			name:     "undeclared variable",
			src:      `(program (write (var "x")))`,
			expected: []ErrorKind{UndeclaredIdentifier},
		},
		{
			name:     "undeclared type",
			src:      `(program (var "x" (named "T")) (block))`,
			expected: []ErrorKind{UndeclaredType},
		},
		{
			name:     "undeclared procedure",
			src:      `(program (call "p"))`,
			expected: []ErrorKind{UndeclaredProcedure},
		},
		{
			name:     "duplicate variable",
			src:      `(program (var "x" int) (var "x" real) (block))`,
			expected: []ErrorKind{DuplicateIdentifier},
		},
		{
			name:     "type and variable with the same name",
			src:      `(program (type "x" int) (var "x" int) (block))`,
			expected: []ErrorKind{DuplicateIdentifier},
		},
		{
			name:     "duplicate parameter",
			src:      `(program (proc "p" [(val "a" int) (val "a" int)] (block)) (block))`,
			expected: []ErrorKind{DuplicateIdentifier},
		},
		{
			name:     "parameter and local with the same name",
			src:      `(program (proc "p" [(val "a" int)] (block (var "a" int))) (block))`,
			expected: []ErrorKind{DuplicateIdentifier},
		},
		{
			name:     "duplicate field",
			src:      `(program (var "r" (record ("a" int) ("a" char))) (block))`,
			expected: []ErrorKind{DuplicateField},
		},
		{
			name: "shadowing in a block",
			src:  `(program (var "x" int) (block (var "x" char) (write (var "x"))))`,
		},
		{
			name:     "block variable is not visible after the block",
			src:      `(program (block (block (var "y" int) (write (var "y"))) (write (var "y"))))`,
			expected: []ErrorKind{UndeclaredIdentifier},
		},
		{
			name: "type declared after its use",
			src:  `(program (var "x" (named "T")) (type "T" int) (write (var "x")))`,
		},
		{
			name: "record pointing to itself",
			src: `(program
			        (type "List" (record ("val" int) ("next" (pointer (named "List")))))
			        (var "l" (named "List"))
			        (write (field (var "l") "val")))`,
		},
		{
			name:     "alias cycle",
			src:      `(program (type "A" (named "B")) (type "B" (named "A")) (block))`,
			expected: []ErrorKind{CyclicType, CyclicType},
		},
		{
			name:     "alias to itself",
			src:      `(program (type "A" (named "A")) (block))`,
			expected: []ErrorKind{CyclicType},
		},
		{
			name: "recursive procedure",
			src:  `(program (proc "p" [(val "n" int)] (block (call "p" (var "n")))) (call "p" 1))`,
		},
		{
			name: "procedure sees enclosing variables",
			src: `(program (var "g" int)
			        (proc "outer" [] (block
			          (var "o" int)
			          (proc "inner" [] (block (write (var "g")) (write (var "o"))))
			          (call "inner")))
			        (call "outer"))`,
		},
		{
			name: "nested procedure is not visible outside",
			src: `(program
			        (proc "outer" [] (block (proc "inner" [] (block)) (call "inner")))
			        (call "inner"))`,
			expected: []ErrorKind{UndeclaredProcedure},
		},
		{
			name: "every error is reported",
			src:  `(program (block (write (var "a")) (write (var "b")) (call "c")))`,
			expected: []ErrorKind{
				UndeclaredIdentifier, UndeclaredIdentifier, UndeclaredProcedure,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, diags := linkSource(t, test.src)
			be.Equal(t, diags.Kinds(), test.expected)
		})
	}
}

func TestLinkBindsIdentifiersToDeclarations(t *testing.T) {
	program, diags := linkSource(t, `
(program
  (var "x" int)
  (proc "p" [(ref "x" real)] (block (write (var "x"))))
  (block (write (var "x")) (call "p" (var "x"))))`)
	be.True(t, !diags.HasErrors())

	global := program.Decls[0]
	proc := program.Decls[1]
	param := proc.Params[0]

	inProc := proc.Body.Children[0].Children[0]
	be.True(t, inProc.Decl == param)

	inMain := program.Body.Children[0].Children[0]
	be.True(t, inMain.Decl == global)

	call := program.Body.Children[1]
	be.True(t, call.Decl == proc)
	be.True(t, call.Children[0].Decl == global)
}

func TestLinkResolvesNamedTypes(t *testing.T) {
	program, diags := linkSource(t, `
(program
  (type "Point" (record ("x" int) ("y" int)))
  (var "p" (pointer (named "Point")))
  (block))`)
	be.True(t, !diags.HasErrors())

	named := program.Decls[1].DeclType.Child
	be.Equal(t, named.Kind, TypeNamed)
	be.True(t, named.Decl == program.Decls[0])
	be.Equal(t, Resolve(named).Kind, TypeRecord)
}

func TestFailedLinkStopsCompilation(t *testing.T) {
	program := mustLoad(t, `(program (var "x" int) (assign (var "x") (var "y")))`)
	diags := &Diagnostics{}
	_, err := Compile(program, diags)
	be.Err(t, err, ErrCompilationFailed)
	be.Equal(t, diags.Kinds(), []ErrorKind{UndeclaredIdentifier})

	// The type checker never ran.
	assign := program.Body
	be.True(t, assign.TypeAST == nil)
	be.True(t, assign.Children[1].Decl == nil)
}
