package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func mustLoad(t *testing.T, src string) *ASTNode {
	t.Helper()
	program, err := LoadProgram(src)
	be.Err(t, err, nil)
	return program
}

// runSource compiles and runs src with the default options, feeding it input.
func runSource(t *testing.T, src, input string) (string, *Result, error) {
	t.Helper()
	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Output = &out
	opts.Input = strings.NewReader(input)
	result, err := CompileAndRun(mustLoad(t, src), opts)
	return out.String(), result, err
}

func TestExecutePrograms(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		input    string
		expected string
	}{
		{
			name: "switch runs only the matching case",
			src: `(program (var "i" int) (block
			        (assign (var "i") 2)
			        (switch (var "i")
			          (case 1 (write "A"))
			          (case 2 (write "B"))
			          (default (write "D")))))`,
			expected: "B\n",
		},
		{
			name: "switch default runs once",
			src: `(program (var "i" int) (block
			        (assign (var "i") 5)
			        (switch (var "i")
			          (case 1 (write "A"))
			          (case 2 (write "B"))
			          (default (write "D")))))`,
			expected: "D\n",
		},
		{
			name: "switch on char",
			src: `(program (var "c" char) (block
			        (assign (var "c") (elem "xyz" 1))
			        (switch (var "c")
			          (case (char "x") (write 1))
			          (case (char "y") (write 2))
			          (default (write 3)))))`,
			expected: "2\n",
		},
		{
			name: "while loop",
			src: `(program (var "i" int) (var "sum" int) (block
			        (assign (var "i") 1)
			        (assign (var "sum") 0)
			        (while (le (var "i") 10)
			          (block
			            (assign (var "sum") (add (var "sum") (var "i")))
			            (assign (var "i") (add (var "i") 1))))
			        (write (var "sum"))))`,
			expected: "55\n",
		},
		{
			name: "if and else",
			src: `(program (var "x" int) (block
			        (assign (var "x") 3)
			        (if (gt (var "x") 2) (write "big") (write "small"))
			        (if (lt (var "x") 2) (write "never"))
			        (if (lt (var "x") 2) (write "small") (write "not small"))))`,
			expected: "big\nnot small\n",
		},
		{
			name: "mixed arithmetic widens",
			src: `(program (var "x" int) (var "y" real) (block
			        (assign (var "x") 1)
			        (assign (var "y") (add (var "x") 2.5))
			        (write (var "y"))
			        (write (div 7 2))
			        (write (div 7 2.0))
			        (write (mod 7 2))))`,
			expected: "3.5\n3\n3.5\n1\n",
		},
		{
			name:     "real to int assignment truncates",
			src:      `(program (var "i" int) (block (assign (var "i") 2.75) (write (var "i"))))`,
			expected: "2\n",
		},
		{
			name:     "int to real assignment",
			src:      `(program (var "r" real) (block (assign (var "r") 4) (write (var "r"))))`,
			expected: "4.0\n",
		},
		{
			name: "strings",
			src: `(program (var "s" string) (block
			        (assign (var "s") (add "ab" (to-string 12)))
			        (write (var "s"))
			        (write (elem (var "s") 2))
			        (write (lt "abc" "abd"))))`,
			expected: "ab12\n1\ntrue\n",
		},
		{
			name: "conversions",
			src: `(program (block
			        (write (to-int 3.9))
			        (write (to-int (char "A")))
			        (write (to-char 98))
			        (write (to-bool 0))
			        (write (to-real 2))
			        (write (neg 5))
			        (write (not (and true false)))))`,
			expected: "3\n65\nb\nfalse\n2.0\n-5\ntrue\n",
		},
		{
			name:     "read",
			src:      `(program (var "n" int) (var "name" string) (block (read (var "n")) (read (var "name")) (write (mul (var "n") 2)) (write (var "name"))))`,
			input:    "21\nAda Lovelace\n",
			expected: "42\nAda Lovelace\n",
		},
		{
			name: "arrays and records",
			src: `(program
			        (type "Point" (record ("x" int) ("y" int)))
			        (var "pts" (array 3 (named "Point")))
			        (var "i" int)
			        (block
			          (assign (var "i") 0)
			          (while (lt (var "i") 3)
			            (block
			              (assign (field (index (var "pts") (var "i")) "x") (var "i"))
			              (assign (field (index (var "pts") (var "i")) "y") (mul (var "i") 10))
			              (assign (var "i") (add (var "i") 1))))
			          (write (field (index (var "pts") 2) "y"))
			          (write (field (index (var "pts") 1) "x"))))`,
			expected: "20\n1\n",
		},
		{
			name: "composite assignment copies",
			src: `(program
			        (var "a" (record ("n" int) ("s" string)))
			        (var "b" (record ("n" int) ("s" string)))
			        (block
			          (assign (field (var "a") "n") 1)
			          (assign (field (var "a") "s") "one")
			          (assign (var "b") (var "a"))
			          (assign (field (var "a") "n") 2)
			          (write (field (var "b") "n"))
			          (write (field (var "b") "s"))))`,
			expected: "1\none\n",
		},
		{
			name: "block variables",
			src: `(program (var "x" int) (block
			        (assign (var "x") 1)
			        (block (var "x" string) (assign (var "x") "inner") (write (var "x")))
			        (write (var "x"))))`,
			expected: "inner\n1\n",
		},
		{
			name: "procedure with value parameter",
			src: `(program
			        (proc "show" [(val "n" int) (val "r" real)] (block (write (var "n")) (write (var "r"))))
			        (call "show" 7 1))`,
			expected: "7\n1.0\n",
		},
		{
			name: "recursion with a reference parameter",
			src: `(program
			        (var "r" int)
			        (proc "fact" [(val "n" int) (ref "acc" int)]
			          (block
			            (if (gt (var "n") 1)
			              (block
			                (assign (var "acc") (mul (var "acc") (var "n")))
			                (call "fact" (sub (var "n") 1) (var "acc"))))))
			        (block (assign (var "r") 1) (call "fact" 5 (var "r")) (write (var "r"))))`,
			expected: "120\n",
		},
		{
			name: "nested procedure reads enclosing frames",
			src: `(program
			        (proc "outer" [(val "x" int)]
			          (block
			            (var "y" int)
			            (proc "inner" [(val "z" int)]
			              (block (write (add (add (var "x") (var "y")) (var "z")))))
			            (assign (var "y") 10)
			            (call "inner" 5)))
			        (call "outer" 100))`,
			expected: "115\n",
		},
		{
			name: "display follows recursion",
			src: `(program
			        (proc "count" [(val "n" int)]
			          (block
			            (proc "show" [] (block (write (var "n"))))
			            (if (gt (var "n") 0)
			              (block (call "show") (call "count" (sub (var "n") 1)) (call "show")))))
			        (call "count" 2))`,
			expected: "2\n1\n1\n2\n",
		},
		{
			name: "array parameters by value and by reference",
			src: `(program
			        (var "a" (array 2 int))
			        (proc "change" [(val "v" (array 2 int)) (ref "w" (array 2 int))]
			          (block
			            (assign (index (var "v") 0) 99)
			            (assign (index (var "w") 1) 77)
			            (write (index (var "v") 0))))
			        (block
			          (assign (index (var "a") 0) 1)
			          (assign (index (var "a") 1) 2)
			          (call "change" (var "a") (var "a"))
			          (write (index (var "a") 0))
			          (write (index (var "a") 1))))`,
			expected: "99\n1\n77\n",
		},
		{
			name: "reference to a record field",
			src: `(program
			        (var "p" (record ("x" int) ("y" int)))
			        (proc "inc" [(ref "n" int)] (block (assign (var "n") (add (var "n") 1))))
			        (block
			          (assign (field (var "p") "y") 41)
			          (call "inc" (field (var "p") "y"))
			          (write (field (var "p") "y"))))`,
			expected: "42\n",
		},
		{
			name: "linked list on the heap",
			src: `(program
			        (type "List" (record ("val" int) ("next" (pointer (named "List")))))
			        (var "head" (pointer (named "List")))
			        (var "cur" (pointer (named "List")))
			        (var "i" int)
			        (block
			          (assign (var "head") null)
			          (assign (var "i") 1)
			          (while (le (var "i") 3)
			            (block
			              (new (var "cur"))
			              (assign (field (deref (var "cur")) "val") (var "i"))
			              (assign (field (deref (var "cur")) "next") (var "head"))
			              (assign (var "head") (var "cur"))
			              (assign (var "i") (add (var "i") 1))))
			          (assign (var "cur") (var "head"))
			          (while (ne (var "cur") null)
			            (block
			              (write (field (deref (var "cur")) "val"))
			              (assign (var "cur") (field (deref (var "cur")) "next"))))))`,
			expected: "3\n2\n1\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, result, err := runSource(t, test.src, test.input)
			be.Err(t, err, nil)
			be.Equal(t, result.Diagnostics.Kinds(), nil)
			be.Equal(t, out, test.expected)
		})
	}
}

func TestPointerCycleLeavesOnlyTheUnfreedNode(t *testing.T) {
	_, result, err := runSource(t, `
(program
  (type "List" (record ("val" int) ("next" (pointer (named "List")))))
  (var "a" (pointer (named "List")))
  (var "b" (pointer (named "List")))
  (block
    (new (var "a"))
    (new (var "b"))
    (assign (field (deref (var "a")) "next") (var "b"))
    (assign (field (deref (var "b")) "next") (var "a"))
    (free (var "b"))))`, "")
	be.Err(t, err, nil)

	heap := result.VM.Heap()
	be.Equal(t, heap.FreeSpace(), DefaultOptions().HeapSize-2)
	be.Equal(t, len(heap.Holes()), 1)
}

func TestNewOnSelfReferentialField(t *testing.T) {
	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Output = &out
	program := mustLoad(t, `
(program
  (type "List" (record ("val" int) ("rest" (pointer (named "List")))))
  (var "l" (named "List"))
  (block
    (new (field (var "l") "rest"))
    (assign (field (deref (field (var "l") "rest")) "val") 5)
    (write (field (deref (field (var "l") "rest")) "val"))))`)
	result, err := CompileAndRun(program, opts)
	be.Err(t, err, nil)
	be.Equal(t, out.String(), "5\n")

	size := SizeOf(program.Decls[0].DeclType)
	be.Equal(t, size, 2)
	heap := result.VM.Heap()
	be.Equal(t, len(heap.Holes()), 1)
	be.Equal(t, heap.FreeSpace(), opts.HeapSize-size)
}

func TestUninitializedStaticReadWarns(t *testing.T) {
	out, result, err := runSource(t, `(program (var "x" int) (var "y" int) (block
	  (assign (var "y") (add (var "x") 1))
	  (write (var "y"))))`, "")
	be.Err(t, err, nil)
	be.Equal(t, out, "?\n")
	// Reading x warns, and so does reading y, which was computed from it.
	be.Equal(t, result.Diagnostics.Kinds(), []ErrorKind{UninitializedRead, UninitializedRead})
	be.True(t, !result.Diagnostics.HasErrors())
	be.Equal(t, result.Diagnostics.Items[0].Loc.Line, 2)
	be.Equal(t, result.Diagnostics.Items[1].Loc.Line, 3)
}

func TestRuntimeFailures(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected error
		line     int
	}{
		{
			name: "null dereference",
			src: `(program (var "p" (pointer int)) (block
			        (assign (var "p") null)
			        (write (deref (var "p")))))`,
			expected: ErrInvalidAddress,
			line:     3,
		},
		{
			name: "use after free",
			src: `(program (var "p" (pointer int)) (block
			        (new (var "p"))
			        (free (var "p"))
			        (assign (deref (var "p")) 1)))`,
			expected: ErrInvalidAddress,
			line:     4,
		},
		{
			name: "double free",
			src: `(program (var "p" (pointer int)) (block
			        (new (var "p"))
			        (free (var "p"))
			        (free (var "p"))))`,
			expected: ErrInvalidFree,
			line:     4,
		},
		{
			name: "uninitialized local",
			src: `(program
			        (proc "p" [] (block (var "l" int) (write (var "l"))))
			        (call "p"))`,
			expected: ErrUninitialized,
			line:     2,
		},
		{
			name: "index out of range",
			src: `(program (var "a" (array 3 int)) (var "i" int) (block
			        (assign (var "i") 3)
			        (assign (index (var "a") (var "i")) 1)))`,
			expected: ErrIndexOutOfRange,
			line:     3,
		},
		{
			name: "division by zero",
			src: `(program (var "z" int) (block
			        (assign (var "z") 0)
			        (write (div 1 (var "z")))))`,
			expected: ErrDivisionByZero,
			line:     3,
		},
		{
			name: "unbounded recursion",
			src: `(program
			        (proc "forever" [(val "n" int)] (block (call "forever" (add (var "n") 1))))
			        (call "forever" 0))`,
			expected: ErrStackOverflow,
			line:     2,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, result, err := runSource(t, test.src, "")
			be.Err(t, err, test.expected)
			be.True(t, result.VM != nil)

			var rerr *RuntimeError
			be.True(t, errors.As(err, &rerr))
			be.Equal(t, rerr.Loc.Line, test.line)
		})
	}
}

func TestCompilationFailureSkipsExecution(t *testing.T) {
	out, result, err := runSource(t, `(program (var "x" int) (block (write "before") (assign (var "x") "s")))`, "")
	be.Err(t, err, ErrCompilationFailed)
	be.Equal(t, out, "")
	be.True(t, result.Bytecode == nil)
	be.True(t, result.VM == nil)
	be.Equal(t, result.Diagnostics.Kinds(), []ErrorKind{AssignmentMismatch})
	be.True(t, strings.Contains(err.Error(), "type checking"))
}

func TestMaxSteps(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxSteps = 1000
	_, err := CompileAndRun(mustLoad(t, `(program (while true (block)))`), opts)
	be.Err(t, err, ErrStepLimit)
}
