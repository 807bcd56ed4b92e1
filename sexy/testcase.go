package sexy

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// InputType is the language of the fence holding a test's program.
type InputType string

const (
	InputTypeTyroProgram InputType = "tyro-program"
)

// AssertionType is the language of a fence that checks a test's program.
type AssertionType string

const (
	AssertionTypeAST          AssertionType = "ast"
	AssertionTypeExecute      AssertionType = "execute"
	AssertionTypeCompileError AssertionType = "compile-error"
	AssertionTypeRuntimeError AssertionType = "runtime-error"
	AssertionTypeBytecode     AssertionType = "bytecode"
	// An input fence supplies stdin rather than checking anything. It is
	// stored in TestCase.InputData, never in Assertions.
	AssertionTypeInput AssertionType = "input"
)

// Assertion is one checking fence of a test.
type Assertion struct {
	Type       AssertionType
	Content    string // Fence content without the trailing newline.
	ParsedSexy *Node  // Set for ast assertions only.
}

// TestCase is one "Test: name" section of a Markdown document.
type TestCase struct {
	Name       string
	Input      string // The program, without the trailing newline.
	InputType  InputType
	InputData  string // What read sees on stdin, newline-terminated.
	Assertions []Assertion

	line     int // Line of the heading, for validation errors.
	hasStdin bool
}

// Has reports whether tc carries an assertion of type typ.
func (tc *TestCase) Has(typ AssertionType) bool {
	for _, a := range tc.Assertions {
		if a.Type == typ {
			return true
		}
	}
	return false
}

// ExtractTestCases collects the test cases of a Markdown document.
//
// A level 1-6 heading "Test: name" starts a test. Inside it, a tyro-program
// fence holds the program and the other known fences assert on it. Fences
// with no language are commentary. Any other fence is an error.
func ExtractTestCases(markdownContent string) ([]TestCase, error) {
	x := &extractor{source: []byte(markdownContent)}
	doc := goldmark.New().Parser().Parse(text.NewReader(x.source))

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		var err error
		switch n := node.(type) {
		case *ast.Heading:
			err = x.heading(n)
		case *ast.FencedCodeBlock:
			err = x.fence(n)
		}
		if err != nil {
			return ast.WalkStop, err
		}
		return ast.WalkContinue, nil
	})
	if err == nil {
		err = x.flush()
	}
	if err != nil {
		return nil, err
	}
	return x.cases, nil
}

// extractor accumulates test cases during a walk of the Markdown tree.
type extractor struct {
	source  []byte
	cases   []TestCase
	current *TestCase
}

func (x *extractor) heading(n *ast.Heading) error {
	name, ok := strings.CutPrefix(plainText(n, x.source), "Test: ")
	if !ok {
		return nil
	}
	if err := x.flush(); err != nil {
		return err
	}
	x.current = &TestCase{Name: name, Assertions: []Assertion{}, line: lineOf(n, x.source)}
	return nil
}

func (x *extractor) fence(n *ast.FencedCodeBlock) error {
	language := string(n.Language(x.source))
	if language == "" {
		return nil
	}
	line := lineOf(n, x.source)
	known := language == string(InputTypeTyroProgram) || isAssertionType(language)

	tc := x.current
	switch {
	case tc == nil && known:
		return fmt.Errorf("line %d: %s fence found outside of test case", line, language)
	case tc == nil:
		return fmt.Errorf("line %d: unknown fence language '%s' found outside of test case", line, language)
	case !known:
		return fmt.Errorf("line %d: unknown fence language '%s' in test '%s'", line, language, tc.Name)
	}

	content := fenceContent(n, x.source)
	switch typ := AssertionType(language); {
	case language == string(InputTypeTyroProgram):
		if tc.Input != "" {
			return fmt.Errorf("line %d: multiple input fences found in test '%s'", line, tc.Name)
		}
		tc.Input = strings.TrimRight(content, "\n")
		tc.InputType = InputType(language)

	case typ == AssertionTypeInput:
		if tc.hasStdin {
			return fmt.Errorf("line %d: multiple input fences found in test '%s'", line, tc.Name)
		}
		tc.InputData = content
		tc.hasStdin = true

	default:
		if tc.Has(typ) {
			return fmt.Errorf("line %d: multiple %s fences found in test '%s'", line, typ, tc.Name)
		}
		a := Assertion{Type: typ, Content: strings.TrimRight(content, "\n")}
		if typ == AssertionTypeAST {
			parsed, err := Parse(a.Content)
			if err != nil {
				return fmt.Errorf("line %d: failed to parse Sexy assertion in test '%s': %w", line, tc.Name, err)
			}
			a.ParsedSexy = parsed
		}
		tc.Assertions = append(tc.Assertions, a)
	}
	return nil
}

// flush validates the test in progress and adds it to the result.
func (x *extractor) flush() error {
	if x.current == nil {
		return nil
	}
	if err := validateTestCase(x.current); err != nil {
		return fmt.Errorf("line %d: %w", x.current.line, err)
	}
	x.cases = append(x.cases, *x.current)
	x.current = nil
	return nil
}

// validateTestCase checks that the fences of tc can all hold at once. A
// program that fails to compile produces no bytecode, output or runtime
// error, and stdin only matters to a program that runs.
func validateTestCase(tc *TestCase) error {
	if tc.Input == "" {
		return fmt.Errorf("test '%s' has no input fence", tc.Name)
	}
	if len(tc.Assertions) == 0 {
		return fmt.Errorf("test '%s' has no assertion fences", tc.Name)
	}
	if tc.Has(AssertionTypeCompileError) {
		for _, typ := range []AssertionType{AssertionTypeExecute, AssertionTypeRuntimeError, AssertionTypeBytecode} {
			if tc.Has(typ) {
				return fmt.Errorf("test '%s' expects a compile error but also has a %s fence", tc.Name, typ)
			}
		}
	}
	if tc.hasStdin && !tc.Has(AssertionTypeExecute) && !tc.Has(AssertionTypeRuntimeError) {
		return fmt.Errorf("test '%s' has an input fence but never checks what the program does", tc.Name)
	}
	return nil
}

func isAssertionType(language string) bool {
	switch AssertionType(language) {
	case AssertionTypeAST, AssertionTypeExecute, AssertionTypeCompileError,
		AssertionTypeRuntimeError, AssertionTypeBytecode, AssertionTypeInput:
		return true
	}
	return false
}

// plainText concatenates the text segments under node.
func plainText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); entering && ok {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func fenceContent(n *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

// lineOf returns the 1-based line where node's first content line starts.
func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	return 1 + bytes.Count(source[:min(start, len(source))], []byte("\n"))
}
