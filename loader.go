package main

import (
	"fmt"
	"strconv"

	"github.com/strager/tyro/sexy"
)

// LoadProgram builds a program AST from its s-expression form:
//
//	(program
//	  (var "x" int)
//	  (block (assign (var "x") (add 1 2)) (write (var "x"))))
//
// Every node records where it starts in src. A list may override that with
// ^{line: N, col: M} metadata.
func LoadProgram(src string) (*ASTNode, error) {
	datum, err := sexy.Parse(src)
	if err != nil {
		return nil, err
	}
	if !isForm(datum, "program") || len(datum.Items) < 2 {
		return nil, loadError(datum, "expected (program decl... instruction)")
	}
	program := &ASTNode{Kind: NodeProgram, Loc: locationOf(datum)}
	items := datum.Items[1:]
	for _, item := range items[:len(items)-1] {
		decl, err := loadDecl(item)
		if err != nil {
			return nil, err
		}
		program.Decls = append(program.Decls, decl)
	}
	program.Body, err = loadInstruction(items[len(items)-1])
	if err != nil {
		return nil, err
	}
	return program, nil
}

func loadError(d *sexy.Node, format string, args ...any) error {
	return fmt.Errorf("%s: %s", locationOf(d), fmt.Sprintf(format, args...))
}

func locationOf(d *sexy.Node) SourceLocation {
	loc := SourceLocation{Line: d.Line, Column: d.Column}
	if line := d.Meta("line"); line != nil && line.Type == sexy.NodeInteger {
		loc.Line, _ = strconv.Atoi(line.Text)
		loc.Column = 0
	}
	if col := d.Meta("col"); col != nil && col.Type == sexy.NodeInteger {
		loc.Column, _ = strconv.Atoi(col.Text)
	}
	return loc
}

// isForm reports whether d is a list whose head is the symbol head.
func isForm(d *sexy.Node, head string) bool {
	return d.Type == sexy.NodeList && len(d.Items) > 0 && d.Items[0].IsSymbol(head)
}

func formHead(d *sexy.Node) string {
	if d.Type != sexy.NodeList || len(d.Items) == 0 || d.Items[0].Type != sexy.NodeSymbol {
		return ""
	}
	return d.Items[0].Text
}

func expectArity(d *sexy.Node, n int) error {
	if len(d.Items) != n+1 {
		return loadError(d, "%s takes %d operands, got %d", formHead(d), n, len(d.Items)-1)
	}
	return nil
}

func loadName(d *sexy.Node) (string, error) {
	if d.Type == sexy.NodeString || d.Type == sexy.NodeSymbol {
		return d.Text, nil
	}
	return "", loadError(d, "expected a name, got %s", d)
}

// isDecl reports whether d is a declaration rather than an instruction.
// (var NAME) is an expression; (var NAME TYPE) declares.
func isDecl(d *sexy.Node) bool {
	switch formHead(d) {
	case "type", "proc":
		return true
	case "var":
		return len(d.Items) == 3
	default:
		return false
	}
}

func loadDecl(d *sexy.Node) (*ASTNode, error) {
	if !isDecl(d) {
		return nil, loadError(d, "expected a declaration, got %s", d)
	}
	node := &ASTNode{Loc: locationOf(d)}
	var err error
	if node.String, err = loadName(d.Items[1]); err != nil {
		return nil, err
	}

	switch formHead(d) {
	case "var", "type":
		node.Kind = NodeVarDecl
		if formHead(d) == "type" {
			node.Kind = NodeTypeDecl
		}
		if err := expectArity(d, 2); err != nil {
			return nil, err
		}
		node.DeclType, err = loadType(d.Items[2])
		return node, err
	}

	node.Kind = NodeProcDecl
	if err := expectArity(d, 3); err != nil {
		return nil, err
	}
	params := d.Items[2]
	if params.Type != sexy.NodeArray {
		return nil, loadError(params, "expected [param...], got %s", params)
	}
	for _, p := range params.Items {
		param, err := loadParam(p)
		if err != nil {
			return nil, err
		}
		node.Params = append(node.Params, param)
	}
	if !isForm(d.Items[3], "block") {
		return nil, loadError(d.Items[3], "procedure body must be a block")
	}
	node.Body, err = loadInstruction(d.Items[3])
	return node, err
}

func loadParam(d *sexy.Node) (*ASTNode, error) {
	head := formHead(d)
	if head != "val" && head != "ref" {
		return nil, loadError(d, "expected (val NAME TYPE) or (ref NAME TYPE), got %s", d)
	}
	if err := expectArity(d, 2); err != nil {
		return nil, err
	}
	name, err := loadName(d.Items[1])
	if err != nil {
		return nil, err
	}
	t, err := loadType(d.Items[2])
	if err != nil {
		return nil, err
	}
	return &ASTNode{Kind: NodeParam, Loc: locationOf(d), String: name, DeclType: t, ByRef: head == "ref"}, nil
}

var atomicTypes = map[string]*TypeNode{
	"int":    IntType,
	"bool":   BoolType,
	"real":   RealType,
	"char":   CharType,
	"string": StringType,
}

func loadType(d *sexy.Node) (*TypeNode, error) {
	if d.Type == sexy.NodeSymbol {
		if t, ok := atomicTypes[d.Text]; ok {
			return t, nil
		}
		return nil, loadError(d, "unknown type %s", d.Text)
	}

	switch formHead(d) {
	case "array":
		if err := expectArity(d, 2); err != nil {
			return nil, err
		}
		if d.Items[1].Type != sexy.NodeInteger {
			return nil, loadError(d.Items[1], "array dimension must be an integer")
		}
		dim, err := strconv.Atoi(d.Items[1].Text)
		if err != nil {
			return nil, loadError(d.Items[1], "%v", err)
		}
		base, err := loadType(d.Items[2])
		if err != nil {
			return nil, err
		}
		return NewArrayType(dim, base), nil

	case "record":
		var fields []Field
		for _, f := range d.Items[1:] {
			if f.Type != sexy.NodeList || len(f.Items) != 2 {
				return nil, loadError(f, "expected (NAME TYPE), got %s", f)
			}
			name, err := loadName(f.Items[0])
			if err != nil {
				return nil, err
			}
			t, err := loadType(f.Items[1])
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: name, Type: t})
		}
		return NewRecordType(fields...), nil

	case "pointer":
		if err := expectArity(d, 1); err != nil {
			return nil, err
		}
		base, err := loadType(d.Items[1])
		if err != nil {
			return nil, err
		}
		return NewPointerType(base), nil

	case "named":
		if err := expectArity(d, 1); err != nil {
			return nil, err
		}
		name, err := loadName(d.Items[1])
		if err != nil {
			return nil, err
		}
		return NewNamedType(name), nil
	}
	return nil, loadError(d, "expected a type, got %s", d)
}

var instructionKinds = map[string]NodeKind{
	"assign": NodeAssign,
	"block":  NodeBlock,
	"write":  NodeWrite,
	"read":   NodeRead,
	"new":    NodeNew,
	"free":   NodeFree,
	"while":  NodeWhile,
	"if":     NodeIf,
	"switch": NodeSwitch,
	"call":   NodeCall,
}

func loadInstruction(d *sexy.Node) (*ASTNode, error) {
	kind, ok := instructionKinds[formHead(d)]
	if !ok {
		return nil, loadError(d, "expected an instruction, got %s", d)
	}
	node := &ASTNode{Kind: kind, Loc: locationOf(d)}
	args := d.Items[1:]

	switch kind {
	case NodeAssign:
		if err := expectArity(d, 2); err != nil {
			return nil, err
		}
		mem, err := loadMem(args[0])
		if err != nil {
			return nil, err
		}
		exp, err := loadExpression(args[1])
		if err != nil {
			return nil, err
		}
		node.Children = []*ASTNode{mem, exp}

	case NodeBlock:
		i := 0
		for ; i < len(args) && isDecl(args[i]); i++ {
			decl, err := loadDecl(args[i])
			if err != nil {
				return nil, err
			}
			node.Decls = append(node.Decls, decl)
		}
		for _, item := range args[i:] {
			instr, err := loadInstruction(item)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, instr)
		}

	case NodeWrite:
		if err := expectArity(d, 1); err != nil {
			return nil, err
		}
		exp, err := loadExpression(args[0])
		if err != nil {
			return nil, err
		}
		node.Children = []*ASTNode{exp}

	case NodeRead, NodeNew, NodeFree:
		if err := expectArity(d, 1); err != nil {
			return nil, err
		}
		mem, err := loadMem(args[0])
		if err != nil {
			return nil, err
		}
		node.Children = []*ASTNode{mem}

	case NodeWhile, NodeIf:
		if len(args) == 3 && kind == NodeIf {
			node.Kind = NodeIfElse
		} else if err := expectArity(d, 2); err != nil {
			return nil, err
		}
		cond, err := loadExpression(args[0])
		if err != nil {
			return nil, err
		}
		node.Children = []*ASTNode{cond}
		for _, item := range args[1:] {
			instr, err := loadInstruction(item)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, instr)
		}

	case NodeSwitch:
		return loadSwitch(d, node)

	case NodeCall:
		if len(args) == 0 {
			return nil, loadError(d, "call needs a procedure name")
		}
		var err error
		if node.String, err = loadName(args[0]); err != nil {
			return nil, err
		}
		for _, item := range args[1:] {
			arg, err := loadExpression(item)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, arg)
		}
	}
	return node, nil
}

func loadSwitch(d *sexy.Node, node *ASTNode) (*ASTNode, error) {
	args := d.Items[1:]
	if len(args) < 2 || !isForm(args[len(args)-1], "default") {
		return nil, loadError(d, "switch needs a scrutinee and a final (default instr)")
	}
	scrutinee, err := loadExpression(args[0])
	if err != nil {
		return nil, err
	}
	node.Children = []*ASTNode{scrutinee}

	for _, item := range args[1 : len(args)-1] {
		if !isForm(item, "case") {
			return nil, loadError(item, "expected (case const instr), got %s", item)
		}
		if err := expectArity(item, 2); err != nil {
			return nil, err
		}
		label, err := loadExpression(item.Items[1])
		if err != nil {
			return nil, err
		}
		body, err := loadInstruction(item.Items[2])
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, &ASTNode{
			Kind:     NodeCase,
			Loc:      locationOf(item),
			Children: []*ASTNode{label, body},
		})
	}

	def := args[len(args)-1]
	if err := expectArity(def, 1); err != nil {
		return nil, err
	}
	node.Body, err = loadInstruction(def.Items[1])
	return node, err
}

func loadMem(d *sexy.Node) (*ASTNode, error) {
	node, err := loadExpression(d)
	if err != nil {
		return nil, err
	}
	if !IsMem(node) {
		return nil, loadError(d, "expected a variable, index, field or deref, got %s", d)
	}
	return node, nil
}

var unaryOperators = map[string]Operator{
	"neg":       OperatorNeg,
	"not":       OperatorNot,
	"to-int":    OperatorToInt,
	"to-real":   OperatorToReal,
	"to-bool":   OperatorToBool,
	"to-char":   OperatorToChar,
	"to-string": OperatorToString,
}

var binaryOperators = map[string]Operator{
	"elem": OperatorElem,
	"add":  OperatorAdd,
	"sub":  OperatorSub,
	"mul":  OperatorMul,
	"div":  OperatorDiv,
	"mod":  OperatorMod,
	"eq":   OperatorEq,
	"ne":   OperatorNe,
	"lt":   OperatorLt,
	"le":   OperatorLe,
	"gt":   OperatorGt,
	"ge":   OperatorGe,
	"and":  OperatorAnd,
	"or":   OperatorOr,
}

func loadExpression(d *sexy.Node) (*ASTNode, error) {
	node := &ASTNode{Loc: locationOf(d)}
	switch d.Type {
	case sexy.NodeInteger:
		n, err := strconv.ParseInt(d.Text, 10, 64)
		if err != nil {
			return nil, loadError(d, "%v", err)
		}
		node.Kind, node.Integer = NodeInteger, n
		return node, nil
	case sexy.NodeReal:
		f, err := strconv.ParseFloat(d.Text, 64)
		if err != nil {
			return nil, loadError(d, "%v", err)
		}
		node.Kind, node.Real = NodeReal, f
		return node, nil
	case sexy.NodeString:
		node.Kind, node.String = NodeString, d.Text
		return node, nil
	case sexy.NodeSymbol:
		switch d.Text {
		case "true", "false":
			node.Kind, node.Boolean = NodeBoolean, d.Text == "true"
			return node, nil
		case "null":
			node.Kind = NodeNull
			return node, nil
		}
		return nil, loadError(d, "unexpected symbol %s", d.Text)
	}

	head := formHead(d)
	operands := d.Items
	if len(operands) > 0 {
		operands = operands[1:]
	}
	if op, ok := unaryOperators[head]; ok {
		if err := expectArity(d, 1); err != nil {
			return nil, err
		}
		node.Kind, node.Op = NodeUnary, op
		return withChildren(node, operands, loadExpression)
	}
	if op, ok := binaryOperators[head]; ok {
		if err := expectArity(d, 2); err != nil {
			return nil, err
		}
		node.Kind, node.Op = NodeBinary, op
		return withChildren(node, operands, loadExpression)
	}

	switch head {
	case "char":
		if err := expectArity(d, 1); err != nil {
			return nil, err
		}
		runes := []rune(operands[0].Text)
		if operands[0].Type != sexy.NodeString || len(runes) != 1 {
			return nil, loadError(d, "char takes a one-character string")
		}
		node.Kind, node.Char = NodeChar, runes[0]
		return node, nil

	case "var":
		if err := expectArity(d, 1); err != nil {
			return nil, err
		}
		node.Kind = NodeIdent
		var err error
		node.String, err = loadName(operands[0])
		return node, err

	case "index":
		if err := expectArity(d, 2); err != nil {
			return nil, err
		}
		mem, err := loadMem(operands[0])
		if err != nil {
			return nil, err
		}
		index, err := loadExpression(operands[1])
		if err != nil {
			return nil, err
		}
		node.Kind, node.Children = NodeIndex, []*ASTNode{mem, index}
		return node, nil

	case "field":
		if err := expectArity(d, 2); err != nil {
			return nil, err
		}
		name, err := loadName(operands[1])
		if err != nil {
			return nil, err
		}
		node.Kind, node.String = NodeSelect, name
		return withChildren(node, operands[:1], loadMem)

	case "deref":
		if err := expectArity(d, 1); err != nil {
			return nil, err
		}
		node.Kind = NodeDeref
		return withChildren(node, operands, loadMem)
	}
	return nil, loadError(d, "expected an expression, got %s", d)
}

func withChildren(node *ASTNode, items []*sexy.Node, load func(*sexy.Node) (*ASTNode, error)) (*ASTNode, error) {
	for _, item := range items {
		child, err := load(item)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}
