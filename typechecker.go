package main

import "math"

// TypeChecker decorates a linked AST with types.
//
// Every node gets a TypeAST. Expressions get the type of their value;
// instructions get OkType, or ErrorType when they or something inside them is
// ill-typed. A mismatch is reported once, at the node where it originates:
// a node whose operand already has ErrorType becomes ErrorType silently.
type TypeChecker struct {
	reporter  Reporter
	hasErrors bool
}

func NewTypeChecker(reporter Reporter) *TypeChecker {
	return &TypeChecker{reporter: reporter}
}

// HasErrors reports whether tc has reported anything.
func (tc *TypeChecker) HasErrors() bool {
	return tc.hasErrors
}

func (tc *TypeChecker) error(node *ASTNode, kind ErrorKind, args ...any) *TypeNode {
	tc.hasErrors = true
	tc.reporter.Error(kind, node.Loc, args...)
	return ErrorType
}

// CheckProgram type checks a linked program and returns true if any error was
// reported.
func CheckProgram(program *ASTNode, reporter Reporter) bool {
	tc := NewTypeChecker(reporter)
	tc.checkDecls(program.Decls)
	CheckInstruction(program.Body, tc)
	program.TypeAST = OkType
	if tc.hasErrors {
		program.TypeAST = ErrorType
	}
	return tc.hasErrors
}

func (tc *TypeChecker) checkDecls(decls []*ASTNode) {
	for _, decl := range decls {
		switch decl.Kind {
		case NodeVarDecl, NodeTypeDecl:
			tc.checkDeclaredType(decl, decl.DeclType)
		case NodeProcDecl:
			for _, param := range decl.Params {
				tc.checkDeclaredType(param, param.DeclType)
			}
			CheckInstruction(decl.Body, tc)
		}
	}
}

// checkDeclaredType validates a type as written in a declaration. Named
// references are not followed; their own declarations are checked where they
// appear.
func (tc *TypeChecker) checkDeclaredType(decl *ASTNode, t *TypeNode) {
	switch t.Kind {
	case TypeArray:
		if t.Dim < 0 {
			tc.error(decl, NegativeDimension, t.Dim)
		}
		tc.checkDeclaredType(decl, t.Child)
	case TypePointer:
		if t.Child != nil {
			tc.checkDeclaredType(decl, t.Child)
		}
	case TypeRecord:
		for _, f := range t.Fields {
			tc.checkDeclaredType(decl, f.Type)
		}
	}
}

// CheckExpression computes and records the type of an expression.
func CheckExpression(node *ASTNode, tc *TypeChecker) *TypeNode {
	node.TypeAST = checkExpression(node, tc)
	return node.TypeAST
}

func checkExpression(node *ASTNode, tc *TypeChecker) *TypeNode {
	switch node.Kind {
	case NodeInteger:
		return IntType
	case NodeBoolean:
		return BoolType
	case NodeReal:
		return RealType
	case NodeChar:
		return CharType
	case NodeString:
		return StringType
	case NodeNull:
		return NullPointerType

	case NodeIdent:
		if node.Decl == nil {
			return ErrorType
		}
		return node.Decl.DeclType

	case NodeIndex:
		array := CheckExpression(node.Children[0], tc)
		index := CheckExpression(node.Children[1], tc)
		if isError(array) || isError(index) {
			return ErrorType
		}
		if !isKind(array, TypeArray) {
			return tc.error(node, NotAnArray, TypeToString(array))
		}
		if !isKind(index, TypeInt) {
			return tc.error(node, IndexNotInt, TypeToString(index))
		}
		return Resolve(array).Child

	case NodeSelect:
		record := CheckExpression(node.Children[0], tc)
		if isError(record) {
			return ErrorType
		}
		if !isKind(record, TypeRecord) {
			return tc.error(node, NotARecord, TypeToString(record))
		}
		field, ok := FieldByName(record, node.String)
		if !ok {
			return tc.error(node, NoSuchField, TypeToString(record), node.String)
		}
		return field.Type

	case NodeDeref:
		pointer := CheckExpression(node.Children[0], tc)
		if isError(pointer) {
			return ErrorType
		}
		if !isKind(pointer, TypePointer) || Resolve(pointer).Child == nil {
			return tc.error(node, NotAPointer, TypeToString(pointer))
		}
		return Resolve(pointer).Child

	case NodeUnary:
		return checkUnary(node, tc)
	case NodeBinary:
		return checkBinary(node, tc)

	default:
		panic("unexpected expression kind: " + string(node.Kind))
	}
}

func checkUnary(node *ASTNode, tc *TypeChecker) *TypeNode {
	operand := CheckExpression(node.Children[0], tc)
	if isError(operand) {
		return ErrorType
	}
	kind := Resolve(operand).Kind
	accepts := func(kinds ...TypeKind) bool {
		for _, k := range kinds {
			if kind == k {
				return true
			}
		}
		return false
	}

	var result *TypeNode
	switch node.Op {
	case OperatorNeg:
		if accepts(TypeInt, TypeReal) {
			result = Resolve(operand)
		}
	case OperatorNot:
		if accepts(TypeBool) {
			result = BoolType
		}
	case OperatorToInt:
		if accepts(TypeInt, TypeReal, TypeBool, TypeChar) {
			result = IntType
		}
	case OperatorToReal:
		if accepts(TypeInt, TypeReal) {
			result = RealType
		}
	case OperatorToBool:
		if accepts(TypeInt, TypeBool) {
			result = BoolType
		}
	case OperatorToChar:
		if accepts(TypeInt, TypeChar) {
			result = CharType
		}
	case OperatorToString:
		if accepts(TypeInt, TypeReal, TypeChar, TypeString) {
			result = StringType
		}
	default:
		panic("unexpected unary operator: " + string(node.Op))
	}
	if result == nil {
		return tc.error(node, UnaryMismatch, node.Op, TypeToString(operand))
	}
	return result
}

func checkBinary(node *ASTNode, tc *TypeChecker) *TypeNode {
	left := CheckExpression(node.Children[0], tc)
	right := CheckExpression(node.Children[1], tc)
	if isError(left) || isError(right) {
		return ErrorType
	}
	l, r := Resolve(left).Kind, Resolve(right).Kind
	numeric := isNumeric(left) && isNumeric(right)

	var result *TypeNode
	switch {
	case node.Op == OperatorElem:
		if l == TypeString && r == TypeInt {
			result = CharType
		}
	case node.Op == OperatorMod:
		if l == TypeInt && r == TypeInt {
			result = IntType
		}
	case isArithmeticOp(node.Op):
		switch {
		case numeric && (l == TypeReal || r == TypeReal):
			result = RealType
		case numeric:
			result = IntType
		case node.Op == OperatorAdd && l == TypeString && r == TypeString:
			result = StringType
		}
	case isRelationalOp(node.Op):
		switch {
		case numeric:
			result = BoolType
		case l == r && (l == TypeBool || l == TypeChar || l == TypeString):
			result = BoolType
		case l == TypePointer && r == TypePointer && (node.Op == OperatorEq || node.Op == OperatorNe) && Compatible(left, right):
			result = BoolType
		}
	case node.Op == OperatorAnd || node.Op == OperatorOr:
		if l == TypeBool && r == TypeBool {
			result = BoolType
		}
	default:
		panic("unexpected binary operator: " + string(node.Op))
	}
	if result == nil {
		return tc.error(node, OperatorMismatch, node.Op, TypeToString(left), TypeToString(right))
	}
	return result
}

// operandWidens reports whether operand i of binary node is an Int that must
// be converted to Real before the operation.
func operandWidens(node *ASTNode, i int) bool {
	if node.Kind != NodeBinary || !(isArithmeticOp(node.Op) || isRelationalOp(node.Op)) {
		return false
	}
	left, right := node.Children[0].TypeAST, node.Children[1].TypeAST
	if !isNumeric(left) || !isNumeric(right) || isKind(left, TypeInt) == isKind(right, TypeInt) {
		return false
	}
	return isKind(node.Children[i].TypeAST, TypeInt)
}

// CheckInstruction type checks an instruction and everything inside it.
func CheckInstruction(node *ASTNode, tc *TypeChecker) *TypeNode {
	before := tc.hasErrors
	tc.hasErrors = false
	checkInstruction(node, tc)
	node.TypeAST = OkType
	if tc.hasErrors {
		node.TypeAST = ErrorType
	}
	tc.hasErrors = tc.hasErrors || before
	return node.TypeAST
}

func checkInstruction(node *ASTNode, tc *TypeChecker) {
	switch node.Kind {
	case NodeAssign:
		mem := CheckExpression(node.Children[0], tc)
		exp := CheckExpression(node.Children[1], tc)
		if isError(mem) || isError(exp) {
			return
		}
		if !Compatible(mem, exp) {
			tc.error(node, AssignmentMismatch, TypeToString(exp), TypeToString(mem))
			return
		}
		if IsComposite(mem) && !IsMem(node.Children[1]) {
			tc.error(node, CompositeValue, TypeToString(mem))
		}

	case NodeBlock:
		tc.checkDecls(node.Decls)
		for _, instr := range node.Children {
			CheckInstruction(instr, tc)
		}

	case NodeWrite:
		t := CheckExpression(node.Children[0], tc)
		if !isError(t) && !IsAtomic(t) {
			tc.error(node, WriteNonAtomic, TypeToString(t))
		}

	case NodeRead:
		t := CheckExpression(node.Children[0], tc)
		if !isError(t) && !IsAtomic(t) {
			tc.error(node, ReadNonAtomic, TypeToString(t))
		}

	case NodeNew, NodeFree:
		t := CheckExpression(node.Children[0], tc)
		if isError(t) || (isKind(t, TypePointer) && Resolve(t).Child != nil) {
			return
		}
		if node.Kind == NodeNew {
			tc.error(node, NewNonPointer, TypeToString(t))
		} else {
			tc.error(node, FreeNonPointer, TypeToString(t))
		}

	case NodeWhile, NodeIf, NodeIfElse:
		cond := CheckExpression(node.Children[0], tc)
		if !isError(cond) && !isKind(cond, TypeBool) {
			tc.error(node.Children[0], NonBooleanCondition, TypeToString(cond))
		}
		for _, instr := range node.Children[1:] {
			CheckInstruction(instr, tc)
		}

	case NodeSwitch:
		checkSwitch(node, tc)

	case NodeCall:
		checkCall(node, tc)

	default:
		panic("unexpected instruction kind: " + string(node.Kind))
	}
}

func checkSwitch(node *ASTNode, tc *TypeChecker) {
	scrutinee := CheckExpression(node.Children[0], tc)
	valid := false
	switch {
	case isError(scrutinee):
	case isKind(scrutinee, TypeString):
		tc.error(node.Children[0], StringScrutinee)
	case !IsAtomic(scrutinee):
		tc.error(node.Children[0], BadScrutinee, TypeToString(scrutinee))
	default:
		valid = true
	}

	// Labels are keyed by value with integral Reals folded into Int, since
	// the comparison widens and 1 matches 1.0.
	seen := make(map[Value]bool)
	for _, c := range node.Children[1:] {
		label := c.Children[0]
		c.TypeAST = OkType
		if !IsConstant(label) {
			tc.error(label, CaseNotConstant)
		} else {
			t := CheckExpression(label, tc)
			key := constantValue(label)
			if key.Kind == ValReal && key.Real() == math.Trunc(key.Real()) && math.Abs(key.Real()) < 1<<63 {
				key = IntValue(int64(key.Real()))
			}
			switch {
			case !valid:
			case !Compatible(scrutinee, t):
				tc.error(label, CaseMismatch, TypeToString(t), TypeToString(scrutinee))
			case seen[key]:
				tc.error(label, DuplicateCase, ToSExpr(label))
			}
			seen[key] = true
		}
		if isError(CheckInstruction(c.Children[1], tc)) {
			c.TypeAST = ErrorType
		}
	}
	CheckInstruction(node.Body, tc)
}

func checkCall(node *ASTNode, tc *TypeChecker) {
	args := node.Children
	argTypes := make([]*TypeNode, len(args))
	for i, arg := range args {
		argTypes[i] = CheckExpression(arg, tc)
	}

	proc := node.Decl
	if proc == nil {
		return
	}
	if len(args) != len(proc.Params) {
		tc.error(node, ArgumentCount, proc.String, len(proc.Params), len(args))
		return
	}
	for i, param := range proc.Params {
		arg, t := args[i], argTypes[i]
		if isError(t) {
			continue
		}
		if param.ByRef && !IsMem(arg) {
			tc.error(arg, ArgumentNotMem, i+1, proc.String)
			continue
		}
		compatible := Compatible(param.DeclType, t)
		if param.ByRef && Resolve(param.DeclType).Kind != Resolve(t).Kind {
			// A by-reference Int cannot stand in for a Real cell or the
			// other way around: there is no coercion on the way back.
			compatible = false
		}
		if !compatible {
			tc.error(arg, ArgumentMismatch, i+1, proc.String, TypeToString(t), TypeToString(param.DeclType))
			continue
		}
		if IsComposite(t) && !IsMem(arg) {
			tc.error(arg, CompositeValue, TypeToString(t))
		}
	}
}
