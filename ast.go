package main

import (
	"strconv"
	"strings"
)

// NodeKind represents different types of AST nodes
type NodeKind string

const (
	NodeProgram NodeKind = "NodeProgram"

	// Declarations
	NodeVarDecl  NodeKind = "NodeVarDecl"
	NodeTypeDecl NodeKind = "NodeTypeDecl"
	NodeProcDecl NodeKind = "NodeProcDecl"
	NodeParam    NodeKind = "NodeParam"

	// Instructions
	NodeAssign NodeKind = "NodeAssign"
	NodeBlock  NodeKind = "NodeBlock"
	NodeWrite  NodeKind = "NodeWrite"
	NodeRead   NodeKind = "NodeRead"
	NodeNew    NodeKind = "NodeNew"
	NodeFree   NodeKind = "NodeFree"
	NodeWhile  NodeKind = "NodeWhile"
	NodeIf     NodeKind = "NodeIf"
	NodeIfElse NodeKind = "NodeIfElse"
	NodeSwitch NodeKind = "NodeSwitch"
	NodeCase   NodeKind = "NodeCase"
	NodeCall   NodeKind = "NodeCall"

	// Constants
	NodeInteger NodeKind = "NodeInteger"
	NodeBoolean NodeKind = "NodeBoolean"
	NodeReal    NodeKind = "NodeReal"
	NodeChar    NodeKind = "NodeChar"
	NodeString  NodeKind = "NodeString"
	NodeNull    NodeKind = "NodeNull"

	// Memory references
	NodeIdent  NodeKind = "NodeIdent"
	NodeIndex  NodeKind = "NodeIndex"
	NodeSelect NodeKind = "NodeSelect"
	NodeDeref  NodeKind = "NodeDeref"

	// Operators
	NodeUnary  NodeKind = "NodeUnary"
	NodeBinary NodeKind = "NodeBinary"
)

// Operator is the operator of a NodeUnary or NodeBinary.
type Operator string

const (
	OperatorNeg      Operator = "neg"
	OperatorNot      Operator = "not"
	OperatorToInt    Operator = "to-int"
	OperatorToReal   Operator = "to-real"
	OperatorToBool   Operator = "to-bool"
	OperatorToChar   Operator = "to-char"
	OperatorToString Operator = "to-string"

	OperatorElem Operator = "elem"
	OperatorAdd  Operator = "add"
	OperatorSub  Operator = "sub"
	OperatorMul  Operator = "mul"
	OperatorDiv  Operator = "div"
	OperatorMod  Operator = "mod"
	OperatorEq   Operator = "eq"
	OperatorNe   Operator = "ne"
	OperatorLt   Operator = "lt"
	OperatorLe   Operator = "le"
	OperatorGt   Operator = "gt"
	OperatorGe   Operator = "ge"
	OperatorAnd  Operator = "and"
	OperatorOr   Operator = "or"
)

// ASTNode represents a node in the Abstract Syntax Tree.
//
// Nodes are built once and never restructured. The passes decorate them in
// place: linking sets Decl, type checking sets TypeAST, layout sets Address,
// Level and FrameSize, and labeling sets First and Next.
type ASTNode struct {
	Kind NodeKind
	Loc  SourceLocation

	// NodeIdent, NodeString, NodeSelect (field name), NodeCall (procedure),
	// and the name of every declaration:
	String string
	// NodeInteger:
	Integer int64
	// NodeReal:
	Real float64
	// NodeBoolean:
	Boolean bool
	// NodeChar:
	Char rune
	// NodeUnary, NodeBinary:
	Op Operator

	// Operands and sub-instructions. Layout per kind:
	//   NodeAssign: mem, exp        NodeIndex: mem, index
	//   NodeWhile:  cond, body      NodeIf:    cond, then
	//   NodeIfElse: cond, then, else
	//   NodeSwitch: scrutinee, case...   (default in Body)
	//   NodeCase:   constant, body
	//   NodeBlock:  instruction...  NodeCall:  argument...
	Children []*ASTNode

	// NodeProgram, NodeBlock:
	Decls []*ASTNode
	// NodeProcDecl:
	Params []*ASTNode
	// NodeProgram (main instruction), NodeProcDecl, NodeSwitch (default):
	Body *ASTNode

	// NodeVarDecl, NodeTypeDecl, NodeParam:
	DeclType *TypeNode
	// NodeParam:
	ByRef bool

	// Set by linking. NodeIdent: the NodeVarDecl or NodeParam it names.
	// NodeCall: the NodeProcDecl it calls.
	Decl *ASTNode

	// Set by type checking.
	TypeAST *TypeNode

	// Set by layout. NodeVarDecl, NodeParam: static address (level 0) or
	// frame offset. NodeProcDecl: nesting level and frame size.
	Address   int
	Level     int
	FrameSize int

	// Set by labeling: the half-open range of code positions this node
	// occupies once generated.
	First int
	Next  int
}

// IsMem reports whether node denotes a storage location.
func IsMem(node *ASTNode) bool {
	switch node.Kind {
	case NodeIdent, NodeIndex, NodeSelect, NodeDeref:
		return true
	default:
		return false
	}
}

// IsConstant reports whether node is a literal.
func IsConstant(node *ASTNode) bool {
	switch node.Kind {
	case NodeInteger, NodeBoolean, NodeReal, NodeChar, NodeString, NodeNull:
		return true
	default:
		return false
	}
}

func isArithmeticOp(op Operator) bool {
	switch op {
	case OperatorAdd, OperatorSub, OperatorMul, OperatorDiv, OperatorMod:
		return true
	default:
		return false
	}
}

func isRelationalOp(op Operator) bool {
	switch op {
	case OperatorEq, OperatorNe, OperatorLt, OperatorLe, OperatorGt, OperatorGe:
		return true
	default:
		return false
	}
}

// Walk calls fn for node and every node below it, parents first. Type
// declarations are visited but their types are not.
func Walk(node *ASTNode, fn func(*ASTNode)) {
	if node == nil {
		return
	}
	fn(node)
	for _, decl := range node.Decls {
		Walk(decl, fn)
	}
	for _, param := range node.Params {
		Walk(param, fn)
	}
	for _, child := range node.Children {
		Walk(child, fn)
	}
	Walk(node.Body, fn)
}

// ToSExpr converts an AST node to the s-expression form LoadProgram reads.
func ToSExpr(node *ASTNode) string {
	switch node.Kind {
	case NodeProgram:
		return "(program" + joinSExprs(node.Decls) + " " + ToSExpr(node.Body) + ")"
	case NodeVarDecl:
		return "(var " + strconv.Quote(node.String) + " " + TypeToSExpr(node.DeclType) + ")"
	case NodeTypeDecl:
		return "(type " + strconv.Quote(node.String) + " " + TypeToSExpr(node.DeclType) + ")"
	case NodeProcDecl:
		return "(proc " + strconv.Quote(node.String) + " [" + strings.TrimPrefix(joinSExprs(node.Params), " ") + "] " + ToSExpr(node.Body) + ")"
	case NodeParam:
		mode := "val"
		if node.ByRef {
			mode = "ref"
		}
		return "(" + mode + " " + strconv.Quote(node.String) + " " + TypeToSExpr(node.DeclType) + ")"
	case NodeAssign:
		return "(assign" + joinSExprs(node.Children) + ")"
	case NodeBlock:
		return "(block" + joinSExprs(node.Decls) + joinSExprs(node.Children) + ")"
	case NodeWrite:
		return "(write" + joinSExprs(node.Children) + ")"
	case NodeRead:
		return "(read" + joinSExprs(node.Children) + ")"
	case NodeNew:
		return "(new" + joinSExprs(node.Children) + ")"
	case NodeFree:
		return "(free" + joinSExprs(node.Children) + ")"
	case NodeWhile:
		return "(while" + joinSExprs(node.Children) + ")"
	case NodeIf, NodeIfElse:
		return "(if" + joinSExprs(node.Children) + ")"
	case NodeSwitch:
		return "(switch" + joinSExprs(node.Children) + " (default " + ToSExpr(node.Body) + "))"
	case NodeCase:
		return "(case" + joinSExprs(node.Children) + ")"
	case NodeCall:
		return "(call " + strconv.Quote(node.String) + joinSExprs(node.Children) + ")"
	case NodeInteger:
		return strconv.FormatInt(node.Integer, 10)
	case NodeBoolean:
		return strconv.FormatBool(node.Boolean)
	case NodeReal:
		return formatReal(node.Real)
	case NodeChar:
		return "(char " + strconv.Quote(string(node.Char)) + ")"
	case NodeString:
		return strconv.Quote(node.String)
	case NodeNull:
		return "null"
	case NodeIdent:
		return "(var " + strconv.Quote(node.String) + ")"
	case NodeIndex:
		return "(index" + joinSExprs(node.Children) + ")"
	case NodeSelect:
		return "(field " + ToSExpr(node.Children[0]) + " " + strconv.Quote(node.String) + ")"
	case NodeDeref:
		return "(deref " + ToSExpr(node.Children[0]) + ")"
	case NodeUnary, NodeBinary:
		return "(" + string(node.Op) + joinSExprs(node.Children) + ")"
	default:
		return ""
	}
}

func joinSExprs(nodes []*ASTNode) string {
	var sb strings.Builder
	for _, node := range nodes {
		sb.WriteString(" ")
		sb.WriteString(ToSExpr(node))
	}
	return sb.String()
}
