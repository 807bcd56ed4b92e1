package main

import (
	"strconv"
	"strings"
)

// TypeKind represents the different kinds of types
type TypeKind string

const (
	TypeInt     TypeKind = "Int"
	TypeBool    TypeKind = "Bool"
	TypeReal    TypeKind = "Real"
	TypeChar    TypeKind = "Char"
	TypeString  TypeKind = "String"
	TypeError   TypeKind = "Error"
	TypeOk      TypeKind = "Ok"
	TypeArray   TypeKind = "Array"
	TypeRecord  TypeKind = "Record"
	TypePointer TypeKind = "Pointer"
	TypeNamed   TypeKind = "Named"
)

// Field is one member of a record type.
type Field struct {
	Name string
	Type *TypeNode
	// Offset from the start of the record, in cells. Set by the size pass.
	Offset int
}

// TypeNode represents a type.
//
// Type graphs may be cyclic through TypeNamed nodes (a record holding a
// pointer to itself). Every traversal that follows Decl is guarded.
type TypeNode struct {
	Kind TypeKind

	// TypeArray: element type. TypePointer: pointed-to type, nil for the
	// type of null.
	Child *TypeNode
	// TypeArray:
	Dim int
	// TypeRecord, in declaration order:
	Fields []Field
	// TypeNamed: the alias being referenced.
	String string
	// TypeNamed: the NodeTypeDecl the alias resolves to. Set by linking.
	Decl *ASTNode

	// TypeArray, TypeRecord: cell count, set once by the size pass.
	Size  int
	sized bool
}

// Shared instances of the types that carry no per-instance state. They are
// never mutated.
var (
	IntType         = &TypeNode{Kind: TypeInt}
	BoolType        = &TypeNode{Kind: TypeBool}
	RealType        = &TypeNode{Kind: TypeReal}
	CharType        = &TypeNode{Kind: TypeChar}
	StringType      = &TypeNode{Kind: TypeString}
	ErrorType       = &TypeNode{Kind: TypeError}
	OkType          = &TypeNode{Kind: TypeOk}
	NullPointerType = &TypeNode{Kind: TypePointer}
)

func NewArrayType(dim int, base *TypeNode) *TypeNode {
	return &TypeNode{Kind: TypeArray, Dim: dim, Child: base}
}

func NewRecordType(fields ...Field) *TypeNode {
	return &TypeNode{Kind: TypeRecord, Fields: fields}
}

func NewPointerType(base *TypeNode) *TypeNode {
	return &TypeNode{Kind: TypePointer, Child: base}
}

func NewNamedType(alias string) *TypeNode {
	return &TypeNode{Kind: TypeNamed, String: alias}
}

// Resolve follows named references until it reaches a type that is not a
// TypeNamed. Unresolved or cyclic aliases resolve to ErrorType.
func Resolve(t *TypeNode) *TypeNode {
	if t == nil {
		return ErrorType
	}
	var seen map[*TypeNode]bool
	for t.Kind == TypeNamed {
		if t.Decl == nil || t.Decl.DeclType == nil {
			return ErrorType
		}
		if seen == nil {
			seen = make(map[*TypeNode]bool)
		}
		if seen[t] {
			return ErrorType
		}
		seen[t] = true
		t = t.Decl.DeclType
	}
	return t
}

// IsAtomic reports whether t (after resolution) is one of the five value
// types that fit a single cell and can be read and written.
func IsAtomic(t *TypeNode) bool {
	switch Resolve(t).Kind {
	case TypeInt, TypeBool, TypeReal, TypeChar, TypeString:
		return true
	default:
		return false
	}
}

// IsComposite reports whether values of t are copied cell by cell.
func IsComposite(t *TypeNode) bool {
	switch Resolve(t).Kind {
	case TypeArray, TypeRecord:
		return true
	default:
		return false
	}
}

func isKind(t *TypeNode, kind TypeKind) bool {
	return Resolve(t).Kind == kind
}

// isError reports whether t is, or resolves to, the Error type.
func isError(t *TypeNode) bool {
	return Resolve(t).Kind == TypeError
}

func isNumeric(t *TypeNode) bool {
	k := Resolve(t).Kind
	return k == TypeInt || k == TypeReal
}

// FieldByName returns the field of record type t called name.
func FieldByName(t *TypeNode, name string) (Field, bool) {
	for _, f := range Resolve(t).Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// TypeToString converts a TypeNode to its string representation
func TypeToString(t *TypeNode) string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypeNamed:
		return t.String
	case TypeArray:
		return "[" + strconv.Itoa(t.Dim) + "]" + TypeToString(t.Child)
	case TypePointer:
		if t.Child == nil {
			return "null"
		}
		return TypeToString(t.Child) + "*"
	case TypeRecord:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + ": " + TypeToString(f.Type)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return string(t.Kind)
	}
}

// TypeToSExpr converts a TypeNode to the s-expression form LoadProgram reads.
func TypeToSExpr(t *TypeNode) string {
	switch t.Kind {
	case TypeNamed:
		return "(named " + strconv.Quote(t.String) + ")"
	case TypeArray:
		return "(array " + strconv.Itoa(t.Dim) + " " + TypeToSExpr(t.Child) + ")"
	case TypePointer:
		if t.Child == nil {
			return "null"
		}
		return "(pointer " + TypeToSExpr(t.Child) + ")"
	case TypeRecord:
		var sb strings.Builder
		sb.WriteString("(record")
		for _, f := range t.Fields {
			sb.WriteString(" (" + strconv.Quote(f.Name) + " " + TypeToSExpr(f.Type) + ")")
		}
		sb.WriteString(")")
		return sb.String()
	default:
		return strings.ToLower(string(t.Kind))
	}
}

type typePair struct {
	a, b *TypeNode
}

// Compatible reports whether values of t1 and t2 can be converted into each
// other. The relation is symmetric and terminates on recursive types.
//
// Int and Real convert into each other only at the top level. Element,
// field and pointer base types must agree exactly, since composites are
// copied cell by cell and pointers alias their target.
func Compatible(t1, t2 *TypeNode) bool {
	c := compatibility{assumed: make(map[typePair]bool)}
	return c.compatible(t1, t2, false)
}

// compatibility holds the pairs currently being compared. A pair met again
// while it is still being compared is assumed compatible: every rule below is
// a conjunction, so if the assumption is wrong some other comparison fails
// and the false result reaches the top.
type compatibility struct {
	assumed map[typePair]bool
}

func (c *compatibility) compatible(t1, t2 *TypeNode, nested bool) bool {
	pair := typePair{t1, t2}
	if c.assumed[pair] {
		return true
	}
	c.assumed[pair] = true

	r1, r2 := Resolve(t1), Resolve(t2)
	if r1.Kind == TypeError || r2.Kind == TypeError {
		return false
	}
	if r1 == r2 {
		return true
	}

	switch {
	case isNumeric(r1) && isNumeric(r2):
		return !nested || r1.Kind == r2.Kind
	case r1.Kind != r2.Kind:
		return false
	}

	switch r1.Kind {
	case TypeArray:
		return r1.Dim == r2.Dim && c.compatible(r1.Child, r2.Child, true)
	case TypeRecord:
		if len(r1.Fields) != len(r2.Fields) {
			return false
		}
		for i := range r1.Fields {
			if r1.Fields[i].Name != r2.Fields[i].Name {
				return false
			}
			if !c.compatible(r1.Fields[i].Type, r2.Fields[i].Type, true) {
				return false
			}
		}
		return true
	case TypePointer:
		if r1.Child == nil || r2.Child == nil {
			return true
		}
		return c.compatible(r1.Child, r2.Child, true)
	default:
		// Same atomic kind, or Ok.
		return true
	}
}
