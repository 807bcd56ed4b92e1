package main

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind is the discriminant of a Value.
type ValueKind int

const (
	ValUnknown ValueKind = iota // never written; no payload
	ValInt                      // int64
	ValBool                     // bool
	ValReal                     // float64
	ValChar                     // rune
	ValString                   // string
)

func (k ValueKind) String() string {
	switch k {
	case ValUnknown:
		return "unknown"
	case ValInt:
		return "int"
	case ValBool:
		return "bool"
	case ValReal:
		return "real"
	case ValChar:
		return "char"
	case ValString:
		return "string"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value is one memory cell or operand stack slot.
//
// The zero Value is Unknown: the content of a cell nobody has written. Any
// operation with an Unknown operand produces Unknown instead of failing, so
// a single uninitialized read does not stop the program.
type Value struct {
	Kind ValueKind
	Data any
}

// Unknown is the value of unwritten memory.
var Unknown = Value{}

func IntValue(n int64) Value     { return Value{Kind: ValInt, Data: n} }
func BoolValue(b bool) Value     { return Value{Kind: ValBool, Data: b} }
func RealValue(f float64) Value  { return Value{Kind: ValReal, Data: f} }
func CharValue(c rune) Value     { return Value{Kind: ValChar, Data: c} }
func StringValue(s string) Value { return Value{Kind: ValString, Data: s} }

// NullValue is the pointer that points nowhere.
var NullValue = IntValue(-1)

func (v Value) IsUnknown() bool { return v.Kind == ValUnknown }

func (v Value) Int() int64      { return v.Data.(int64) }
func (v Value) Bool() bool      { return v.Data.(bool) }
func (v Value) Real() float64   { return v.Data.(float64) }
func (v Value) Char() rune      { return v.Data.(rune) }
func (v Value) Str() string     { return v.Data.(string) }
func (v Value) isNumeric() bool { return v.Kind == ValInt || v.Kind == ValReal }

// asReal returns a numeric value as a float64.
func (v Value) asReal() float64 {
	if v.Kind == ValInt {
		return float64(v.Int())
	}
	return v.Real()
}

// String renders the value the way write prints it.
func (v Value) String() string {
	switch v.Kind {
	case ValInt:
		return strconv.FormatInt(v.Int(), 10)
	case ValBool:
		return strconv.FormatBool(v.Bool())
	case ValReal:
		return formatReal(v.Real())
	case ValChar:
		return string(v.Char())
	case ValString:
		return v.Str()
	default:
		return "?"
	}
}

// Literal renders the value as it appears in disassembly.
func (v Value) Literal() string {
	switch v.Kind {
	case ValChar:
		return strconv.QuoteRune(v.Char())
	case ValString:
		return strconv.Quote(v.Str())
	default:
		return v.String()
	}
}

// formatReal formats f so it always reads back as a Real: integral values
// keep a ".0" suffix.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.ContainsAny(s, ".e") {
		return s
	}
	return s + ".0"
}

// ParseValue parses text as a value of the given kind, the way read does.
func ParseValue(kind ValueKind, text string) (Value, error) {
	switch kind {
	case ValInt:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return Unknown, err
		}
		return IntValue(n), nil
	case ValBool:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return Unknown, err
		}
		return BoolValue(b), nil
	case ValReal:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return Unknown, err
		}
		return RealValue(f), nil
	case ValChar:
		runes := []rune(text)
		if len(runes) != 1 {
			return Unknown, fmt.Errorf("expected one character, got %q", text)
		}
		return CharValue(runes[0]), nil
	case ValString:
		return StringValue(text), nil
	default:
		return Unknown, fmt.Errorf("cannot read a value of kind %s", kind)
	}
}

// valueKindOf maps an atomic type to the kind of its values.
func valueKindOf(t *TypeNode) ValueKind {
	switch Resolve(t).Kind {
	case TypeInt:
		return ValInt
	case TypeBool:
		return ValBool
	case TypeReal:
		return ValReal
	case TypeChar:
		return ValChar
	case TypeString:
		return ValString
	default:
		return ValUnknown
	}
}

// binaryOp applies an arithmetic, relational or logical opcode. Int and Real
// operands mix, promoting the Int. Integer division by zero fails with
// ErrDivisionByZero.
func binaryOp(op Opcode, l, r Value) (Value, error) {
	if l.IsUnknown() || r.IsUnknown() {
		return Unknown, nil
	}
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return arithmetic(op, l, r)
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpEqKeep:
		c, ok := compareValues(l, r)
		if !ok {
			return Unknown, fmt.Errorf("%w: cannot compare %s with %s", ErrTypeMismatch, l.Kind, r.Kind)
		}
		switch op {
		case OpEq, OpEqKeep:
			return BoolValue(c == 0), nil
		case OpNe:
			return BoolValue(c != 0), nil
		case OpLt:
			return BoolValue(c < 0), nil
		case OpLe:
			return BoolValue(c <= 0), nil
		case OpGt:
			return BoolValue(c > 0), nil
		default:
			return BoolValue(c >= 0), nil
		}
	case OpAnd:
		return BoolValue(l.Bool() && r.Bool()), nil
	case OpOr:
		return BoolValue(l.Bool() || r.Bool()), nil
	default:
		return Unknown, fmt.Errorf("%w: %s is not a binary operation", ErrTypeMismatch, op)
	}
}

func arithmetic(op Opcode, l, r Value) (Value, error) {
	if l.Kind == ValString && r.Kind == ValString && op == OpAdd {
		return StringValue(l.Str() + r.Str()), nil
	}
	if l.Kind == ValInt && r.Kind == ValInt {
		a, b := l.Int(), r.Int()
		switch op {
		case OpAdd:
			return IntValue(a + b), nil
		case OpSub:
			return IntValue(a - b), nil
		case OpMul:
			return IntValue(a * b), nil
		case OpDiv:
			if b == 0 {
				return Unknown, ErrDivisionByZero
			}
			return IntValue(a / b), nil
		default:
			if b == 0 {
				return Unknown, ErrDivisionByZero
			}
			return IntValue(a % b), nil
		}
	}
	if !l.isNumeric() || !r.isNumeric() || op == OpMod {
		return Unknown, fmt.Errorf("%w: invalid operands for %s: %s and %s", ErrTypeMismatch, op, l.Kind, r.Kind)
	}
	a, b := l.asReal(), r.asReal()
	switch op {
	case OpAdd:
		return RealValue(a + b), nil
	case OpSub:
		return RealValue(a - b), nil
	case OpMul:
		return RealValue(a * b), nil
	default:
		return RealValue(a / b), nil
	}
}

// compareValues orders two values of compatible kinds.
func compareValues(l, r Value) (int, bool) {
	switch {
	case l.Kind == ValInt && r.Kind == ValInt:
		return cmp.Compare(l.Int(), r.Int()), true
	case l.isNumeric() && r.isNumeric():
		return cmp.Compare(l.asReal(), r.asReal()), true
	case l.Kind != r.Kind:
		return 0, false
	}
	switch l.Kind {
	case ValBool:
		return cmp.Compare(boolToInt(l.Bool()), boolToInt(r.Bool())), true
	case ValChar:
		return cmp.Compare(l.Char(), r.Char()), true
	case ValString:
		return strings.Compare(l.Str(), r.Str()), true
	default:
		return 0, false
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// unaryOp applies a negation, logical not or conversion opcode.
func unaryOp(op Opcode, v Value) (Value, error) {
	if v.IsUnknown() {
		return Unknown, nil
	}
	switch {
	case op == OpNeg && v.Kind == ValInt:
		return IntValue(-v.Int()), nil
	case op == OpNeg && v.Kind == ValReal:
		return RealValue(-v.Real()), nil
	case op == OpNot && v.Kind == ValBool:
		return BoolValue(!v.Bool()), nil
	case op == OpToInt:
		switch v.Kind {
		case ValInt:
			return v, nil
		case ValReal:
			return IntValue(int64(v.Real())), nil
		case ValBool:
			return IntValue(boolToInt(v.Bool())), nil
		case ValChar:
			return IntValue(int64(v.Char())), nil
		}
	case op == OpToReal && v.isNumeric():
		return RealValue(v.asReal()), nil
	case op == OpToBool:
		switch v.Kind {
		case ValInt:
			return BoolValue(v.Int() != 0), nil
		case ValBool:
			return v, nil
		}
	case op == OpToChar:
		switch v.Kind {
		case ValInt:
			return CharValue(rune(v.Int())), nil
		case ValChar:
			return v, nil
		}
	case op == OpToString:
		switch v.Kind {
		case ValInt, ValReal, ValChar, ValString:
			return StringValue(v.String()), nil
		}
	}
	return Unknown, fmt.Errorf("%w: invalid operand for %s: %s", ErrTypeMismatch, op, v.Kind)
}
