package main

import (
	"math"
	"testing"

	"github.com/nalgeon/be"
)

func TestFormatReal(t *testing.T) {
	tests := []struct {
		f        float64
		expected string
	}{
		{3.5, "3.5"},
		{3, "3.0"},
		{-2, "-2.0"},
		{0, "0.0"},
		{0.1, "0.1"},
		{1e21, "1e+21"},
		{math.Inf(1), "+Inf"},
	}

	for _, test := range tests {
		be.Equal(t, formatReal(test.f), test.expected)
	}
}

func TestValueString(t *testing.T) {
	be.Equal(t, IntValue(-4).String(), "-4")
	be.Equal(t, BoolValue(true).String(), "true")
	be.Equal(t, RealValue(2).String(), "2.0")
	be.Equal(t, CharValue('x').String(), "x")
	be.Equal(t, StringValue("hi").String(), "hi")
	be.Equal(t, Unknown.String(), "?")

	be.Equal(t, CharValue('x').Literal(), "'x'")
	be.Equal(t, StringValue("a\"b").Literal(), `"a\"b"`)
	be.Equal(t, NullValue.Literal(), "-1")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		kind     ValueKind
		text     string
		expected Value
		ok       bool
	}{
		{ValInt, " 42 ", IntValue(42), true},
		{ValInt, "4.2", Unknown, false},
		{ValBool, "true", BoolValue(true), true},
		{ValBool, "yes", Unknown, false},
		{ValReal, "2.5", RealValue(2.5), true},
		{ValReal, "7", RealValue(7), true},
		{ValChar, "z", CharValue('z'), true},
		{ValChar, "zz", Unknown, false},
		{ValString, " spaced out ", StringValue(" spaced out "), true},
		{ValUnknown, "", Unknown, false},
	}

	for _, test := range tests {
		t.Run(test.kind.String()+"/"+test.text, func(t *testing.T) {
			v, err := ParseValue(test.kind, test.text)
			be.Equal(t, err == nil, test.ok)
			be.Equal(t, v, test.expected)
		})
	}
}

func TestBinaryOp(t *testing.T) {
	tests := []struct {
		name     string
		op       Opcode
		l, r     Value
		expected Value
	}{
		{"int add", OpAdd, IntValue(2), IntValue(3), IntValue(5)},
		{"int div truncates", OpDiv, IntValue(7), IntValue(2), IntValue(3)},
		{"negative div", OpDiv, IntValue(-7), IntValue(2), IntValue(-3)},
		{"mod", OpMod, IntValue(7), IntValue(3), IntValue(1)},
		{"mixed add", OpAdd, IntValue(1), RealValue(2.5), RealValue(3.5)},
		{"real div", OpDiv, RealValue(1), RealValue(4), RealValue(0.25)},
		{"real div by zero", OpDiv, RealValue(1), RealValue(0), RealValue(math.Inf(1))},
		{"concat", OpAdd, StringValue("ab"), StringValue("cd"), StringValue("abcd")},
		{"mixed less", OpLt, IntValue(1), RealValue(1.5), BoolValue(true)},
		{"char order", OpGt, CharValue('b'), CharValue('a'), BoolValue(true)},
		{"string equal", OpEq, StringValue("x"), StringValue("x"), BoolValue(true)},
		{"bool order", OpLt, BoolValue(false), BoolValue(true), BoolValue(true)},
		{"pointer equal", OpNe, NullValue, IntValue(12), BoolValue(true)},
		{"and", OpAnd, BoolValue(true), BoolValue(false), BoolValue(false)},
		{"or", OpOr, BoolValue(true), BoolValue(false), BoolValue(true)},
		{"unknown left", OpAdd, Unknown, IntValue(1), Unknown},
		{"unknown right", OpEq, IntValue(1), Unknown, Unknown},
		{"unknown divisor", OpDiv, IntValue(1), Unknown, Unknown},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v, err := binaryOp(test.op, test.l, test.r)
			be.Err(t, err, nil)
			be.Equal(t, v, test.expected)
		})
	}
}

func TestBinaryOpErrors(t *testing.T) {
	_, err := binaryOp(OpDiv, IntValue(1), IntValue(0))
	be.Err(t, err, ErrDivisionByZero)
	_, err = binaryOp(OpMod, IntValue(1), IntValue(0))
	be.Err(t, err, ErrDivisionByZero)
	_, err = binaryOp(OpSub, StringValue("a"), StringValue("b"))
	be.Err(t, err, ErrTypeMismatch)
	_, err = binaryOp(OpEq, CharValue('a'), StringValue("a"))
	be.Err(t, err, ErrTypeMismatch)
}

func TestUnaryOp(t *testing.T) {
	tests := []struct {
		name     string
		op       Opcode
		v        Value
		expected Value
	}{
		{"neg int", OpNeg, IntValue(3), IntValue(-3)},
		{"neg real", OpNeg, RealValue(1.5), RealValue(-1.5)},
		{"not", OpNot, BoolValue(true), BoolValue(false)},
		{"real to int truncates", OpToInt, RealValue(-2.75), IntValue(-2)},
		{"bool to int", OpToInt, BoolValue(true), IntValue(1)},
		{"char to int", OpToInt, CharValue('A'), IntValue(65)},
		{"int to real", OpToReal, IntValue(3), RealValue(3)},
		{"int to bool", OpToBool, IntValue(0), BoolValue(false)},
		{"nonzero to bool", OpToBool, IntValue(-5), BoolValue(true)},
		{"int to char", OpToChar, IntValue(97), CharValue('a')},
		{"int to string", OpToString, IntValue(12), StringValue("12")},
		{"real to string", OpToString, RealValue(2), StringValue("2.0")},
		{"char to string", OpToString, CharValue('q'), StringValue("q")},
		{"unknown", OpToString, Unknown, Unknown},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v, err := unaryOp(test.op, test.v)
			be.Err(t, err, nil)
			be.Equal(t, v, test.expected)
		})
	}

	_, err := unaryOp(OpToBool, StringValue("true"))
	be.Err(t, err, ErrTypeMismatch)
}
