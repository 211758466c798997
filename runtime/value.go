package lruntime

import (
	"strconv"

	"github.com/oMatheuss/lina/ast"
)

type Value struct {
	kind ast.Type
	i    int64
	f    float64
	s    string
}

func Int(v int64) Value {
	return Value{kind: ast.Inteiro, i: v}
}

func Real(v float64) Value {
	return Value{kind: ast.Real, f: v}
}

func Text(v string) Value {
	return Value{kind: ast.Texto, s: v}
}

func Bool(v bool) Value {
	if v {
		return Value{kind: ast.Booleano, i: 1}
	}
	return Value{kind: ast.Booleano}
}

func (v Value) Kind() ast.Type {
	return v.kind
}

func (v Value) Int64() int64 {
	switch v.kind {
	case ast.Real:
		return int64(v.f)
	case ast.Texto:
		i, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			return 0
		}
		return i
	default:
		return v.i
	}
}

func (v Value) Float64() float64 {
	switch v.kind {
	case ast.Real:
		return v.f
	case ast.Texto:
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return float64(v.i)
	}
}

func (v Value) Bool() bool {
	switch v.kind {
	case ast.Texto:
		return v.s != ""
	case ast.Real:
		return v.f != 0
	default:
		return v.i != 0
	}
}

// String is the form saida prints.
func (v Value) String() string {
	switch v.kind {
	case ast.Texto:
		return v.s
	case ast.Real:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case ast.Booleano:
		if v.i != 0 {
			return "verdadeiro"
		}
		return "falso"
	case ast.Inteiro:
		return strconv.FormatInt(v.i, 10)
	default:
		return ""
	}
}

// Literal renders v as it would appear in source, for listings.
func (v Value) Literal() string {
	switch v.kind {
	case ast.Texto:
		return strconv.Quote(v.s)
	case ast.Real:
		s := strconv.FormatFloat(v.f, 'f', -1, 64)
		return s + "r"
	case ast.Inteiro:
		return strconv.FormatInt(v.i, 10) + "i"
	default:
		return v.String()
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind.Numeric() && o.kind.Numeric() {
		if v.kind == ast.Inteiro && o.kind == ast.Inteiro {
			return v.i == o.i
		}
		return v.Float64() == o.Float64()
	}
	if v.kind != o.kind {
		return false
	}
	if v.kind == ast.Texto {
		return v.s == o.s
	}
	return v.i == o.i
}
