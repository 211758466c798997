package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const indentUnit = "    "

// Format writes prog back as canonical lina source, one statement per line
// with four-space indentation. Binary expressions are fully parenthesised.
func Format(w io.Writer, prog *Program) error {
	var b strings.Builder
	fmt.Fprintf(&b, "programa %s\n", prog.Name)
	formatBlock(&b, prog.Body, 1)
	fmt.Fprintf(&b, "fim %s\n", prog.Name)
	_, err := io.WriteString(w, b.String())
	return err
}

func formatBlock(b *strings.Builder, blk *Block, depth int) {
	if blk == nil {
		return
	}
	for _, st := range blk.Statements {
		formatStmt(b, st, depth)
	}
}

func formatStmt(b *strings.Builder, st Statement, depth int) {
	pad := strings.Repeat(indentUnit, depth)
	switch s := st.(type) {
	case DeclStmt:
		kw := "seja"
		if s.Type != Invalid {
			kw = s.Type.String()
		}
		fmt.Fprintf(b, "%s%s %s := %s\n", pad, kw, s.Name, FormatExpr(s.Expr))
	case AssignStmt:
		fmt.Fprintf(b, "%s%s %s= %s\n", pad, s.Name, assignPrefix(s.Op), FormatExpr(s.Expr))
	case IfStmt:
		fmt.Fprintf(b, "%sse %s entao\n", pad, FormatExpr(s.Cond))
		formatBlock(b, s.Then, depth+1)
		if s.Else != nil {
			fmt.Fprintf(b, "%ssenao\n", pad)
			formatBlock(b, s.Else, depth+1)
		}
		fmt.Fprintf(b, "%sfim\n", pad)
	case WhileStmt:
		fmt.Fprintf(b, "%senquanto %s faca\n", pad, FormatExpr(s.Cond))
		formatBlock(b, s.Body, depth+1)
		fmt.Fprintf(b, "%sfim\n", pad)
	case ForStmt:
		fmt.Fprintf(b, "%spara %s := %s ate %s", pad, s.Var, FormatExpr(s.Init), FormatExpr(s.Limit))
		if s.Step != nil {
			fmt.Fprintf(b, " incremento %s", FormatExpr(s.Step))
		}
		b.WriteString(" repetir\n")
		formatBlock(b, s.Body, depth+1)
		fmt.Fprintf(b, "%sfim\n", pad)
	case CallStmt:
		fmt.Fprintf(b, "%s%s(%s)\n", pad, s.Name, formatArgs(s.Args))
	}
}

func assignPrefix(op string) string {
	if op == "" {
		return ":"
	}
	return op
}

func formatArgs(args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatExpr(a)
	}
	return strings.Join(parts, ", ")
}

func FormatExpr(e Expr) string {
	switch x := e.(type) {
	case IntLit:
		return strconv.FormatInt(x.Value, 10)
	case RealLit:
		s := strconv.FormatFloat(x.Value, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case TextLit:
		return strconv.Quote(x.Value)
	case BoolLit:
		if x.Value {
			return "verdadeiro"
		}
		return "falso"
	case Ident:
		return x.Name
	case UnaryExpr:
		if x.Op == "nao" {
			return "nao " + FormatExpr(x.Expr)
		}
		return x.Op + FormatExpr(x.Expr)
	case BinaryExpr:
		return "(" + FormatExpr(x.Left) + " " + x.Op + " " + FormatExpr(x.Right) + ")"
	case CastExpr:
		return x.To.String() + "(" + FormatExpr(x.Expr) + ")"
	default:
		return "?"
	}
}
