package parser

import (
	"strconv"

	"github.com/oMatheuss/lina/ast"
)

const maxExprDepth = 256

// ParseExpr parses a standalone expression, for tooling.
func ParseExpr(src string) (ast.Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: toks}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxErr(t.line, "token inesperado %s", t)
	}
	return e, nil
}

func (p *parser) expr() (ast.Expr, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxExprDepth {
		return nil, syntaxErr(p.peek().line, "expressão aninhada demais")
	}
	return p.or()
}

func (p *parser) or() (ast.Expr, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("ou") {
		op := p.next()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Line: op.line, Op: "ou", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) and() (ast.Expr, error) {
	left, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("e") {
		op := p.next()
		right, err := p.not()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Line: op.line, Op: "e", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) not() (ast.Expr, error) {
	if p.isKeyword("nao") {
		op := p.next()
		e, err := p.not()
		if err != nil {
			return nil, err
		}
		return ast.UnaryExpr{Line: op.line, Op: "nao", Expr: e}, nil
	}
	return p.comparison()
}

func isComparison(op string) bool {
	switch op {
	case "=", "<>", "<", ">", "<=", ">=":
		return true
	}
	return false
}

// comparison is non-associative: a < b < c is rejected.
func (p *parser) comparison() (ast.Expr, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokOp || !isComparison(t.lit) {
		return left, nil
	}
	p.next()
	right, err := p.additive()
	if err != nil {
		return nil, err
	}
	if n := p.peek(); n.kind == tokOp && isComparison(n.lit) {
		return nil, syntaxErr(n.line, "comparações não podem ser encadeadas")
	}
	return ast.BinaryExpr{Line: t.line, Op: t.lit, Left: left, Right: right}, nil
}

func (p *parser) additive() (ast.Expr, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.lit != "+" && t.lit != "-") {
			return left, nil
		}
		p.next()
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Line: t.line, Op: t.lit, Left: left, Right: right}
	}
}

func (p *parser) multiplicative() (ast.Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.lit != "*" && t.lit != "/" && t.lit != "%") {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Line: t.line, Op: t.lit, Left: left, Right: right}
	}
}

func (p *parser) unary() (ast.Expr, error) {
	t := p.peek()
	if t.kind == tokOp && (t.lit == "-" || t.lit == "+") {
		p.next()
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		if t.lit == "+" {
			return e, nil
		}
		return ast.UnaryExpr{Line: t.line, Op: "-", Expr: e}, nil
	}
	return p.power()
}

// power is right-associative and binds tighter than unary minus.
func (p *parser) power() (ast.Expr, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokOp || t.lit != "^" {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return ast.BinaryExpr{Line: t.line, Op: "^", Left: base, Right: exp}, nil
}

func (p *parser) primary() (ast.Expr, error) {
	t := p.next()
	switch t.kind {
	case tokInt:
		v, err := strconv.ParseInt(t.lit, 10, 64)
		if err != nil {
			return nil, syntaxErr(t.line, "inteiro fora do intervalo: %s", t.lit)
		}
		return ast.IntLit{Value: v}, nil
	case tokReal:
		v, err := strconv.ParseFloat(t.lit, 64)
		if err != nil {
			return nil, syntaxErr(t.line, "real inválido: %s", t.lit)
		}
		return ast.RealLit{Value: v}, nil
	case tokText:
		return ast.TextLit{Value: t.lit}, nil
	case tokLParen:
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, syntaxErr(c.line, "esperado ')', encontrado %s", c)
		}
		return e, nil
	case tokIdent:
		switch t.lit {
		case "verdadeiro":
			return ast.BoolLit{Value: true}, nil
		case "falso":
			return ast.BoolLit{Value: false}, nil
		}
		if typ, ok := ast.TypeByName(t.lit); ok {
			return p.cast(t, typ)
		}
		if isReserved(t.lit) {
			return nil, syntaxErr(t.line, "expressão esperada, encontrado %s", t)
		}
		if p.peek().kind == tokLParen {
			return nil, syntaxErr(t.line, "'%s' não pode ser usado em uma expressão", t.lit)
		}
		return ast.Ident{Line: t.line, Name: t.lit}, nil
	}
	return nil, syntaxErr(t.line, "expressão esperada, encontrado %s", t)
}

func (p *parser) cast(kw token, typ ast.Type) (ast.Expr, error) {
	if typ == ast.Booleano {
		return nil, syntaxErr(kw.line, "não há conversão para booleano")
	}
	if l := p.next(); l.kind != tokLParen {
		return nil, syntaxErr(l.line, "esperado '(' após '%s', encontrado %s", kw.lit, l)
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if r := p.next(); r.kind != tokRParen {
		return nil, syntaxErr(r.line, "esperado ')', encontrado %s", r)
	}
	return ast.CastExpr{Line: kw.line, To: typ, Expr: e}, nil
}
