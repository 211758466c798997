package parser

import (
	"github.com/oMatheuss/lina/ast"
)

var reserved = map[string]struct{}{
	"programa": {}, "fim": {}, "seja": {}, "se": {}, "entao": {}, "senao": {},
	"enquanto": {}, "faca": {}, "para": {}, "ate": {}, "incremento": {}, "repetir": {},
	"e": {}, "ou": {}, "nao": {}, "verdadeiro": {}, "falso": {},
	"inteiro": {}, "real": {}, "texto": {}, "booleano": {},
}

// Builtins are the callable names; everything else is a user variable.
var Builtins = map[string]struct{}{
	"saida":   {},
	"escreva": {},
	"entrada": {},
}

func isReserved(name string) bool {
	_, ok := reserved[name]
	return ok
}

// Parse turns lina source into a syntax tree. Errors are *SyntaxError.
func Parse(src string) (*ast.Program, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: toks}
	return p.program()
}

type parser struct {
	tokens []token
	pos    int
	depth  int
}

func (p *parser) peek() token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) next() token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.lit == kw
}

func (p *parser) expectKeyword(kw string) (token, error) {
	t := p.next()
	if t.kind != tokIdent || t.lit != kw {
		return t, syntaxErr(t.line, "esperado '%s', encontrado %s", kw, t)
	}
	return t, nil
}

func (p *parser) expectName() (token, error) {
	t := p.next()
	if t.kind != tokIdent {
		return t, syntaxErr(t.line, "esperado identificador, encontrado %s", t)
	}
	if isReserved(t.lit) {
		return t, syntaxErr(t.line, "'%s' é uma palavra reservada", t.lit)
	}
	return t, nil
}

func (p *parser) expectOp(op string) (token, error) {
	t := p.next()
	if t.kind != tokOp || t.lit != op {
		return t, syntaxErr(t.line, "esperado '%s', encontrado %s", op, t)
	}
	return t, nil
}

func (p *parser) program() (*ast.Program, error) {
	if _, err := p.expectKeyword("programa"); err != nil {
		return nil, err
	}
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("fim"); err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokIdent {
		if t.lit != name.lit {
			return nil, syntaxErr(t.line, "esperado 'fim %s', encontrado 'fim %s'", name.lit, t.lit)
		}
		p.next()
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxErr(t.line, "conteúdo após o fim do programa: %s", t)
	}
	return &ast.Program{Name: name.lit, Body: body}, nil
}

// block parses statements up to, not including, fim or senao.
func (p *parser) block() (*ast.Block, error) {
	blk := &ast.Block{}
	for {
		t := p.peek()
		if t.kind == tokEOF {
			return nil, syntaxErr(t.line, "esperado 'fim', encontrado fim do arquivo")
		}
		if p.isKeyword("fim") || p.isKeyword("senao") {
			return blk, nil
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		blk.Statements = append(blk.Statements, st)
	}
}

func (p *parser) statement() (ast.Statement, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return nil, syntaxErr(t.line, "comando inesperado: %s", t)
	}
	if typ, ok := ast.TypeByName(t.lit); ok {
		return p.declaration(typ)
	}
	switch t.lit {
	case "seja":
		return p.declaration(ast.Invalid)
	case "se":
		return p.ifStmt()
	case "enquanto":
		return p.whileStmt()
	case "para":
		return p.forStmt()
	}
	if isReserved(t.lit) {
		return nil, syntaxErr(t.line, "comando inesperado: %s", t)
	}
	if p.peekAt(1).kind == tokLParen {
		return p.callStmt()
	}
	return p.assignment()
}

func (p *parser) declaration(typ ast.Type) (ast.Statement, error) {
	kw := p.next()
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(":="); err != nil {
		return nil, err
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	return ast.DeclStmt{Line: kw.line, Type: typ, Name: name.lit, Expr: e}, nil
}

func (p *parser) assignment() (ast.Statement, error) {
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	op := p.next()
	if op.kind != tokOp {
		return nil, syntaxErr(op.line, "esperado ':=' após '%s', encontrado %s", name.lit, op)
	}
	var bin string
	switch op.lit {
	case ":=":
	case "+=", "-=", "*=", "/=", "%=", "^=":
		bin = op.lit[:1]
	default:
		return nil, syntaxErr(op.line, "esperado ':=' após '%s', encontrado %s", name.lit, op)
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	return ast.AssignStmt{Line: name.line, Name: name.lit, Op: bin, Expr: e}, nil
}

func (p *parser) callStmt() (ast.Statement, error) {
	name := p.next()
	if _, ok := Builtins[name.lit]; !ok {
		return nil, syntaxErr(name.line, "função desconhecida '%s'", name.lit)
	}
	p.next() // (
	var args []ast.Expr
	if p.peek().kind != tokRParen {
		for {
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
			if p.peek().kind == tokComma {
				p.next()
				continue
			}
			break
		}
	}
	if t := p.next(); t.kind != tokRParen {
		return nil, syntaxErr(t.line, "esperado ')' em %s, encontrado %s", name.lit, t)
	}
	return ast.CallStmt{Line: name.line, Name: name.lit, Args: args}, nil
}

func (p *parser) ifStmt() (ast.Statement, error) {
	kw := p.next()
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("entao"); err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	st := ast.IfStmt{Line: kw.line, Cond: cond, Then: then}
	if p.isKeyword("senao") {
		p.next()
		if p.isKeyword("se") {
			// senao se ... shares the closing fim of the chain
			nested, err := p.ifStmt()
			if err != nil {
				return nil, err
			}
			st.Else = &ast.Block{Statements: []ast.Statement{nested}}
			return st, nil
		}
		st.Else, err = p.block()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectKeyword("fim"); err != nil {
		return nil, err
	}
	return st, nil
}

func (p *parser) whileStmt() (ast.Statement, error) {
	kw := p.next()
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("faca"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("senao") {
		return nil, syntaxErr(p.peek().line, "'senao' fora de um 'se'")
	}
	if _, err := p.expectKeyword("fim"); err != nil {
		return nil, err
	}
	return ast.WhileStmt{Line: kw.line, Cond: cond, Body: body}, nil
}

func (p *parser) forStmt() (ast.Statement, error) {
	kw := p.next()
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(":="); err != nil {
		return nil, err
	}
	init, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("ate"); err != nil {
		return nil, err
	}
	limit, err := p.expr()
	if err != nil {
		return nil, err
	}
	var step ast.Expr
	if p.isKeyword("incremento") {
		p.next()
		if step, err = p.expr(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expectKeyword("repetir"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("senao") {
		return nil, syntaxErr(p.peek().line, "'senao' fora de um 'se'")
	}
	if _, err := p.expectKeyword("fim"); err != nil {
		return nil, err
	}
	return ast.ForStmt{Line: kw.line, Var: name.lit, Init: init, Limit: limit, Step: step, Body: body}, nil
}
