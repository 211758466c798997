package parser

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokReal
	tokText
	tokIdent
	tokLParen
	tokRParen
	tokComma
	tokOp
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "fim do arquivo"
	case tokInt:
		return "inteiro"
	case tokReal:
		return "real"
	case tokText:
		return "texto"
	case tokIdent:
		return "identificador"
	case tokLParen:
		return "("
	case tokRParen:
		return ")"
	case tokComma:
		return ","
	default:
		return "operador"
	}
}

type token struct {
	kind tokenKind
	lit  string
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "fim do arquivo"
	case tokText:
		return fmt.Sprintf("%q", t.lit)
	default:
		return fmt.Sprintf("'%s'", t.lit)
	}
}

var twoCharOps = []string{":=", "+=", "-=", "*=", "/=", "%=", "^=", "<>", "<=", ">="}

func tokenize(src string) ([]token, error) {
	r := []rune(normalizeWidth(src))
	toks := make([]token, 0, len(r)/3)
	line := 1
	for i := 0; i < len(r); {
		ch := r[i]
		if ch == '\n' {
			line++
			i++
			continue
		}
		if unicode.IsSpace(ch) {
			i++
			continue
		}
		if ch == '#' {
			for i < len(r) && r[i] != '\n' {
				i++
			}
			continue
		}
		if unicode.IsDigit(ch) {
			j := i + 1
			for j < len(r) && unicode.IsDigit(r[j]) {
				j++
			}
			kind := tokInt
			if j+1 < len(r) && r[j] == '.' && unicode.IsDigit(r[j+1]) {
				kind = tokReal
				j += 2
				for j < len(r) && unicode.IsDigit(r[j]) {
					j++
				}
			}
			if j < len(r) && isIdentStart(r[j]) {
				return nil, syntaxErr(line, "número malformado %q", string(r[i:j+1]))
			}
			toks = append(toks, token{kind: kind, lit: string(r[i:j]), line: line})
			i = j
			continue
		}
		if ch == '"' {
			j := i + 1
			escape := false
			for j < len(r) {
				if r[j] == '\n' {
					break
				}
				if escape {
					escape = false
					j++
					continue
				}
				if r[j] == '\\' {
					escape = true
					j++
					continue
				}
				if r[j] == '"' {
					break
				}
				j++
			}
			if j >= len(r) || r[j] != '"' {
				return nil, syntaxErr(line, "texto não terminado")
			}
			v, ok := unquoteString(string(r[i : j+1]))
			if !ok {
				return nil, syntaxErr(line, "texto inválido")
			}
			toks = append(toks, token{kind: tokText, lit: v, line: line})
			i = j + 1
			continue
		}
		if isIdentStart(ch) {
			j := i + 1
			for j < len(r) && isIdentPart(r[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, lit: strings.ToLower(string(r[i:j])), line: line})
			i = j
			continue
		}
		switch ch {
		case '(':
			toks = append(toks, token{kind: tokLParen, lit: "(", line: line})
			i++
			continue
		case ')':
			toks = append(toks, token{kind: tokRParen, lit: ")", line: line})
			i++
			continue
		case ',':
			toks = append(toks, token{kind: tokComma, lit: ",", line: line})
			i++
			continue
		}
		if i+1 < len(r) {
			two := string(r[i : i+2])
			matched := false
			for _, op := range twoCharOps {
				if two == op {
					toks = append(toks, token{kind: tokOp, lit: two, line: line})
					i += 2
					matched = true
					break
				}
			}
			if matched {
				continue
			}
		}
		switch ch {
		case '+', '-', '*', '/', '%', '^', '<', '>', '=':
			toks = append(toks, token{kind: tokOp, lit: string(ch), line: line})
			i++
		default:
			return nil, syntaxErr(line, "caractere inesperado %q", ch)
		}
	}
	toks = append(toks, token{kind: tokEOF, line: line})
	return toks, nil
}
