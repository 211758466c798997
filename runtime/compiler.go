package lruntime

import (
	"fmt"

	"github.com/oMatheuss/lina/ast"
)

// SemanticError reports a well-formed program that cannot be compiled:
// unknown variables, type mismatches and the like.
type SemanticError struct {
	Line int
	Msg  string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("erro semântico na linha %d: %s", e.Line, e.Msg)
}

func semanticErr(line int, format string, args ...any) error {
	return &SemanticError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

type variable struct {
	slot int
	typ  ast.Type
}

type compiler struct {
	code   *Code
	scopes []map[string]variable
	next   int
	line   int
}

// Compile type-checks prog and lowers it to bytecode.
func Compile(prog *ast.Program) (*Code, error) {
	c := &compiler{code: &Code{Name: prog.Name}}
	if err := c.block(prog.Body); err != nil {
		return nil, err
	}
	c.emit(OpHalt, 0)
	return c.code, nil
}

func (c *compiler) emit(op Opcode, arg int) int {
	c.code.Instrs = append(c.code.Instrs, Instr{Op: op, Arg: arg, Line: c.line})
	return len(c.code.Instrs) - 1
}

func (c *compiler) here() int {
	return len(c.code.Instrs)
}

func (c *compiler) patch(at, target int) {
	c.code.Instrs[at].Arg = target
}

func (c *compiler) constant(v Value) {
	for i, k := range c.code.Consts {
		if k.kind == v.kind && k == v {
			c.emit(OpConst, i)
			return
		}
	}
	c.code.Consts = append(c.code.Consts, v)
	c.emit(OpConst, len(c.code.Consts)-1)
}

func (c *compiler) enter() {
	c.scopes = append(c.scopes, map[string]variable{})
}

// leave releases the scope's slots for reuse by later siblings.
func (c *compiler) leave() {
	top := c.scopes[len(c.scopes)-1]
	c.scopes = c.scopes[:len(c.scopes)-1]
	c.next -= len(top)
}

func (c *compiler) declare(name string, typ ast.Type) (variable, error) {
	top := c.scopes[len(c.scopes)-1]
	if _, ok := top[name]; ok {
		return variable{}, semanticErr(c.line, "variável '%s' já declarada neste bloco", name)
	}
	v := variable{slot: c.next, typ: typ}
	top[name] = v
	c.next++
	if c.next > c.code.Slots {
		c.code.Slots = c.next
	}
	return v, nil
}

func (c *compiler) lookup(name string) (variable, error) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v, ok := c.scopes[i][name]; ok {
			return v, nil
		}
	}
	return variable{}, semanticErr(c.line, "variável '%s' não declarada", name)
}

func (c *compiler) block(blk *ast.Block) error {
	c.enter()
	defer c.leave()
	if blk == nil {
		return nil
	}
	for _, st := range blk.Statements {
		if err := c.stmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) stmt(st ast.Statement) error {
	c.line = st.StmtLine()
	switch s := st.(type) {
	case ast.DeclStmt:
		t, err := c.expr(s.Expr)
		if err != nil {
			return err
		}
		typ := s.Type
		if typ == ast.Invalid {
			typ = t
		}
		if err := c.coerce(typ, t, s.Name); err != nil {
			return err
		}
		v, err := c.declare(s.Name, typ)
		if err != nil {
			return err
		}
		c.emit(OpStore, v.slot)
	case ast.AssignStmt:
		v, err := c.lookup(s.Name)
		if err != nil {
			return err
		}
		var t ast.Type
		if s.Op == "" {
			t, err = c.expr(s.Expr)
		} else {
			c.emit(OpLoad, v.slot)
			t, err = c.binaryRHS(s.Op, v.typ, s.Expr)
		}
		if err != nil {
			return err
		}
		if err := c.coerce(v.typ, t, s.Name); err != nil {
			return err
		}
		c.emit(OpStore, v.slot)
	case ast.IfStmt:
		if err := c.cond(s.Cond, "se"); err != nil {
			return err
		}
		jf := c.emit(OpJmpF, 0)
		if err := c.block(s.Then); err != nil {
			return err
		}
		if s.Else == nil {
			c.patch(jf, c.here())
			return nil
		}
		c.line = s.Line
		jend := c.emit(OpJmp, 0)
		c.patch(jf, c.here())
		if err := c.block(s.Else); err != nil {
			return err
		}
		c.patch(jend, c.here())
	case ast.WhileStmt:
		top := c.here()
		if err := c.cond(s.Cond, "enquanto"); err != nil {
			return err
		}
		jf := c.emit(OpJmpF, 0)
		if err := c.block(s.Body); err != nil {
			return err
		}
		c.line = s.Line
		c.emit(OpJmp, top)
		c.patch(jf, c.here())
	case ast.ForStmt:
		return c.forStmt(s)
	case ast.CallStmt:
		return c.call(s)
	default:
		return semanticErr(c.line, "comando não suportado %T", st)
	}
	return nil
}

// coerce checks that a value of type got can be stored in a variable of type
// want, widening inteiro to real.
func (c *compiler) coerce(want, got ast.Type, name string) error {
	if want == got {
		return nil
	}
	if want == ast.Real && got == ast.Inteiro {
		c.emit(OpCastF, 0)
		return nil
	}
	return semanticErr(c.line, "não é possível atribuir %s à variável '%s' do tipo %s", got, name, want)
}

func (c *compiler) cond(e ast.Expr, kw string) error {
	t, err := c.expr(e)
	if err != nil {
		return err
	}
	if t != ast.Booleano {
		return semanticErr(c.line, "a condição de '%s' deve ser booleano, encontrado %s", kw, t)
	}
	return nil
}

// forStmt keeps the limit and step in hidden slots so each is evaluated once.
// The bound is inclusive in the direction of the step.
func (c *compiler) forStmt(s ast.ForStmt) error {
	c.enter()
	defer c.leave()

	initT, err := c.expr(s.Init)
	if err != nil {
		return err
	}
	if !initT.Numeric() {
		return semanticErr(c.line, "o valor inicial de 'para' deve ser numérico, encontrado %s", initT)
	}
	pending := []ast.Expr{s.Limit, s.Step}
	types := []ast.Type{ast.Inteiro, ast.Inteiro}
	varT := initT
	for i, e := range pending {
		if e == nil {
			continue
		}
		t, err := c.typeOf(e)
		if err != nil {
			return err
		}
		if !t.Numeric() {
			return semanticErr(c.line, "limite e incremento de 'para' devem ser numéricos, encontrado %s", t)
		}
		types[i] = t
		if t == ast.Real {
			varT = ast.Real
		}
	}
	if varT == ast.Real && initT == ast.Inteiro {
		c.emit(OpCastF, 0)
	}
	v, err := c.declare(s.Var, varT)
	if err != nil {
		return err
	}
	c.emit(OpStore, v.slot)

	lim, _ := c.declare("\x00limite", types[0])
	if _, err := c.expr(s.Limit); err != nil {
		return err
	}
	c.emit(OpStore, lim.slot)

	step, _ := c.declare("\x00passo", types[1])
	if s.Step != nil {
		if _, err := c.expr(s.Step); err != nil {
			return err
		}
	} else {
		c.constant(Int(1))
	}
	c.emit(OpStore, step.slot)

	top := c.here()
	c.emit(OpLoad, step.slot)
	c.constant(Int(0))
	c.emit(OpGE, 0)
	jneg := c.emit(OpJmpF, 0)
	c.emit(OpLoad, v.slot)
	c.emit(OpLoad, lim.slot)
	c.emit(OpLE, 0)
	jcheck := c.emit(OpJmp, 0)
	c.patch(jneg, c.here())
	c.emit(OpLoad, v.slot)
	c.emit(OpLoad, lim.slot)
	c.emit(OpGE, 0)
	c.patch(jcheck, c.here())
	jend := c.emit(OpJmpF, 0)

	if err := c.block(s.Body); err != nil {
		return err
	}
	c.line = s.Line
	c.emit(OpLoad, v.slot)
	c.emit(OpLoad, step.slot)
	c.emit(OpAdd, 0)
	if varT == ast.Real {
		c.emit(OpCastF, 0)
	}
	c.emit(OpStore, v.slot)
	c.emit(OpJmp, top)
	c.patch(jend, c.here())
	return nil
}

func (c *compiler) call(s ast.CallStmt) error {
	switch s.Name {
	case "saida", "escreva":
		for _, a := range s.Args {
			if _, err := c.expr(a); err != nil {
				return err
			}
			c.emit(OpWrite, 0)
		}
		if s.Name == "saida" {
			c.constant(Text("\n"))
			c.emit(OpWrite, 0)
		}
		return nil
	case "entrada":
		if len(s.Args) == 0 {
			return semanticErr(c.line, "entrada precisa de ao menos uma variável")
		}
		for _, a := range s.Args {
			id, ok := a.(ast.Ident)
			if !ok {
				return semanticErr(c.line, "argumento de entrada deve ser uma variável")
			}
			v, err := c.lookup(id.Name)
			if err != nil {
				return err
			}
			switch v.typ {
			case ast.Inteiro:
				c.emit(OpReadI, 0)
			case ast.Real:
				c.emit(OpReadF, 0)
			case ast.Texto:
				c.emit(OpReadL, 0)
			case ast.Booleano:
				c.emit(OpReadB, 0)
			}
			c.emit(OpStore, v.slot)
		}
		return nil
	}
	return semanticErr(c.line, "função desconhecida '%s'", s.Name)
}

// typeOf checks e without emitting code.
func (c *compiler) typeOf(e ast.Expr) (ast.Type, error) {
	mark := len(c.code.Instrs)
	consts := len(c.code.Consts)
	t, err := c.expr(e)
	c.code.Instrs = c.code.Instrs[:mark]
	c.code.Consts = c.code.Consts[:consts]
	return t, err
}

func (c *compiler) expr(e ast.Expr) (ast.Type, error) {
	switch x := e.(type) {
	case ast.IntLit:
		c.constant(Int(x.Value))
		return ast.Inteiro, nil
	case ast.RealLit:
		c.constant(Real(x.Value))
		return ast.Real, nil
	case ast.TextLit:
		c.constant(Text(x.Value))
		return ast.Texto, nil
	case ast.BoolLit:
		c.constant(Bool(x.Value))
		return ast.Booleano, nil
	case ast.Ident:
		v, err := c.lookup(x.Name)
		if err != nil {
			return ast.Invalid, err
		}
		c.emit(OpLoad, v.slot)
		return v.typ, nil
	case ast.UnaryExpr:
		t, err := c.expr(x.Expr)
		if err != nil {
			return ast.Invalid, err
		}
		switch x.Op {
		case "-":
			if !t.Numeric() {
				return ast.Invalid, semanticErr(c.line, "'-' não se aplica a %s", t)
			}
			c.emit(OpNeg, 0)
			return t, nil
		case "nao":
			if t != ast.Booleano {
				return ast.Invalid, semanticErr(c.line, "'nao' exige booleano, encontrado %s", t)
			}
			c.emit(OpNot, 0)
			return ast.Booleano, nil
		}
		return ast.Invalid, semanticErr(c.line, "operador unário desconhecido '%s'", x.Op)
	case ast.BinaryExpr:
		lt, err := c.expr(x.Left)
		if err != nil {
			return ast.Invalid, err
		}
		return c.binaryRHS(x.Op, lt, x.Right)
	case ast.CastExpr:
		t, err := c.expr(x.Expr)
		if err != nil {
			return ast.Invalid, err
		}
		switch x.To {
		case ast.Inteiro, ast.Real:
			if t == ast.Booleano {
				return ast.Invalid, semanticErr(c.line, "não é possível converter booleano em %s", x.To)
			}
			if x.To == ast.Inteiro {
				c.emit(OpCastI, 0)
			} else {
				c.emit(OpCastF, 0)
			}
		case ast.Texto:
			c.emit(OpCastS, 0)
		default:
			return ast.Invalid, semanticErr(c.line, "nenhuma conversão para %s", x.To)
		}
		return x.To, nil
	}
	return ast.Invalid, semanticErr(c.line, "expressão não suportada %T", e)
}

// binaryRHS compiles the right operand and the operator, the left operand of
// type lt being already on the stack.
func (c *compiler) binaryRHS(op string, lt ast.Type, right ast.Expr) (ast.Type, error) {
	rt, err := c.expr(right)
	if err != nil {
		return ast.Invalid, err
	}
	mismatch := func() (ast.Type, error) {
		return ast.Invalid, semanticErr(c.line, "tipos incompatíveis para '%s': %s e %s", op, lt, rt)
	}
	arith := func(code Opcode) (ast.Type, error) {
		if !lt.Numeric() || !rt.Numeric() {
			return mismatch()
		}
		c.emit(code, 0)
		if lt == ast.Real || rt == ast.Real {
			return ast.Real, nil
		}
		return ast.Inteiro, nil
	}
	switch op {
	case "+":
		if lt == ast.Texto || rt == ast.Texto {
			c.emit(OpConcat, 0)
			return ast.Texto, nil
		}
		return arith(OpAdd)
	case "-":
		return arith(OpSub)
	case "*":
		return arith(OpMul)
	case "/":
		return arith(OpDiv)
	case "%":
		return arith(OpRem)
	case "^":
		return arith(OpPow)
	case "e", "ou":
		if lt != ast.Booleano || rt != ast.Booleano {
			return mismatch()
		}
		if op == "e" {
			c.emit(OpAnd, 0)
		} else {
			c.emit(OpOr, 0)
		}
		return ast.Booleano, nil
	case "=", "<>":
		if lt != rt && !(lt.Numeric() && rt.Numeric()) {
			return mismatch()
		}
		if op == "=" {
			c.emit(OpEq, 0)
		} else {
			c.emit(OpNE, 0)
		}
		return ast.Booleano, nil
	case "<", ">", "<=", ">=":
		ok := (lt.Numeric() && rt.Numeric()) || (lt == ast.Texto && rt == ast.Texto)
		if !ok {
			return mismatch()
		}
		c.emit(map[string]Opcode{"<": OpLT, ">": OpGT, "<=": OpLE, ">=": OpGE}[op], 0)
		return ast.Booleano, nil
	}
	return ast.Invalid, semanticErr(c.line, "operador desconhecido '%s'", op)
}
