package ast

type Type int

const (
	Invalid Type = iota
	Inteiro
	Real
	Texto
	Booleano
)

func (t Type) String() string {
	switch t {
	case Inteiro:
		return "inteiro"
	case Real:
		return "real"
	case Texto:
		return "texto"
	case Booleano:
		return "booleano"
	default:
		return "vazio"
	}
}

func (t Type) Numeric() bool {
	return t == Inteiro || t == Real
}

// TypeByName maps a type keyword to its Type.
func TypeByName(name string) (Type, bool) {
	switch name {
	case "inteiro":
		return Inteiro, true
	case "real":
		return Real, true
	case "texto":
		return Texto, true
	case "booleano":
		return Booleano, true
	}
	return Invalid, false
}

type Program struct {
	Name string
	Body *Block
}

type Block struct {
	Statements []Statement
}

type Statement interface {
	isStatement()
	StmtLine() int
}

// DeclStmt declares a variable. Type is Invalid for seja, which infers it.
type DeclStmt struct {
	Line int
	Type Type
	Name string
	Expr Expr
}

func (DeclStmt) isStatement()    {}
func (s DeclStmt) StmtLine() int { return s.Line }

// AssignStmt covers := and the compound forms (Op is "+", "-", ... or "").
type AssignStmt struct {
	Line int
	Name string
	Op   string
	Expr Expr
}

func (AssignStmt) isStatement()    {}
func (s AssignStmt) StmtLine() int { return s.Line }

type IfStmt struct {
	Line int
	Cond Expr
	Then *Block
	Else *Block
}

func (IfStmt) isStatement()    {}
func (s IfStmt) StmtLine() int { return s.Line }

type WhileStmt struct {
	Line int
	Cond Expr
	Body *Block
}

func (WhileStmt) isStatement()    {}
func (s WhileStmt) StmtLine() int { return s.Line }

// ForStmt is para v := Init ate Limit [incremento Step] repetir. The bound is
// inclusive; a nil Step means 1.
type ForStmt struct {
	Line  int
	Var   string
	Init  Expr
	Limit Expr
	Step  Expr
	Body  *Block
}

func (ForStmt) isStatement()    {}
func (s ForStmt) StmtLine() int { return s.Line }

// CallStmt invokes a builtin: saida, escreva or entrada.
type CallStmt struct {
	Line int
	Name string
	Args []Expr
}

func (CallStmt) isStatement()    {}
func (s CallStmt) StmtLine() int { return s.Line }

type Expr interface {
	isExpr()
}

type IntLit struct {
	Value int64
}

func (IntLit) isExpr() {}

type RealLit struct {
	Value float64
}

func (RealLit) isExpr() {}

type TextLit struct {
	Value string
}

func (TextLit) isExpr() {}

type BoolLit struct {
	Value bool
}

func (BoolLit) isExpr() {}

type Ident struct {
	Line int
	Name string
}

func (Ident) isExpr() {}

type UnaryExpr struct {
	Line int
	Op   string
	Expr Expr
}

func (UnaryExpr) isExpr() {}

type BinaryExpr struct {
	Line  int
	Op    string
	Left  Expr
	Right Expr
}

func (BinaryExpr) isExpr() {}

// CastExpr is inteiro(e), real(e) or texto(e).
type CastExpr struct {
	Line int
	To   Type
	Expr Expr
}

func (CastExpr) isExpr() {}
