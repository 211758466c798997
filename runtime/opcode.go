package lruntime

import "fmt"

type Opcode uint8

const (
	OpHalt Opcode = iota
	OpConst
	OpDup
	OpPop

	OpCastI
	OpCastF
	OpCastS

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpPow
	OpNeg
	OpConcat

	OpNot
	OpOr
	OpAnd

	OpJmp
	OpJmpT
	OpJmpF

	OpEq
	OpNE
	OpLT
	OpGT
	OpLE
	OpGE

	OpReadL
	OpReadI
	OpReadF
	OpReadB

	OpWrite

	OpLoad
	OpStore
)

var opNames = [...]string{
	OpHalt:   "HALT",
	OpConst:  "CONST",
	OpDup:    "DUP",
	OpPop:    "POP",
	OpCastI:  "CASTI",
	OpCastF:  "CASTF",
	OpCastS:  "CASTS",
	OpAdd:    "ADD",
	OpSub:    "SUB",
	OpMul:    "MUL",
	OpDiv:    "DIV",
	OpRem:    "REM",
	OpPow:    "POW",
	OpNeg:    "NEG",
	OpConcat: "CONCAT",
	OpNot:    "NOT",
	OpOr:     "OR",
	OpAnd:    "AND",
	OpJmp:    "JMP",
	OpJmpT:   "JMPT",
	OpJmpF:   "JMPF",
	OpEq:     "EQ",
	OpNE:     "NE",
	OpLT:     "LT",
	OpGT:     "GT",
	OpLE:     "LE",
	OpGE:     "GE",
	OpReadL:  "READL",
	OpReadI:  "READI",
	OpReadF:  "READF",
	OpReadB:  "READB",
	OpWrite:  "WRITE",
	OpLoad:   "LOAD",
	OpStore:  "STORE",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("OP(%d)", uint8(op))
}

// IsRead reports whether op blocks until an input line is available.
func (op Opcode) IsRead() bool {
	return op >= OpReadL && op <= OpReadB
}

func (op Opcode) hasArg() bool {
	switch op {
	case OpConst, OpJmp, OpJmpT, OpJmpF, OpLoad, OpStore:
		return true
	}
	return false
}

// Instr is one instruction. Arg is a constant index, a slot or an absolute
// jump target depending on Op.
type Instr struct {
	Op   Opcode
	Arg  int
	Line int
}

// Code is a compiled program.
type Code struct {
	Name   string
	Instrs []Instr
	Consts []Value
	// Slots is the number of variable slots the program needs.
	Slots int
}
