// Package lruntime compiles lina programs to a small stack bytecode and runs
// them in bounded slices. A Machine never blocks: when the program reads and
// no line has been delivered it reports machine.AwaitingInput and waits to be
// resumed.
package lruntime

import (
	"fmt"
	"math"
	"strings"

	"github.com/oMatheuss/lina/ast"
	"github.com/oMatheuss/lina/machine"
	"github.com/oMatheuss/lina/parser"
)

// RuntimeError is a fault raised while executing an instruction.
type RuntimeError struct {
	Line int
	Msg  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("erro de execução na linha %d: %s", e.Line, e.Msg)
}

type runState int

const (
	stateEmpty runState = iota
	stateRunning
	stateHalted
	stateFaulted
)

// Build parses and compiles source.
func Build(source string) (*Code, error) {
	prog, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	return Compile(prog)
}

type Machine struct {
	maxSteps int64

	code  *Code
	pc    int
	cur   int
	stack []Value
	slots []Value
	total int64
	state runState
	diag  string

	line     string
	hasInput bool

	buf      strings.Builder
	out      []string
	disposed bool
}

var _ machine.Machine = (*Machine)(nil)

type Option func(*Machine)

// WithMaxSteps faults the run once it has executed n instructions in total.
// Zero means no limit.
func WithMaxSteps(n int64) Option {
	return func(m *Machine) { m.maxSteps = n }
}

func New(opts ...Option) *Machine {
	m := &Machine{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start compiles source and positions the machine at its first instruction.
// Compile errors are reported as Faulted with the diagnostic.
func (m *Machine) Start(source string) machine.Result {
	if m.disposed {
		return machine.Fault(0, "máquina já descartada")
	}
	code, err := Build(source)
	if err != nil {
		m.state = stateFaulted
		m.diag = err.Error()
		return machine.Fault(0, m.diag)
	}
	m.Load(code)
	return machine.More(0)
}

// Load resets the machine to run an already compiled program.
func (m *Machine) Load(code *Code) {
	m.code = code
	m.pc = 0
	m.cur = 0
	m.stack = m.stack[:0]
	m.slots = make([]Value, code.Slots)
	m.total = 0
	m.state = stateRunning
	m.diag = ""
	m.line = ""
	m.hasInput = false
	m.buf.Reset()
	m.out = nil
}

// Steps is the number of instructions executed since Start.
func (m *Machine) Steps() int64 {
	return m.total
}

func (m *Machine) Resume(budget int) (res machine.Result) {
	if m.disposed {
		return machine.Fault(0, "máquina já descartada")
	}
	switch m.state {
	case stateEmpty:
		return machine.Fault(0, "nenhum programa carregado")
	case stateHalted:
		return machine.Done(0)
	case stateFaulted:
		return machine.Fault(0, m.diag)
	}
	if budget <= 0 {
		budget = 1
	}

	steps := 0
	defer m.flush()
	defer func() {
		if r := recover(); r != nil {
			res = m.fault(steps, fmt.Sprintf("falha interna: %v", r))
		}
	}()

	for steps < budget {
		if m.pc < 0 || m.pc >= len(m.code.Instrs) {
			return m.fault(steps, fmt.Sprintf("endereço de instrução inválido %d", m.pc))
		}
		in := m.code.Instrs[m.pc]
		if in.Op == OpHalt {
			m.state = stateHalted
			return machine.Done(steps)
		}
		if in.Op.IsRead() && !m.hasInput {
			return machine.Blocked(steps)
		}
		if m.maxSteps > 0 && m.total >= m.maxSteps {
			return m.fault(steps, fmt.Sprintf("limite de %d instruções excedido", m.maxSteps))
		}
		m.cur = in.Line
		if err := m.exec(in); err != nil {
			return m.fault(steps, err.Error())
		}
		steps++
		m.total++
	}
	return machine.More(steps)
}

func (m *Machine) fault(steps int, msg string) machine.Result {
	m.state = stateFaulted
	m.diag = (&RuntimeError{Line: m.cur, Msg: msg}).Error()
	return machine.Fault(steps, m.diag)
}

func (m *Machine) SubmitInput(line string) {
	m.line = line
	m.hasInput = true
}

func (m *Machine) TakeOutput() []string {
	m.flush()
	out := m.out
	m.out = nil
	return out
}

func (m *Machine) flush() {
	if m.buf.Len() == 0 {
		return
	}
	m.out = append(m.out, m.buf.String())
	m.buf.Reset()
}

func (m *Machine) Dispose() {
	m.disposed = true
	m.code = nil
	m.stack = nil
	m.slots = nil
	m.out = nil
	m.buf.Reset()
}

func (m *Machine) push(v Value) {
	m.stack = append(m.stack, v)
}

func (m *Machine) pop() Value {
	n := len(m.stack)
	if n == 0 {
		panic("pilha vazia")
	}
	v := m.stack[n-1]
	m.stack = m.stack[:n-1]
	return v
}

func (m *Machine) pop2() (Value, Value) {
	b := m.pop()
	a := m.pop()
	return a, b
}

func (m *Machine) exec(in Instr) error {
	m.pc++
	switch in.Op {
	case OpConst:
		m.push(m.code.Consts[in.Arg])
	case OpDup:
		v := m.pop()
		m.push(v)
		m.push(v)
	case OpPop:
		m.pop()

	case OpCastI:
		v := m.pop()
		switch v.kind {
		case ast.Inteiro:
			m.push(v)
		case ast.Real:
			m.push(Int(int64(v.f)))
		case ast.Texto:
			n, ok := parseIntInput(v.s)
			if !ok {
				return fmt.Errorf("não é possível converter %q em inteiro", v.s)
			}
			m.push(Int(n))
		default:
			return fmt.Errorf("não é possível converter %s em inteiro", v.kind)
		}
	case OpCastF:
		v := m.pop()
		switch v.kind {
		case ast.Inteiro, ast.Real:
			m.push(Real(v.Float64()))
		case ast.Texto:
			f, ok := parseRealInput(v.s)
			if !ok {
				return fmt.Errorf("não é possível converter %q em real", v.s)
			}
			m.push(Real(f))
		default:
			return fmt.Errorf("não é possível converter %s em real", v.kind)
		}
	case OpCastS:
		m.push(Text(m.pop().String()))

	case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpPow:
		a, b := m.pop2()
		v, err := arith(in.Op, a, b)
		if err != nil {
			return err
		}
		m.push(v)
	case OpNeg:
		v := m.pop()
		if v.kind == ast.Real {
			m.push(Real(-v.f))
		} else {
			m.push(Int(-v.i))
		}
	case OpConcat:
		a, b := m.pop2()
		m.push(Text(a.String() + b.String()))

	case OpNot:
		m.push(Bool(!m.pop().Bool()))
	case OpAnd:
		a, b := m.pop2()
		m.push(Bool(a.Bool() && b.Bool()))
	case OpOr:
		a, b := m.pop2()
		m.push(Bool(a.Bool() || b.Bool()))

	case OpJmp:
		m.pc = in.Arg
	case OpJmpT:
		if m.pop().Bool() {
			m.pc = in.Arg
		}
	case OpJmpF:
		if !m.pop().Bool() {
			m.pc = in.Arg
		}

	case OpEq:
		a, b := m.pop2()
		m.push(Bool(a.Equal(b)))
	case OpNE:
		a, b := m.pop2()
		m.push(Bool(!a.Equal(b)))
	case OpLT, OpGT, OpLE, OpGE:
		a, b := m.pop2()
		c := compare(a, b)
		var r bool
		switch in.Op {
		case OpLT:
			r = c < 0
		case OpGT:
			r = c > 0
		case OpLE:
			r = c <= 0
		default:
			r = c >= 0
		}
		m.push(Bool(r))

	case OpReadL, OpReadI, OpReadF, OpReadB:
		raw := m.line
		m.line = ""
		m.hasInput = false
		v, err := readValue(in.Op, raw)
		if err != nil {
			return err
		}
		m.push(v)

	case OpWrite:
		m.buf.WriteString(m.pop().String())

	case OpLoad:
		m.push(m.slots[in.Arg])
	case OpStore:
		m.slots[in.Arg] = m.pop()

	default:
		return fmt.Errorf("instrução desconhecida %s", in.Op)
	}
	return nil
}

func readValue(op Opcode, raw string) (Value, error) {
	switch op {
	case OpReadI:
		n, ok := parseIntInput(raw)
		if !ok {
			return Value{}, fmt.Errorf("entrada inválida para inteiro: %q", raw)
		}
		return Int(n), nil
	case OpReadF:
		f, ok := parseRealInput(raw)
		if !ok {
			return Value{}, fmt.Errorf("entrada inválida para real: %q", raw)
		}
		return Real(f), nil
	case OpReadB:
		b, ok := parseBoolInput(raw)
		if !ok {
			return Value{}, fmt.Errorf("entrada inválida para booleano: %q", raw)
		}
		return Bool(b), nil
	default:
		return Text(raw), nil
	}
}

func arith(op Opcode, a, b Value) (Value, error) {
	if a.kind == ast.Inteiro && b.kind == ast.Inteiro {
		x, y := a.i, b.i
		switch op {
		case OpAdd:
			return Int(x + y), nil
		case OpSub:
			return Int(x - y), nil
		case OpMul:
			return Int(x * y), nil
		case OpDiv, OpRem:
			if y == 0 {
				return Value{}, fmt.Errorf("divisão por zero")
			}
			if op == OpDiv {
				return Int(x / y), nil
			}
			return Int(x % y), nil
		case OpPow:
			if y < 0 {
				return Value{}, fmt.Errorf("expoente negativo %d para base inteira", y)
			}
			return Int(ipow(x, y)), nil
		}
	}
	x, y := a.Float64(), b.Float64()
	switch op {
	case OpAdd:
		return Real(x + y), nil
	case OpSub:
		return Real(x - y), nil
	case OpMul:
		return Real(x * y), nil
	case OpDiv:
		if y == 0 {
			return Value{}, fmt.Errorf("divisão por zero")
		}
		return Real(x / y), nil
	case OpRem:
		if y == 0 {
			return Value{}, fmt.Errorf("divisão por zero")
		}
		return Real(math.Mod(x, y)), nil
	case OpPow:
		return Real(math.Pow(x, y)), nil
	}
	return Value{}, fmt.Errorf("operação %s inválida", op)
}

func ipow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func compare(a, b Value) int {
	if a.kind == ast.Texto && b.kind == ast.Texto {
		return strings.Compare(a.s, b.s)
	}
	if a.kind == ast.Inteiro && b.kind == ast.Inteiro {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		}
		return 0
	}
	x, y := a.Float64(), b.Float64()
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
