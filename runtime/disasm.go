package lruntime

import (
	"bufio"
	"fmt"
	"io"
)

// Disassemble writes one instruction per line: address, opcode, operand and,
// for constants, the literal value.
func (c *Code) Disassemble(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "; programa %s: %d instruções, %d constantes, %d variáveis\n",
		c.Name, len(c.Instrs), len(c.Consts), c.Slots)
	line := -1
	for addr, in := range c.Instrs {
		if in.Line != line && in.Line > 0 {
			line = in.Line
			fmt.Fprintf(bw, "; linha %d\n", line)
		}
		switch {
		case in.Op == OpConst:
			fmt.Fprintf(bw, "%04d\t%s\t%#02x\t%s\n", addr, in.Op, in.Arg, c.Consts[in.Arg].Literal())
		case in.Op == OpLoad || in.Op == OpStore:
			fmt.Fprintf(bw, "%04d\t%s\t%#02x\n", addr, in.Op, in.Arg)
		case in.Op.hasArg():
			fmt.Fprintf(bw, "%04d\t%s\t%04d\n", addr, in.Op, in.Arg)
		default:
			fmt.Fprintf(bw, "%04d\t%s\n", addr, in.Op)
		}
	}
	return bw.Flush()
}
