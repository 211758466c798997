package lina

import (
	"context"

	"github.com/oMatheuss/lina/ast"
	"github.com/oMatheuss/lina/machine"
	"github.com/oMatheuss/lina/parser"
	lruntime "github.com/oMatheuss/lina/runtime"
)

// Compile parses and type-checks source and returns its bytecode.
func Compile(source string) (*lruntime.Code, error) {
	return lruntime.Build(source)
}

// Parse only returns the syntax tree, for tooling.
func Parse(source string) (*ast.Program, error) {
	return parser.Parse(source)
}

func NewMachine(opts ...lruntime.Option) *lruntime.Machine {
	return lruntime.New(opts...)
}

// Factory builds machines for a session.Manager. Construction is cheap; the
// context is only checked so a cancelled session never gets a machine.
func Factory(opts ...lruntime.Option) machine.Factory {
	return func(ctx context.Context) (machine.Machine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return lruntime.New(opts...), nil
	}
}
