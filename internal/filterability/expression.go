package filterability

import (
	"strings"
)

// Op is the node type of an Expression.
type Op int

const (
	OpPath Op = iota
	OpNot
	OpOr
)

// Expression is a boolean expression over model paths, evaluated by the
// caller against instance data.
type Expression struct {
	Op       Op
	Path     string
	Operands []Expression
}

// PathInModel references the boolean value at path.
func PathInModel(path string) Expression {
	return Expression{Op: OpPath, Path: path}
}

// Not negates e.
func Not(e Expression) Expression {
	return Expression{Op: OpNot, Operands: []Expression{e}}
}

// Or is true when any operand is true.
func Or(operands ...Expression) Expression {
	return Expression{Op: OpOr, Operands: operands}
}

// Paths returns the model paths referenced by the expression in order.
func (e Expression) Paths() []string {
	if e.Op == OpPath {
		return []string{e.Path}
	}
	var out []string
	for _, operand := range e.Operands {
		out = append(out, operand.Paths()...)
	}
	return out
}

// Evaluate computes the expression with lookup supplying path values.
func (e Expression) Evaluate(lookup func(path string) bool) bool {
	switch e.Op {
	case OpPath:
		return lookup(e.Path)
	case OpNot:
		return len(e.Operands) == 1 && !e.Operands[0].Evaluate(lookup)
	case OpOr:
		for _, operand := range e.Operands {
			if operand.Evaluate(lookup) {
				return true
			}
		}
	}
	return false
}

// String renders the expression as a UI5 expression binding, e.g. "{= !%{Flag} }".
func (e Expression) String() string {
	return "{= " + e.render() + " }"
}

func (e Expression) render() string {
	switch e.Op {
	case OpPath:
		return "%{" + e.Path + "}"
	case OpNot:
		if len(e.Operands) != 1 {
			return "false"
		}
		inner := e.Operands[0]
		if inner.Op == OpOr && len(inner.Operands) > 1 {
			return "!(" + inner.render() + ")"
		}
		return "!" + inner.render()
	case OpOr:
		parts := make([]string, 0, len(e.Operands))
		for _, operand := range e.Operands {
			parts = append(parts, operand.render())
		}
		return strings.Join(parts, " || ")
	}
	return ""
}
