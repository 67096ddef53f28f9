package engine

import (
	"strings"

	"github.com/tidwall/gjson"
)

// OperandKind tells how the right-hand side of a condition is obtained.
type OperandKind int

const (
	// OperandBare is unquoted text used as-is.
	OperandBare OperandKind = iota
	// OperandQuoted is a double-quoted literal; Text holds the inner text.
	OperandQuoted
	// OperandPath is a path expression resolved against the document.
	OperandPath
)

// Operand is the parsed right-hand side of a condition.
type Operand struct {
	Kind OperandKind
	Text string
}

// Condition is an equality predicate of the form `<left> == <right>`,
// parsed once when configuration is loaded.
type Condition struct {
	// Source is the expression as written in the configuration.
	Source string
	// Valid is false when the expression contains no "==". Invalid
	// conditions never hold.
	Valid bool
	Left  string
	Right Operand
}

// ParseCondition splits expr on its first "==" and classifies the operands.
func ParseCondition(expr string) Condition {
	c := Condition{Source: expr}
	left, right, ok := strings.Cut(expr, "==")
	if !ok {
		return c
	}
	c.Valid = true
	c.Left = strings.TrimSpace(left)

	right = strings.TrimSpace(right)
	switch {
	case strings.HasPrefix(right, `"`) && strings.HasSuffix(right, `"`):
		inner := ""
		if len(right) >= 2 {
			inner = right[1 : len(right)-1]
		}
		c.Right = Operand{Kind: OperandQuoted, Text: inner}
	case strings.HasPrefix(right, "$"):
		c.Right = Operand{Kind: OperandPath, Text: right}
	default:
		c.Right = Operand{Kind: OperandBare, Text: right}
	}
	return c
}

// Eval reports whether the condition holds for doc. Both sides are compared
// by their Stringify forms, so `5 == "5"` and `true == "true"` hold.
func (c Condition) Eval(doc gjson.Result) bool {
	if !c.Valid {
		return false
	}
	left := Stringify(Resolve(doc, c.Left))

	var right string
	if c.Right.Kind == OperandPath {
		right = Stringify(Resolve(doc, c.Right.Text))
	} else {
		right = c.Right.Text
	}
	return left == right
}

// Evaluate parses and evaluates expr in one step.
func Evaluate(expr string, doc gjson.Result) bool {
	return ParseCondition(expr).Eval(doc)
}
