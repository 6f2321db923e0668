package interpreter

import (
	"strings"

	"github.com/rendis/wfscript/internal/parser"
)

// RuntimeVariablePrefix marks identifiers resolved later by the workflow
// execution engine ($json, $input, $node, ...).
const RuntimeVariablePrefix = "$"

// rootIdentifier walks to the leftmost operand of an expression chain and
// returns its identifier, if there is one.
func rootIdentifier(expr parser.Expression) (*parser.Identifier, bool) {
	for {
		switch n := expr.(type) {
		case *parser.Identifier:
			return n, true
		case *parser.MemberExpression:
			expr = n.Object
		case *parser.CallExpression:
			expr = n.Callee
		case *parser.BinaryExpression:
			expr = n.Left
		case *parser.LogicalExpression:
			expr = n.Left
		case *parser.ConditionalExpression:
			expr = n.Test
		case *parser.TaggedTemplateExpression:
			expr = n.Tag
		default:
			return nil, false
		}
	}
}

// isRuntimeReference reports whether an interpolation must be passed through
// untouched. The check is syntactic and runs before evaluation.
func isRuntimeReference(expr parser.Expression) bool {
	id, ok := rootIdentifier(expr)
	return ok && strings.HasPrefix(id.Name, RuntimeVariablePrefix)
}

// passthrough reproduces the interpolation exactly as written.
func passthrough(src string, expr parser.Expression) string {
	start, end := expr.Offsets()
	return "${" + src[start:end] + "}"
}
