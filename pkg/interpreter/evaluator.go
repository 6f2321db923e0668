package interpreter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rendis/wfscript/internal/parser"
	"github.com/rendis/wfscript/internal/security"
	"github.com/rendis/wfscript/pkg/schema"
	"github.com/rendis/wfscript/pkg/sdk"
)

// MaxStringBytes caps every string the evaluator builds.
const MaxStringBytes = 1 << 24

// unsupportedSyntax names the constructs the language parses but refuses.
var unsupportedSyntax = map[string]string{
	"ArrowFunctionExpression":  "arrow functions",
	"FunctionExpression":       "function expressions",
	"FunctionDeclaration":      "function declarations",
	"ClassDeclaration":         "classes",
	"ForStatement":             "for loops",
	"ForInStatement":           "for...in loops",
	"ForOfStatement":           "for...of loops",
	"WhileStatement":           "while loops",
	"DoWhileStatement":         "do...while loops",
	"TryStatement":             "try/catch",
	"ThrowStatement":           "throw statements",
	"ReturnStatement":          "return statements",
	"IfStatement":              "if statements",
	"SwitchStatement":          "switch statements",
	"BlockStatement":           "block statements",
	"BreakStatement":           "break statements",
	"ContinueStatement":        "continue statements",
	"NewExpression":            "'new' expressions",
	"UpdateExpression":         "increment and decrement operators",
	"SequenceExpression":       "comma expressions",
	"ThisExpression":           "'this'",
	"TaggedTemplateExpression": "tagged templates",
	"ExportNamedDeclaration":   "named exports",
	"ImportDeclaration":        "import declarations",
	"ImportExpression":         "dynamic import",
	"AwaitExpression":          "await",
	"SpreadElement":            "spread outside of array, object or call arguments",
}

type evaluator struct {
	ctx    context.Context
	src    string
	scope  *Scope
	policy *security.Policy

	depth    int
	maxDepth int
	steps    int
	maxSteps int
	strBytes int
	maxStr   int
}

func newEvaluator(ctx context.Context, prog *parser.Program, scope *Scope, cfg *config) *evaluator {
	return &evaluator{
		ctx:      ctx,
		src:      prog.Source,
		scope:    scope,
		policy:   cfg.policy,
		maxDepth: cfg.maxDepth,
		maxSteps: cfg.maxSteps,
		maxStr:   cfg.maxStrTotal,
	}
}

// run executes every top-level statement in order and returns the value of
// the export default declaration.
func (e *evaluator) run(prog *parser.Program) (any, error) {
	var (
		result    any
		hasResult bool
	)
	for _, stmt := range prog.Body {
		if err := e.visit(stmt); err != nil {
			return nil, err
		}
		switch s := stmt.(type) {
		case *parser.VariableDeclaration:
			if err := e.declare(s); err != nil {
				return nil, err
			}
		case *parser.ExportDefaultDeclaration:
			expr, ok := s.Declaration.(parser.Expression)
			if !ok || isDeclaration(s.Declaration) {
				return nil, unsupported(s.Declaration)
			}
			v, err := e.eval(expr)
			if err != nil {
				return nil, err
			}
			result, hasResult = v, true
		case *parser.ExpressionStatement:
			if _, err := e.eval(s.Expression); err != nil {
				return nil, err
			}
		case *parser.EmptyStatement:
		default:
			return nil, unsupported(stmt)
		}
	}
	if !hasResult {
		return nil, schema.NewError(schema.ErrCodeSyntax,
			"missing export default: the program must end with `export default <workflow>`")
	}
	return result, nil
}

func isDeclaration(n parser.Node) bool {
	switch n.(type) {
	case *parser.FunctionDeclaration, *parser.ClassDeclaration:
		return true
	}
	return false
}

func (e *evaluator) declare(decl *parser.VariableDeclaration) error {
	if decl.Kind != "const" {
		return schema.NewErrorf(schema.ErrCodeUnsupportedNode,
			"unsupported syntax: '%s' declarations; use const", decl.Kind).
			WithLocation(decl.Pos()).
			WithDetails(map[string]any{"node": decl.Type(), "kind": decl.Kind})
	}
	for _, d := range decl.Declarations {
		id, ok := d.ID.(*parser.Identifier)
		if !ok {
			return schema.NewError(schema.ErrCodeUnsupportedNode, "unsupported syntax: destructuring declarations").
				WithLocation(d.ID.Pos()).
				WithDetails(map[string]any{"node": d.ID.Type()})
		}
		// The name is checked before the initializer runs, so a reserved
		// name never reaches a capability call.
		if err := e.scope.checkDeclare(id.Name); err != nil {
			return locate(err, id)
		}
		v, err := e.eval(d.Init)
		if err != nil {
			return err
		}
		if err := e.scope.declare(id.Name, v); err != nil {
			return locate(err, id)
		}
	}
	return nil
}

// visit charges one step and checks for cancellation.
func (e *evaluator) visit(n parser.Node) error {
	e.steps++
	if e.steps > e.maxSteps {
		return schema.NewErrorf(schema.ErrCodeLimitExceeded, "evaluation step limit of %d exceeded", e.maxSteps).
			WithLocation(n.Pos()).
			WithDetails(map[string]any{"max_steps": e.maxSteps})
	}
	if err := e.ctx.Err(); err != nil {
		return schema.NewErrorf(schema.ErrCodeCancelled, "evaluation cancelled: %v", err).
			WithLocation(n.Pos()).
			WithCause(err)
	}
	return nil
}

func (e *evaluator) eval(expr parser.Expression) (any, error) {
	if err := e.visit(expr); err != nil {
		return nil, err
	}
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > e.maxDepth {
		return nil, schema.NewErrorf(schema.ErrCodeLimitExceeded, "maximum evaluation depth of %d exceeded", e.maxDepth).
			WithLocation(expr.Pos()).
			WithDetails(map[string]any{"max_depth": e.maxDepth})
	}

	switch n := expr.(type) {
	case *parser.Identifier:
		v, err := e.scope.resolve(n.Name)
		if err != nil {
			return nil, locate(err, n)
		}
		return v, nil
	case *parser.NumberLiteral:
		return n.Value, nil
	case *parser.StringLiteral:
		return n.Value, nil
	case *parser.BooleanLiteral:
		return n.Value, nil
	case *parser.NullLiteral:
		return nil, nil
	case *parser.TemplateLiteral:
		return e.evalTemplate(n)
	case *parser.ObjectExpression:
		return e.evalObject(n)
	case *parser.ArrayExpression:
		return e.evalArray(n)
	case *parser.UnaryExpression:
		return e.evalUnary(n)
	case *parser.BinaryExpression:
		return e.evalBinary(n)
	case *parser.LogicalExpression:
		return e.evalLogical(n)
	case *parser.ConditionalExpression:
		test, err := e.eval(n.Test)
		if err != nil {
			return nil, err
		}
		if toBoolean(test) {
			return e.eval(n.Consequent)
		}
		return e.eval(n.Alternate)
	case *parser.CallExpression:
		return e.evalCall(n)
	case *parser.MemberExpression:
		return e.evalMember(n)
	case *parser.AssignmentExpression:
		return e.evalAssignment(n)

	case *parser.ArrowFunctionExpression, *parser.FunctionExpression, *parser.ClassDeclaration,
		*parser.NewExpression, *parser.UpdateExpression, *parser.SequenceExpression,
		*parser.ThisExpression, *parser.TaggedTemplateExpression, *parser.ImportExpression,
		*parser.AwaitExpression, *parser.SpreadElement:
		return nil, unsupported(n)
	}
	return nil, unsupported(expr)
}

func unsupported(n parser.Node) error {
	what, ok := unsupportedSyntax[n.Type()]
	if !ok {
		what = n.Type()
	}
	return schema.NewErrorf(schema.ErrCodeUnsupportedNode, "unsupported syntax: %s", what).
		WithLocation(n.Pos()).
		WithDetails(map[string]any{"node": n.Type()})
}

// locate attaches n's location to err when it has none yet.
func locate(err error, n parser.Node) error {
	var wfErr *schema.Error
	if errors.As(err, &wfErr) && wfErr.Location == nil {
		wfErr.WithLocation(n.Pos())
	}
	return err
}

func evaluationErrorf(n parser.Node, format string, args ...any) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeEvaluation, format, args...).WithLocation(n.Pos())
}

// chargeString enforces the per-string cap and counts s against the
// interpretation's string budget.
func (e *evaluator) chargeString(s string, n parser.Node) error {
	if len(s) > MaxStringBytes {
		return schema.NewErrorf(schema.ErrCodeLimitExceeded, "string length exceeds %d bytes", MaxStringBytes).
			WithLocation(n.Pos())
	}
	e.strBytes += len(s)
	if e.strBytes > e.maxStr {
		return schema.NewErrorf(schema.ErrCodeLimitExceeded, "strings built exceed %d bytes in total", e.maxStr).
			WithLocation(n.Pos()).
			WithDetails(map[string]any{"max_string_total": e.maxStr})
	}
	return nil
}

// --- literals ---

func (e *evaluator) evalTemplate(n *parser.TemplateLiteral) (any, error) {
	var sb strings.Builder
	for i, quasi := range n.Quasis {
		sb.WriteString(quasi)
		if i >= len(n.Expressions) {
			continue
		}
		expr := n.Expressions[i]
		if isRuntimeReference(expr) {
			sb.WriteString(passthrough(e.src, expr))
			continue
		}
		v, err := e.eval(expr)
		if err != nil {
			return nil, err
		}
		sb.WriteString(toString(v))
		if sb.Len() > MaxStringBytes {
			return nil, e.chargeString(sb.String(), n)
		}
	}
	out := sb.String()
	if err := e.chargeString(out, n); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *evaluator) evalObject(n *parser.ObjectExpression) (any, error) {
	obj := sdk.NewObject()
	for _, entry := range n.Properties {
		switch p := entry.(type) {
		case *parser.SpreadElement:
			v, err := e.eval(p.Argument)
			if err != nil {
				return nil, err
			}
			if err := spreadIntoObject(obj, v, p); err != nil {
				return nil, err
			}
		case *parser.Property:
			if p.Method || p.Kind != "init" {
				return nil, schema.NewError(schema.ErrCodeUnsupportedNode, "unsupported syntax: object methods and accessors").
					WithLocation(p.Pos()).
					WithDetails(map[string]any{"node": p.Type(), "kind": p.Kind})
			}
			key, err := e.objectKey(p)
			if err != nil {
				return nil, err
			}
			v, err := e.eval(p.Value)
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		default:
			return nil, unsupported(entry)
		}
	}
	return obj, nil
}

func (e *evaluator) objectKey(p *parser.Property) (string, error) {
	if p.Computed {
		return "", e.policy.ComputedKeyError().WithLocation(p.Key.Pos())
	}
	var key string
	switch k := p.Key.(type) {
	case *parser.Identifier:
		key = k.Name
	case *parser.StringLiteral:
		key = k.Value
	case *parser.NumberLiteral:
		key = formatNumber(k.Value)
	default:
		return "", e.policy.ComputedKeyError().WithLocation(p.Key.Pos())
	}
	if err := e.policy.CheckProperty(key); err != nil {
		return "", locate(err, p.Key)
	}
	return key, nil
}

func spreadIntoObject(obj *sdk.Object, v any, n parser.Node) error {
	switch val := v.(type) {
	case nil, sdk.UndefinedType, bool, float64:
	case *sdk.Object:
		for pair := val.Oldest(); pair != nil; pair = pair.Next() {
			obj.Set(pair.Key, pair.Value)
		}
	case []any:
		for i, item := range val {
			obj.Set(formatNumber(float64(i)), item)
		}
	case string:
		i := 0
		for _, r := range val {
			obj.Set(formatNumber(float64(i)), string(r))
			i++
		}
	default:
		return evaluationErrorf(n, "cannot spread %s into an object", typeName(v))
	}
	return nil
}

func (e *evaluator) evalArray(n *parser.ArrayExpression) (any, error) {
	// Capacity of at least one gives every array its own backing store, which
	// identity comparison relies on.
	out := make([]any, 0, len(n.Elements)+1)
	for _, el := range n.Elements {
		if el == nil {
			out = append(out, sdk.Undefined)
			continue
		}
		if spread, ok := el.(*parser.SpreadElement); ok {
			items, err := e.spreadItems(spread)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
			continue
		}
		v, err := e.eval(el)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// spreadItems evaluates `...x` in an iterable position.
func (e *evaluator) spreadItems(n *parser.SpreadElement) ([]any, error) {
	if err := e.visit(n); err != nil {
		return nil, err
	}
	v, err := e.eval(n.Argument)
	if err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case []any:
		return val, nil
	case string:
		items := make([]any, 0, len(val))
		for _, r := range val {
			items = append(items, string(r))
		}
		return items, nil
	}
	return nil, evaluationErrorf(n, "%s is not iterable", typeName(v))
}

// --- operators ---

func (e *evaluator) evalUnary(n *parser.UnaryExpression) (any, error) {
	switch n.Operator {
	case "-", "+", "!":
	default:
		if id, ok := n.Argument.(*parser.Identifier); ok {
			if err := e.policy.CheckIdentifier(id.Name); err != nil {
				return nil, locate(err, id)
			}
		}
		return nil, unsupportedOperator(n, n.Operator)
	}
	v, err := e.eval(n.Argument)
	if err != nil {
		return nil, err
	}
	switch n.Operator {
	case "-":
		return -toNumber(v), nil
	case "+":
		return toNumber(v), nil
	}
	return !toBoolean(v), nil
}

func unsupportedOperator(n parser.Node, op string) error {
	return schema.NewErrorf(schema.ErrCodeUnsupportedNode, "unsupported syntax: operator '%s'", op).
		WithLocation(n.Pos()).
		WithDetails(map[string]any{"node": n.Type(), "operator": op})
}

func (e *evaluator) evalBinary(n *parser.BinaryExpression) (any, error) {
	switch n.Operator {
	case "+", "-", "*", "/", "%", "<", ">", "<=", ">=", "===", "!==":
	default:
		return nil, unsupportedOperator(n, n.Operator)
	}
	left, err := e.eval(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Operator {
	case "+":
		sum := add(left, right)
		if s, ok := sum.(string); ok {
			if err := e.chargeString(s, n); err != nil {
				return nil, err
			}
		}
		return sum, nil
	case "-", "*", "/", "%":
		return arithmetic(n.Operator, left, right), nil
	case "===":
		return strictEquals(left, right), nil
	case "!==":
		return !strictEquals(left, right), nil
	}
	return compare(n.Operator, left, right), nil
}

func (e *evaluator) evalLogical(n *parser.LogicalExpression) (any, error) {
	left, err := e.eval(n.Left)
	if err != nil {
		return nil, err
	}
	switch n.Operator {
	case "&&":
		if !toBoolean(left) {
			return left, nil
		}
	case "||":
		if toBoolean(left) {
			return left, nil
		}
	case "??":
		if !sdk.IsNullish(left) {
			return left, nil
		}
	default:
		return nil, unsupportedOperator(n, n.Operator)
	}
	return e.eval(n.Right)
}

// --- member access ---

// propertyKey returns the static key of a member expression. Only names,
// string literals and non-negative integer literals are static.
func (e *evaluator) propertyKey(m *parser.MemberExpression) (string, error) {
	var key string
	switch k := m.Property.(type) {
	case *parser.Identifier:
		if m.Computed {
			return "", e.policy.ComputedKeyError().WithLocation(k.Pos())
		}
		key = k.Name
	case *parser.StringLiteral:
		key = k.Value
	case *parser.NumberLiteral:
		if k.Value < 0 || k.Value != math.Trunc(k.Value) || math.IsInf(k.Value, 0) {
			return "", e.policy.ComputedKeyError().WithLocation(k.Pos())
		}
		key = formatNumber(k.Value)
	default:
		return "", e.policy.ComputedKeyError().WithLocation(m.Property.Pos())
	}
	if err := e.policy.CheckProperty(key); err != nil {
		return "", locate(err, m.Property)
	}
	return key, nil
}

func (e *evaluator) evalMember(n *parser.MemberExpression) (any, error) {
	if n.Optional {
		return nil, schema.NewError(schema.ErrCodeUnsupportedNode, "unsupported syntax: optional chaining").
			WithLocation(n.Pos()).
			WithDetails(map[string]any{"node": n.Type()})
	}
	key, err := e.propertyKey(n)
	if err != nil {
		return nil, err
	}
	obj, err := e.eval(n.Object)
	if err != nil {
		return nil, err
	}
	return getProperty(obj, key, n)
}

func getProperty(obj any, key string, n parser.Node) (any, error) {
	switch val := obj.(type) {
	case nil, sdk.UndefinedType:
		return nil, evaluationErrorf(n, "cannot read properties of %s (reading '%s')", typeName(obj), key)
	case *sdk.Object:
		return sdk.Lookup(val, key), nil
	case []any:
		if key == "length" {
			return float64(len(val)), nil
		}
		if i, ok := arrayIndex(key); ok && i < len(val) {
			return val[i], nil
		}
		return sdk.Undefined, nil
	case string:
		if key == "length" {
			return float64(utf16Length(val)), nil
		}
		if i, ok := arrayIndex(key); ok {
			if ch, ok := charAt(val, i); ok {
				return ch, nil
			}
		}
		return sdk.Undefined, nil
	case sdk.PropertyGetter:
		if v, ok := val.GetProperty(key); ok {
			return sdk.FromNative(v), nil
		}
	}
	return sdk.Undefined, nil
}

func (e *evaluator) evalAssignment(n *parser.AssignmentExpression) (any, error) {
	if n.Operator != "=" {
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedNode, "unsupported syntax: compound assignment '%s'", n.Operator).
			WithLocation(n.Pos()).
			WithDetails(map[string]any{"node": n.Type(), "operator": n.Operator})
	}
	var target *parser.MemberExpression
	switch left := n.Left.(type) {
	case *parser.MemberExpression:
		target = left
	case *parser.Identifier:
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedNode,
			"unsupported syntax: reassignment of %q; declare a new const instead", left.Name).
			WithLocation(n.Pos()).
			WithDetails(map[string]any{"node": n.Type(), "identifier": left.Name})
	default:
		return nil, schema.NewError(schema.ErrCodeUnsupportedNode, "unsupported syntax: destructuring assignment").
			WithLocation(n.Pos()).
			WithDetails(map[string]any{"node": n.Type()})
	}
	if target.Optional {
		return nil, schema.NewError(schema.ErrCodeUnsupportedNode, "unsupported syntax: optional chaining").
			WithLocation(target.Pos()).
			WithDetails(map[string]any{"node": target.Type()})
	}

	key, err := e.propertyKey(target)
	if err != nil {
		return nil, err
	}
	obj, err := e.eval(target.Object)
	if err != nil {
		return nil, err
	}
	value, err := e.eval(n.Right)
	if err != nil {
		return nil, err
	}
	if err := setProperty(obj, key, value, target); err != nil {
		return nil, err
	}
	return value, nil
}

func setProperty(obj any, key string, value any, n parser.Node) error {
	switch val := obj.(type) {
	case nil, sdk.UndefinedType:
		return evaluationErrorf(n, "cannot set properties of %s (setting '%s')", typeName(obj), key)
	case *sdk.Object:
		val.Set(key, value)
		return nil
	case []any:
		i, ok := arrayIndex(key)
		if !ok {
			return evaluationErrorf(n, "cannot set property '%s' on an array", key)
		}
		if i >= len(val) {
			return evaluationErrorf(n, "array index %d out of range (length %d)", i, len(val))
		}
		val[i] = value
		return nil
	case sdk.PropertySetter:
		if err := val.SetProperty(key, sdk.ToNative(value)); err != nil {
			return capabilityError(fmt.Sprintf("set %s", key), err).WithLocation(n.Pos())
		}
		return nil
	}
	return evaluationErrorf(n, "cannot create property '%s' on %s", key, typeName(obj))
}

// --- calls ---

func (e *evaluator) evalCall(n *parser.CallExpression) (any, error) {
	if n.Optional {
		return nil, schema.NewError(schema.ErrCodeUnsupportedNode, "unsupported syntax: optional call").
			WithLocation(n.Pos()).
			WithDetails(map[string]any{"node": n.Type()})
	}
	switch callee := n.Callee.(type) {
	case *parser.Identifier:
		fn, err := e.scope.resolveCallee(callee.Name)
		if err != nil {
			return nil, locate(err, callee)
		}
		args, err := e.evalArguments(n.Arguments)
		if err != nil {
			return nil, err
		}
		v, err := invoke(callee.Name, func() (any, error) { return fn(args) })
		if err != nil {
			return nil, locate(err, n)
		}
		return v, nil
	case *parser.MemberExpression:
		return e.evalMethodCall(n, callee)
	}

	// Anything else is evaluated for its errors and then rejected: no value
	// in this language is callable.
	v, err := e.eval(n.Callee)
	if err != nil {
		return nil, err
	}
	return nil, evaluationErrorf(n, "%s is not a function", typeName(v))
}

func (e *evaluator) evalMethodCall(n *parser.CallExpression, callee *parser.MemberExpression) (any, error) {
	if callee.Optional {
		return nil, schema.NewError(schema.ErrCodeUnsupportedNode, "unsupported syntax: optional chaining").
			WithLocation(callee.Pos()).
			WithDetails(map[string]any{"node": callee.Type()})
	}
	method, err := e.propertyKey(callee)
	if err != nil {
		return nil, err
	}

	var receiver any
	if id, ok := callee.Object.(*parser.Identifier); ok && id.Name == "JSON" {
		if err := e.visit(id); err != nil {
			return nil, err
		}
		receiver = jsonNamespace{}
	} else {
		receiver, err = e.eval(callee.Object)
		if err != nil {
			return nil, err
		}
	}
	if sdk.IsNullish(receiver) {
		return nil, evaluationErrorf(callee, "cannot read properties of %s (reading '%s')", typeName(receiver), method)
	}
	if err := e.policy.CheckMethod(kindOf(receiver), method); err != nil {
		return nil, locate(err, callee.Property)
	}

	args, err := e.evalArguments(n.Arguments)
	if err != nil {
		return nil, err
	}

	var v any
	switch recv := receiver.(type) {
	case string:
		v, err = callStringMethod(recv, method, args)
	case jsonNamespace:
		v, err = callJSONMethod(method, args)
	case sdk.MethodCaller:
		v, err = invoke(recv.Kind()+"."+method, func() (any, error) { return recv.CallMethod(method, args) })
	default:
		err = schema.NewErrorf(schema.ErrCodeEvaluation, "%s.%s is not a function", typeName(receiver), method)
	}
	if err != nil {
		return nil, locate(err, n)
	}
	if s, ok := v.(string); ok {
		if err := e.chargeString(s, n); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (e *evaluator) evalArguments(exprs []parser.Expression) ([]any, error) {
	args := make([]any, 0, len(exprs))
	for _, arg := range exprs {
		if spread, ok := arg.(*parser.SpreadElement); ok {
			items, err := e.spreadItems(spread)
			if err != nil {
				return nil, err
			}
			args = append(args, items...)
			continue
		}
		v, err := e.eval(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

// invoke runs host code, turning errors and panics into capability errors.
func invoke(name string, call func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = capabilityError(name, fmt.Errorf("panic: %v", r)).
				WithDetails(map[string]any{"capability": name, "panic": fmt.Sprint(r)})
		}
	}()
	v, err := call()
	if err != nil {
		return nil, capabilityError(name, err)
	}
	return sdk.FromNative(v), nil
}

func capabilityError(name string, err error) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeCapability, "%s: %v", name, err).
		WithCause(err).
		WithDetails(map[string]any{"capability": name})
}

func callStringMethod(s, method string, args []any) (any, error) {
	if method != "repeat" {
		return nil, schema.NewErrorf(schema.ErrCodeEvaluation, "string method %q is not implemented", method)
	}
	count := 0.0
	if len(args) > 0 {
		count = toNumber(args[0])
	}
	if math.IsNaN(count) {
		count = 0
	}
	count = math.Trunc(count)
	if count < 0 || math.IsInf(count, 0) {
		return nil, schema.NewErrorf(schema.ErrCodeEvaluation, "invalid count value: %s", formatNumber(count))
	}
	if s == "" || count == 0 {
		return "", nil
	}
	if float64(len(s))*count > MaxStringBytes {
		return nil, schema.NewErrorf(schema.ErrCodeLimitExceeded, "string length exceeds %d bytes", MaxStringBytes)
	}
	return strings.Repeat(s, int(count)), nil
}

func callJSONMethod(method string, args []any) (any, error) {
	if method != "stringify" {
		return nil, schema.NewErrorf(schema.ErrCodeEvaluation, "JSON method %q is not implemented", method)
	}
	arg := func(i int) any {
		if i < len(args) {
			return args[i]
		}
		return sdk.Undefined
	}
	out, ok, err := Stringify(arg(0), arg(1), arg(2))
	if err != nil {
		return nil, err
	}
	if !ok {
		return sdk.Undefined, nil
	}
	if len(out) > MaxStringBytes {
		return nil, schema.NewErrorf(schema.ErrCodeLimitExceeded, "string length exceeds %d bytes", MaxStringBytes)
	}
	return out, nil
}
