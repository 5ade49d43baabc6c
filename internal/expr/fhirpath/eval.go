package fhirpath

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/fhirflat/internal/expr"
)

// evalContext is the state visible to one evaluation step.
type evalContext struct {
	// input is the collection member and function invocations without an
	// explicit target apply to.
	input []any

	// this is the item bound to $this.
	this  any
	index int

	env expr.Env
}

func (c evalContext) withItem(item any, index int) evalContext {
	return evalContext{input: []any{item}, this: item, index: index, env: c.env}
}

func evaluate(n node, ctx evalContext) ([]any, error) {
	switch current := n.(type) {
	case literalNode:
		return []any{current.value}, nil
	case emptyNode:
		return nil, nil
	case thisNode:
		if ctx.this != nil {
			return []any{ctx.this}, nil
		}
		return nil, nil
	case indexVarNode:
		return []any{json.Number(strconv.Itoa(ctx.index))}, nil
	case variableNode:
		return lookupVariable(current.name, ctx.env)
	case memberNode:
		if current.target == nil {
			return navigateRoot(ctx.input, current.name), nil
		}
		target, err := evaluate(current.target, ctx)
		if err != nil {
			return nil, err
		}
		return navigate(target, current.name), nil
	case functionNode:
		input := ctx.input
		if current.target != nil {
			target, err := evaluate(current.target, ctx)
			if err != nil {
				return nil, err
			}
			input = target
		}
		return callFunction(current, input, ctx)
	case indexerNode:
		target, err := evaluate(current.target, ctx)
		if err != nil {
			return nil, err
		}
		idx, err := evaluate(current.index, ctx)
		if err != nil {
			return nil, err
		}
		i, ok, err := singletonInt(idx)
		if err != nil {
			return nil, err
		}
		if !ok || i < 0 || i >= len(target) {
			return nil, nil
		}
		return []any{target[i]}, nil
	case unaryNode:
		operand, err := evaluate(current.operand, ctx)
		if err != nil {
			return nil, err
		}
		if current.op == tokenPlus || len(operand) == 0 {
			return operand, nil
		}
		f, ok := toFloat(operand[0])
		if len(operand) != 1 || !ok {
			return nil, expr.EvaluationError("unary minus requires a single number")
		}
		return []any{numberValue(-f)}, nil
	case binaryNode:
		return evaluateBinary(current, ctx)
	default:
		return nil, expr.EvaluationError("unsupported expression node %T", n)
	}
}

func lookupVariable(name string, env expr.Env) ([]any, error) {
	if env == nil {
		return nil, expr.EvaluationError("undefined variable %%%s", name)
	}
	v, ok := env.Lookup(name)
	if !ok {
		return nil, expr.EvaluationError("undefined variable %%%s", name)
	}
	return flatten(v), nil
}

// navigateRoot resolves the first identifier of a path. An identifier that
// names the resourceType of the input (Patient.name) selects the input
// itself.
func navigateRoot(input []any, name string) []any {
	if isTypeName(name) {
		var matched []any
		for _, item := range input {
			if obj, ok := item.(map[string]any); ok && obj["resourceType"] == name {
				matched = append(matched, item)
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}
	return navigate(input, name)
}

func isTypeName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// navigate selects the named child of every object in input, flattening
// arrays and dropping nulls.
func navigate(input []any, name string) []any {
	var out []any
	for _, item := range input {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, flatten(obj[name])...)
	}
	return out
}

func flatten(v any) []any {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, 0, len(val))
		for _, elem := range val {
			if elem != nil {
				out = append(out, elem)
			}
		}
		return out
	default:
		return []any{val}
	}
}

func evaluateBinary(n binaryNode, ctx evalContext) ([]any, error) {
	left, err := evaluate(n.left, ctx)
	if err != nil {
		return nil, err
	}

	// Boolean operators short-circuit on the left operand.
	switch n.op {
	case "and", "or", "xor", "implies":
		return evaluateLogic(n, left, ctx)
	}

	right, err := evaluate(n.right, ctx)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "|":
		return union(left, right), nil
	case "=", "!=":
		if len(left) == 0 || len(right) == 0 {
			return nil, nil
		}
		eq := collectionsEqual(left, right)
		if n.op == "!=" {
			eq = !eq
		}
		return []any{eq}, nil
	case "<", "<=", ">", ">=":
		return compare(n.op, left, right)
	case "in":
		return membership(left, right)
	case "contains":
		return membership(right, left)
	case "&":
		ls, err := concatOperand(left)
		if err != nil {
			return nil, err
		}
		rs, err := concatOperand(right)
		if err != nil {
			return nil, err
		}
		return []any{ls + rs}, nil
	case "+", "-", "*", "/", "div", "mod":
		return arithmetic(n.op, left, right)
	default:
		return nil, expr.EvaluationError("unsupported operator %q", n.op)
	}
}

// evaluateLogic implements three-valued boolean logic, nil meaning unknown.
func evaluateLogic(n binaryNode, left []any, ctx evalContext) ([]any, error) {
	l, err := singletonBool(left)
	if err != nil {
		return nil, err
	}

	if n.op == "and" && l != nil && !*l {
		return []any{false}, nil
	}
	if n.op == "or" && l != nil && *l {
		return []any{true}, nil
	}
	if n.op == "implies" && l != nil && !*l {
		return []any{true}, nil
	}

	right, err := evaluate(n.right, ctx)
	if err != nil {
		return nil, err
	}
	r, err := singletonBool(right)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "and":
		if r != nil && !*r {
			return []any{false}, nil
		}
		if l == nil || r == nil {
			return nil, nil
		}
		return []any{true}, nil
	case "or":
		if r != nil && *r {
			return []any{true}, nil
		}
		if l == nil || r == nil {
			return nil, nil
		}
		return []any{false}, nil
	case "xor":
		if l == nil || r == nil {
			return nil, nil
		}
		return []any{*l != *r}, nil
	default: // implies
		if r != nil && *r {
			return []any{true}, nil
		}
		if l == nil || r == nil {
			return nil, nil
		}
		return []any{false}, nil
	}
}

// singletonBool converts a collection to a boolean using singleton
// evaluation: empty is unknown, a single boolean is itself, any other single
// item is true.
func singletonBool(values []any) (*bool, error) {
	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		b, ok := values[0].(bool)
		if !ok {
			b = true
		}
		return &b, nil
	default:
		return nil, expr.EvaluationError("expected a single boolean, got %d items", len(values))
	}
}

func singletonInt(values []any) (int, bool, error) {
	if len(values) == 0 {
		return 0, false, nil
	}
	if len(values) > 1 {
		return 0, false, expr.EvaluationError("expected a single integer, got %d items", len(values))
	}
	f, ok := toFloat(values[0])
	if !ok || f != math.Trunc(f) {
		return 0, false, expr.EvaluationError("expected an integer, got %T", values[0])
	}
	return int(f), true, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// numberValue renders a computed number the way decoded documents carry
// numbers.
func numberValue(f float64) json.Number {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return json.Number(strconv.FormatInt(int64(f), 10))
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}

// valuesEqual compares two items; numbers compare numerically.
func valuesEqual(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	if aNum != bNum {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func collectionsEqual(left, right []any) bool {
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if !valuesEqual(left[i], right[i]) {
			return false
		}
	}
	return true
}

func compare(op string, left, right []any) ([]any, error) {
	if len(left) == 0 || len(right) == 0 {
		return nil, nil
	}
	if len(left) > 1 || len(right) > 1 {
		return nil, expr.EvaluationError("operator %s requires single operands", op)
	}

	var cmp int
	lf, lNum := toFloat(left[0])
	rf, rNum := toFloat(right[0])
	ls, lStr := left[0].(string)
	rs, rStr := right[0].(string)
	switch {
	case lNum && rNum:
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	case lStr && rStr:
		cmp = strings.Compare(ls, rs)
	default:
		return nil, expr.EvaluationError("cannot compare %T and %T", left[0], right[0])
	}

	switch op {
	case "<":
		return []any{cmp < 0}, nil
	case "<=":
		return []any{cmp <= 0}, nil
	case ">":
		return []any{cmp > 0}, nil
	default:
		return []any{cmp >= 0}, nil
	}
}

func membership(items, collection []any) ([]any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > 1 {
		return nil, expr.EvaluationError("membership requires a single item, got %d", len(items))
	}
	for _, c := range collection {
		if valuesEqual(items[0], c) {
			return []any{true}, nil
		}
	}
	return []any{false}, nil
}

func union(left, right []any) []any {
	return distinct(append(append([]any{}, left...), right...))
}

func distinct(values []any) []any {
	var out []any
	for _, v := range values {
		seen := false
		for _, o := range out {
			if valuesEqual(v, o) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, v)
		}
	}
	return out
}

func concatOperand(values []any) (string, error) {
	switch len(values) {
	case 0:
		return "", nil
	case 1:
		return stringify(values[0])
	default:
		return "", expr.EvaluationError("operator & requires single operands")
	}
}

func arithmetic(op string, left, right []any) ([]any, error) {
	if len(left) == 0 || len(right) == 0 {
		return nil, nil
	}
	if len(left) > 1 || len(right) > 1 {
		return nil, expr.EvaluationError("operator %s requires single operands", op)
	}

	if op == "+" {
		ls, lStr := left[0].(string)
		rs, rStr := right[0].(string)
		if lStr && rStr {
			return []any{ls + rs}, nil
		}
	}

	lf, lOK := toFloat(left[0])
	rf, rOK := toFloat(right[0])
	if !lOK || !rOK {
		return nil, expr.EvaluationError("operator %s requires numbers, got %T and %T", op, left[0], right[0])
	}

	switch op {
	case "+":
		return []any{numberValue(lf + rf)}, nil
	case "-":
		return []any{numberValue(lf - rf)}, nil
	case "*":
		return []any{numberValue(lf * rf)}, nil
	case "/":
		if rf == 0 {
			return nil, nil
		}
		return []any{numberValue(lf / rf)}, nil
	case "div":
		if rf == 0 {
			return nil, nil
		}
		return []any{numberValue(math.Trunc(lf / rf))}, nil
	default: // mod
		if rf == 0 {
			return nil, nil
		}
		return []any{numberValue(math.Mod(lf, rf))}, nil
	}
}

func stringify(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	default:
		return "", expr.EvaluationError("cannot convert %T to string", v)
	}
}
