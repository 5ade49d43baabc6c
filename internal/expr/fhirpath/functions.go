package fhirpath

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/roach88/fhirflat/internal/expr"
)

// function evaluates a FHIRPath function. input is the collection the
// function is invoked on; arguments are unevaluated so iterating functions
// can bind $this per item.
type function func(fn functionNode, input []any, ctx evalContext) ([]any, error)

var functions map[string]function

func init() {
	functions = map[string]function{
		"where":           fnWhere,
		"select":          fnSelect,
		"exists":          fnExists,
		"all":             fnAll,
		"empty":           fnEmpty,
		"not":             fnNot,
		"count":           fnCount,
		"first":           fnFirst,
		"last":            fnLast,
		"tail":            fnTail,
		"distinct":        fnDistinct,
		"join":            fnJoin,
		"ofType":          fnOfType,
		"getResourceKey":  fnGetResourceKey,
		"getReferenceKey": fnGetReferenceKey,
		"extension":       fnExtension,
		"hasValue":        fnHasValue,
		"toString":        fnToString,
		"toInteger":       fnToInteger,
		"startsWith":      stringPredicate(strings.HasPrefix),
		"endsWith":        stringPredicate(strings.HasSuffix),
		"contains":        stringPredicate(strings.Contains),
		"lower":           stringMap(strings.ToLower),
		"upper":           stringMap(strings.ToUpper),
		"iif":             fnIif,
	}
}

// arity lists the accepted argument counts; checked at compile time.
var arity = map[string][2]int{
	"where":           {1, 1},
	"select":          {1, 1},
	"exists":          {0, 1},
	"all":             {1, 1},
	"empty":           {0, 0},
	"not":             {0, 0},
	"count":           {0, 0},
	"first":           {0, 0},
	"last":            {0, 0},
	"tail":            {0, 0},
	"distinct":        {0, 0},
	"join":            {0, 1},
	"ofType":          {1, 1},
	"getResourceKey":  {0, 0},
	"getReferenceKey": {0, 1},
	"extension":       {1, 1},
	"hasValue":        {0, 0},
	"toString":        {0, 0},
	"toInteger":       {0, 0},
	"startsWith":      {1, 1},
	"endsWith":        {1, 1},
	"contains":        {1, 1},
	"lower":           {0, 0},
	"upper":           {0, 0},
	"iif":             {2, 3},
}

func callFunction(fn functionNode, input []any, ctx evalContext) ([]any, error) {
	impl, ok := functions[fn.name]
	if !ok {
		return nil, expr.EvaluationError("unknown function %s()", fn.name)
	}
	return impl(fn, input, ctx)
}

// evaluateArg evaluates an argument against the context of the call site,
// not the function's input.
func evaluateArg(fn functionNode, i int, ctx evalContext) ([]any, error) {
	return evaluate(fn.args[i], ctx)
}

func fnWhere(fn functionNode, input []any, ctx evalContext) ([]any, error) {
	var out []any
	for i, item := range input {
		result, err := evaluate(fn.args[0], ctx.withItem(item, i))
		if err != nil {
			return nil, err
		}
		b, err := singletonBool(result)
		if err != nil {
			return nil, err
		}
		if b != nil && *b {
			out = append(out, item)
		}
	}
	return out, nil
}

func fnSelect(fn functionNode, input []any, ctx evalContext) ([]any, error) {
	var out []any
	for i, item := range input {
		result, err := evaluate(fn.args[0], ctx.withItem(item, i))
		if err != nil {
			return nil, err
		}
		out = append(out, result...)
	}
	return out, nil
}

func fnExists(fn functionNode, input []any, ctx evalContext) ([]any, error) {
	if len(fn.args) == 0 {
		return []any{len(input) > 0}, nil
	}
	matched, err := fnWhere(fn, input, ctx)
	if err != nil {
		return nil, err
	}
	return []any{len(matched) > 0}, nil
}

func fnAll(fn functionNode, input []any, ctx evalContext) ([]any, error) {
	matched, err := fnWhere(fn, input, ctx)
	if err != nil {
		return nil, err
	}
	return []any{len(matched) == len(input)}, nil
}

func fnEmpty(_ functionNode, input []any, _ evalContext) ([]any, error) {
	return []any{len(input) == 0}, nil
}

func fnNot(_ functionNode, input []any, _ evalContext) ([]any, error) {
	b, err := singletonBool(input)
	if err != nil || b == nil {
		return nil, err
	}
	return []any{!*b}, nil
}

func fnCount(_ functionNode, input []any, _ evalContext) ([]any, error) {
	return []any{json.Number(strconv.Itoa(len(input)))}, nil
}

func fnFirst(_ functionNode, input []any, _ evalContext) ([]any, error) {
	if len(input) == 0 {
		return nil, nil
	}
	return input[:1], nil
}

func fnLast(_ functionNode, input []any, _ evalContext) ([]any, error) {
	if len(input) == 0 {
		return nil, nil
	}
	return input[len(input)-1:], nil
}

func fnTail(_ functionNode, input []any, _ evalContext) ([]any, error) {
	if len(input) <= 1 {
		return nil, nil
	}
	return input[1:], nil
}

func fnDistinct(_ functionNode, input []any, _ evalContext) ([]any, error) {
	return distinct(input), nil
}

func fnJoin(fn functionNode, input []any, ctx evalContext) ([]any, error) {
	sep := ""
	if len(fn.args) == 1 {
		arg, err := evaluateArg(fn, 0, ctx)
		if err != nil {
			return nil, err
		}
		if sep, err = concatOperand(arg); err != nil {
			return nil, err
		}
	}
	parts := make([]string, 0, len(input))
	for _, item := range input {
		s, err := stringify(item)
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return []any{strings.Join(parts, sep)}, nil
}

// fnOfType filters by type. For resources the resourceType must match; for
// choice elements (value.ofType(Quantity)) the typed sibling field
// (valueQuantity) is selected; primitives match by their JSON kind.
func fnOfType(fn functionNode, input []any, ctx evalContext) ([]any, error) {
	typeName, err := typeArgument(fn)
	if err != nil {
		return nil, err
	}

	if member, ok := fn.target.(memberNode); ok {
		parents := ctx.input
		if member.target != nil {
			if parents, err = evaluate(member.target, ctx); err != nil {
				return nil, err
			}
		}
		choice := navigate(parents, member.name+capitalize(typeName))
		if len(choice) > 0 {
			return choice, nil
		}
	}

	var out []any
	for _, item := range input {
		if matchesType(item, typeName) {
			out = append(out, item)
		}
	}
	return out, nil
}

func typeArgument(fn functionNode) (string, error) {
	switch arg := fn.args[0].(type) {
	case memberNode:
		if arg.target == nil {
			return arg.name, nil
		}
		// FHIR.string
		if base, ok := arg.target.(memberNode); ok && base.target == nil && base.name == "FHIR" {
			return arg.name, nil
		}
	case literalNode:
		if s, ok := arg.value.(string); ok && s != "" {
			return s, nil
		}
	}
	return "", expr.EvaluationError("%s() expects a type name", fn.name)
}

func matchesType(item any, typeName string) bool {
	switch v := item.(type) {
	case map[string]any:
		return v["resourceType"] == typeName
	case string:
		switch typeName {
		case "string", "code", "id", "uri", "url", "canonical", "markdown", "date", "dateTime", "instant", "time", "oid", "uuid", "base64Binary":
			return true
		}
	case bool:
		return typeName == "boolean"
	case json.Number, float64, int:
		return typeName == "integer" || typeName == "decimal" || typeName == "positiveInt" || typeName == "unsignedInt"
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func fnGetResourceKey(_ functionNode, input []any, _ evalContext) ([]any, error) {
	var out []any
	for _, item := range input {
		if obj, ok := item.(map[string]any); ok {
			if id, ok := obj["id"]; ok && id != nil {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// fnGetReferenceKey extracts the id from Reference.reference values such as
// "Patient/123", "http://host/fhir/Patient/123" or "Patient/123/_history/2".
// With a type argument, references to other types are dropped.
func fnGetReferenceKey(fn functionNode, input []any, _ evalContext) ([]any, error) {
	want := ""
	if len(fn.args) == 1 {
		t, err := typeArgument(fn)
		if err != nil {
			return nil, err
		}
		want = t
	}

	var out []any
	for _, item := range input {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ref, ok := obj["reference"].(string)
		if !ok {
			continue
		}
		typ, id, ok := splitReference(ref)
		if !ok || (want != "" && typ != want) {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func splitReference(ref string) (string, string, bool) {
	if i := strings.Index(ref, "/_history/"); i >= 0 {
		ref = ref[:i]
	}
	parts := strings.Split(ref, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	typ, id := parts[len(parts)-2], parts[len(parts)-1]
	if typ == "" || id == "" {
		return "", "", false
	}
	return typ, id, true
}

func fnExtension(fn functionNode, input []any, ctx evalContext) ([]any, error) {
	arg, err := evaluateArg(fn, 0, ctx)
	if err != nil {
		return nil, err
	}
	url, err := concatOperand(arg)
	if err != nil {
		return nil, err
	}

	var out []any
	for _, ext := range navigate(input, "extension") {
		if obj, ok := ext.(map[string]any); ok && obj["url"] == url {
			out = append(out, ext)
		}
	}
	return out, nil
}

func fnHasValue(_ functionNode, input []any, _ evalContext) ([]any, error) {
	if len(input) != 1 {
		return []any{false}, nil
	}
	switch input[0].(type) {
	case map[string]any, []any:
		return []any{false}, nil
	}
	return []any{true}, nil
}

func fnToString(_ functionNode, input []any, _ evalContext) ([]any, error) {
	if len(input) != 1 {
		return nil, nil
	}
	s, err := stringify(input[0])
	if err != nil {
		return nil, nil
	}
	return []any{s}, nil
}

func fnToInteger(_ functionNode, input []any, _ evalContext) ([]any, error) {
	if len(input) != 1 {
		return nil, nil
	}
	switch v := input[0].(type) {
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return []any{json.Number(strconv.FormatInt(i, 10))}, nil
		}
	case bool:
		if v {
			return []any{json.Number("1")}, nil
		}
		return []any{json.Number("0")}, nil
	default:
		if f, ok := toFloat(v); ok && f == float64(int64(f)) {
			return []any{numberValue(f)}, nil
		}
	}
	return nil, nil
}

func stringPredicate(pred func(s, arg string) bool) function {
	return func(fn functionNode, input []any, ctx evalContext) ([]any, error) {
		if len(input) == 0 {
			return nil, nil
		}
		s, err := concatOperand(input)
		if err != nil {
			return nil, err
		}
		arg, err := evaluateArg(fn, 0, ctx)
		if err != nil {
			return nil, err
		}
		if len(arg) == 0 {
			return nil, nil
		}
		a, err := concatOperand(arg)
		if err != nil {
			return nil, err
		}
		return []any{pred(s, a)}, nil
	}
}

func stringMap(f func(string) string) function {
	return func(_ functionNode, input []any, _ evalContext) ([]any, error) {
		if len(input) == 0 {
			return nil, nil
		}
		s, err := concatOperand(input)
		if err != nil {
			return nil, err
		}
		return []any{f(s)}, nil
	}
}

func fnIif(fn functionNode, input []any, ctx evalContext) ([]any, error) {
	cond, err := evaluateArg(fn, 0, ctx)
	if err != nil {
		return nil, err
	}
	b, err := singletonBool(cond)
	if err != nil {
		return nil, err
	}
	if b != nil && *b {
		return evaluateArg(fn, 1, ctx)
	}
	if len(fn.args) == 3 {
		return evaluateArg(fn, 2, ctx)
	}
	return nil, nil
}
