package logic

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// value is any runtime value: nil, bool, int, float64, string, *list, tuple,
// *function, *builtin, *module, *coroutine or a host object.
type value interface{}

type list struct{ items []value }

type tuple []value

// function is a def statement closed over its defining module.
type function struct {
	def *defStmt
	mod *module
}

type builtin struct {
	name string
	fn   func(ctx context.Context, args []value, kw map[string]value) (value, error)
}

type module struct {
	name    string
	globals map[string]value
}

// object is implemented by host values (pins, pixel strips).
type object interface {
	typeName() string
	attr(name string) (value, bool)
}

// indexSetter is implemented by host values that accept obj[i] = v.
type indexSetter interface {
	setIndex(i value, v value) error
}

// awaitable values suspend the caller when awaited.
type awaitable interface {
	wait(ctx context.Context, in *interp) (value, error)
}

// coroutine is the result of calling an async function.
type coroutine struct {
	fn    *function
	args  []value
	depth int
}

func (c *coroutine) wait(ctx context.Context, in *interp) (value, error) {
	return in.run(ctx, c.depth, c.fn, c.args)
}

func typeName(v value) string {
	switch v := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *list:
		return "list"
	case tuple:
		return "tuple"
	case *function, *builtin:
		return "function"
	case *class:
		return "type"
	case *module:
		return "module"
	case *coroutine:
		return "coroutine"
	case object:
		return v.typeName()
	}
	return "object"
}

func truthy(v value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case *list:
		return len(v.items) > 0
	case tuple:
		return len(v) > 0
	}
	return true
}

// str renders v the way print does.
func str(v value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return repr(v)
}

func repr(v value) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(v)
	case float64:
		return formatFloat(v)
	case string:
		return "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
	case *list:
		return "[" + joinRepr(v.items) + "]"
	case tuple:
		if len(v) == 1 {
			return "(" + repr(v[0]) + ",)"
		}
		return "(" + joinRepr(v) + ")"
	case *function:
		return "<function " + v.def.name + ">"
	case *builtin:
		return "<function " + v.name + ">"
	case *module:
		return "<module '" + v.name + "'>"
	}
	return "<" + typeName(v) + ">"
}

func joinRepr(items []value) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = repr(it)
	}
	return strings.Join(parts, ", ")
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// number widens bools and ints to a common numeric form.
func number(v value) (i int, f float64, isFloat, ok bool) {
	switch v := v.(type) {
	case bool:
		if v {
			return 1, 1, false, true
		}
		return 0, 0, false, true
	case int:
		return v, float64(v), false, true
	case float64:
		return 0, v, true, true
	}
	return 0, 0, false, false
}

func toInt(v value) (int, bool) {
	i, f, isF, ok := number(v)
	if !ok {
		return 0, false
	}
	if isF {
		return int(f), true
	}
	return i, true
}

func toFloat(v value) (float64, bool) {
	_, f, _, ok := number(v)
	return f, ok
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

var errDivZero = errString("division by zero")

func binary(op string, l, r value) (value, error) {
	li, lf, lF, lok := number(l)
	ri, rf, rF, rok := number(r)
	if lok && rok {
		if !lF && !rF {
			switch op {
			case "+":
				return li + ri, nil
			case "-":
				return li - ri, nil
			case "*":
				return li * ri, nil
			case "/":
				if ri == 0 {
					return nil, errDivZero
				}
				return float64(li) / float64(ri), nil
			case "//":
				if ri == 0 {
					return nil, errDivZero
				}
				return floorDiv(li, ri), nil
			case "%":
				if ri == 0 {
					return nil, errDivZero
				}
				return floorMod(li, ri), nil
			}
		}
		switch op {
		case "+":
			return lf + rf, nil
		case "-":
			return lf - rf, nil
		case "*":
			return lf * rf, nil
		case "/":
			if rf == 0 {
				return nil, errDivZero
			}
			return lf / rf, nil
		case "//":
			if rf == 0 {
				return nil, errDivZero
			}
			return math.Floor(lf / rf), nil
		case "%":
			if rf == 0 {
				return nil, errDivZero
			}
			m := math.Mod(lf, rf)
			if m != 0 && (m < 0) != (rf < 0) {
				m += rf
			}
			return m, nil
		}
	}
	switch op {
	case "+":
		switch lv := l.(type) {
		case string:
			if rv, ok := r.(string); ok {
				return lv + rv, nil
			}
		case *list:
			if rv, ok := r.(*list); ok {
				items := append(append([]value{}, lv.items...), rv.items...)
				return &list{items: items}, nil
			}
		case tuple:
			if rv, ok := r.(tuple); ok {
				return append(append(tuple{}, lv...), rv...), nil
			}
		}
	case "*":
		if s, ok := l.(string); ok && rok && !rF {
			return strings.Repeat(s, max(ri, 0)), nil
		}
		if lv, ok := l.(*list); ok && rok && !rF {
			out := &list{}
			for n := 0; n < ri; n++ {
				out.items = append(out.items, lv.items...)
			}
			return out, nil
		}
	}
	return nil, errString("unsupported operand types for " + op + ": '" + typeName(l) + "' and '" + typeName(r) + "'")
}

func equal(l, r value) bool {
	_, lf, _, lok := number(l)
	_, rf, _, rok := number(r)
	if lok && rok {
		return lf == rf
	}
	switch lv := l.(type) {
	case nil:
		return r == nil
	case string:
		rv, ok := r.(string)
		return ok && lv == rv
	case *list:
		rv, ok := r.(*list)
		return ok && seqEqual(lv.items, rv.items)
	case tuple:
		rv, ok := r.(tuple)
		return ok && seqEqual(lv, rv)
	}
	return l == r
}

func seqEqual(a, b []value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func less(l, r value) (bool, error) {
	_, lf, _, lok := number(l)
	_, rf, _, rok := number(r)
	if lok && rok {
		return lf < rf, nil
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return ls < rs, nil
		}
	}
	return false, errString("'<' not supported between '" + typeName(l) + "' and '" + typeName(r) + "'")
}

func compare(op string, l, r value) (value, error) {
	switch op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "<":
		return less(l, r)
	case ">":
		return less(r, l)
	case "<=":
		gt, err := less(r, l)
		return !gt, err
	case ">=":
		lt, err := less(l, r)
		return !lt, err
	case "in", "not in":
		in, err := contains(r, l)
		if op == "not in" {
			in = !in
		}
		return in, err
	}
	return nil, errString("unknown comparison " + op)
}

func contains(seq, x value) (bool, error) {
	switch s := seq.(type) {
	case string:
		xs, ok := x.(string)
		if !ok {
			return false, errString("'in <string>' requires string as left operand")
		}
		return strings.Contains(s, xs), nil
	case *list:
		return containsItem(s.items, x), nil
	case tuple:
		return containsItem(s, x), nil
	}
	return false, errString("argument of type '" + typeName(seq) + "' is not iterable")
}

func containsItem(items []value, x value) bool {
	for _, it := range items {
		if equal(it, x) {
			return true
		}
	}
	return false
}

// iterate returns the items a for loop walks.
func iterate(v value) ([]value, error) {
	switch v := v.(type) {
	case *list:
		return append([]value(nil), v.items...), nil
	case tuple:
		return v, nil
	case string:
		out := make([]value, 0, len(v))
		for _, r := range v {
			out = append(out, string(r))
		}
		return out, nil
	}
	return nil, errString("'" + typeName(v) + "' object is not iterable")
}

func index(x, i value) (value, error) {
	var items []value
	switch s := x.(type) {
	case *list:
		items = s.items
	case tuple:
		items = s
	case string:
		n, ok := toIntStrict(i)
		if !ok {
			return nil, errString("string indices must be integers")
		}
		rs := []rune(s)
		n, err := norm(n, len(rs))
		if err != nil {
			return nil, err
		}
		return string(rs[n]), nil
	case indexGetter:
		return s.getIndex(i)
	default:
		return nil, errString("'" + typeName(x) + "' object is not subscriptable")
	}
	n, ok := toIntStrict(i)
	if !ok {
		return nil, errString("indices must be integers")
	}
	n, err := norm(n, len(items))
	if err != nil {
		return nil, err
	}
	return items[n], nil
}

type indexGetter interface {
	getIndex(i value) (value, error)
}

func setIndex(x, i, v value) error {
	switch s := x.(type) {
	case *list:
		n, ok := toIntStrict(i)
		if !ok {
			return errString("list indices must be integers")
		}
		n, err := norm(n, len(s.items))
		if err != nil {
			return err
		}
		s.items[n] = v
		return nil
	case indexSetter:
		return s.setIndex(i, v)
	}
	return errString("'" + typeName(x) + "' object does not support item assignment")
}

func toIntStrict(v value) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func norm(i, n int) (int, error) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, errString("index out of range")
	}
	return i, nil
}

func length(v value) (int, error) {
	switch v := v.(type) {
	case string:
		return len([]rune(v)), nil
	case *list:
		return len(v.items), nil
	case tuple:
		return len(v), nil
	case interface{ size() int }:
		return v.size(), nil
	}
	return 0, errString("object of type '" + typeName(v) + "' has no len()")
}
