package logic

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// maxRange caps range() so a typo cannot allocate the heap away.
const maxRange = 1 << 16

// class is a host type: callable to construct an instance, with constants
// reachable as attributes (Pin.OUT).
type class struct {
	name   string
	ctor   func(ctx context.Context, args []value, kw map[string]value) (value, error)
	consts map[string]value
}

type argFn = func(ctx context.Context, args []value, kw map[string]value) (value, error)

func fn(name string, f argFn) *builtin { return &builtin{name: name, fn: f} }

// method binds a receiver-less helper to a name for attribute lookups.
func method(name string, f func(args []value) (value, error)) *builtin {
	return fn(name, func(_ context.Context, args []value, _ map[string]value) (value, error) { return f(args) })
}

func getAttr(x value, name string) (value, error) {
	switch x := x.(type) {
	case *module:
		if v, ok := x.globals[name]; ok {
			return v, nil
		}
		return nil, errString("module '" + x.name + "' has no attribute '" + name + "'")
	case *class:
		if v, ok := x.consts[name]; ok {
			return v, nil
		}
	case object:
		if v, ok := x.attr(name); ok {
			return v, nil
		}
	case *list:
		if v, ok := listMethod(x, name); ok {
			return v, nil
		}
	case string:
		if v, ok := stringMethod(x, name); ok {
			return v, nil
		}
	}
	return nil, errString("'" + typeName(x) + "' object has no attribute '" + name + "'")
}

func listMethod(l *list, name string) (value, bool) {
	switch name {
	case "append":
		return method(name, func(args []value) (value, error) {
			if len(args) != 1 {
				return nil, errString("append() takes exactly one argument")
			}
			l.items = append(l.items, args[0])
			return nil, nil
		}), true
	case "pop":
		return method(name, func(args []value) (value, error) {
			if len(l.items) == 0 {
				return nil, errString("pop from empty list")
			}
			i := len(l.items) - 1
			if len(args) > 0 {
				n, ok := toIntStrict(args[0])
				if !ok {
					return nil, errString("pop index must be an integer")
				}
				var err error
				if i, err = norm(n, len(l.items)); err != nil {
					return nil, err
				}
			}
			v := l.items[i]
			l.items = append(l.items[:i], l.items[i+1:]...)
			return v, nil
		}), true
	case "insert":
		return method(name, func(args []value) (value, error) {
			if len(args) != 2 {
				return nil, errString("insert() takes exactly two arguments")
			}
			i, ok := toIntStrict(args[0])
			if !ok {
				return nil, errString("insert index must be an integer")
			}
			if i < 0 {
				i += len(l.items)
			}
			i = min(max(i, 0), len(l.items))
			l.items = append(l.items, nil)
			copy(l.items[i+1:], l.items[i:])
			l.items[i] = args[1]
			return nil, nil
		}), true
	case "clear":
		return method(name, func([]value) (value, error) {
			l.items = nil
			return nil, nil
		}), true
	}
	return nil, false
}

func stringMethod(s, name string) (value, bool) {
	switch name {
	case "upper":
		return method(name, func([]value) (value, error) { return strings.ToUpper(s), nil }), true
	case "lower":
		return method(name, func([]value) (value, error) { return strings.ToLower(s), nil }), true
	case "strip":
		return method(name, func([]value) (value, error) { return strings.TrimSpace(s), nil }), true
	case "startswith":
		return method(name, func(args []value) (value, error) {
			p, _ := first(args).(string)
			return strings.HasPrefix(s, p), nil
		}), true
	case "split":
		return method(name, func(args []value) (value, error) {
			var parts []string
			if sep, ok := first(args).(string); ok {
				parts = strings.Split(s, sep)
			} else {
				parts = strings.Fields(s)
			}
			out := &list{items: make([]value, len(parts))}
			for i, p := range parts {
				out.items[i] = p
			}
			return out, nil
		}), true
	case "join":
		return method(name, func(args []value) (value, error) {
			items, err := iterate(first(args))
			if err != nil {
				return nil, err
			}
			parts := make([]string, len(items))
			for i, it := range items {
				p, ok := it.(string)
				if !ok {
					return nil, errString("join() expects strings")
				}
				parts[i] = p
			}
			return strings.Join(parts, s), nil
		}), true
	}
	return nil, false
}

func first(args []value) value {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

// newBuiltins returns the builtin namespace; print writes through out.
func newBuiltins(out func(string)) map[string]value {
	return map[string]value{
		"print": fn("print", func(_ context.Context, args []value, kw map[string]value) (value, error) {
			sep := " "
			if s, ok := kw["sep"].(string); ok {
				sep = s
			}
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = str(a)
			}
			line := strings.Join(parts, sep)
			if e, ok := kw["end"].(string); ok && e != "\n" {
				line += e
			}
			out(line)
			return nil, nil
		}),
		"int":   method("int", toIntValue),
		"float": method("float", toFloatValue),
		"str": method("str", func(args []value) (value, error) {
			if len(args) == 0 {
				return "", nil
			}
			return str(args[0]), nil
		}),
		"bool":  method("bool", func(args []value) (value, error) { return truthy(first(args)), nil }),
		"range": method("range", rangeValue),
		"abs": method("abs", func(args []value) (value, error) {
			i, f, isF, ok := number(first(args))
			if !ok {
				return nil, errString("bad operand type for abs()")
			}
			if isF {
				return math.Abs(f), nil
			}
			if i < 0 {
				return -i, nil
			}
			return i, nil
		}),
		"round": method("round", roundValue),
		"len": method("len", func(args []value) (value, error) {
			n, err := length(first(args))
			return n, err
		}),
		"min": method("min", func(args []value) (value, error) { return extreme(args, true) }),
		"max": method("max", func(args []value) (value, error) { return extreme(args, false) }),
	}
}

func toIntValue(args []value) (value, error) {
	if len(args) == 0 {
		return 0, nil
	}
	if s, ok := args[0].(string); ok {
		base := 10
		if len(args) > 1 {
			b, ok := toIntStrict(args[1])
			if !ok {
				return nil, errString("int() base must be an integer")
			}
			base = b
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), base, 64)
		if err != nil {
			return nil, errString("invalid literal for int(): " + repr(s))
		}
		return int(n), nil
	}
	n, ok := toInt(args[0])
	if !ok {
		return nil, errString("int() argument must be a string or a number")
	}
	return n, nil
}

func toFloatValue(args []value) (value, error) {
	if len(args) == 0 {
		return 0.0, nil
	}
	if s, ok := args[0].(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, errString("could not convert string to float: " + repr(s))
		}
		return f, nil
	}
	f, ok := toFloat(args[0])
	if !ok {
		return nil, errString("float() argument must be a string or a number")
	}
	return f, nil
}

func rangeValue(args []value) (value, error) {
	var ns [3]int
	for i, a := range args {
		if i >= 3 {
			return nil, errString("range expected at most 3 arguments")
		}
		n, ok := toIntStrict(a)
		if !ok {
			return nil, errString("range() arguments must be integers")
		}
		ns[i] = n
	}
	start, stop, step := 0, 0, 1
	switch len(args) {
	case 0:
		return nil, errString("range expected at least 1 argument")
	case 1:
		stop = ns[0]
	case 2:
		start, stop = ns[0], ns[1]
	default:
		start, stop, step = ns[0], ns[1], ns[2]
	}
	if step == 0 {
		return nil, errString("range() arg 3 must not be zero")
	}
	out := &list{}
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		if len(out.items) >= maxRange {
			return nil, errString("range too large")
		}
		out.items = append(out.items, i)
	}
	return out, nil
}

func roundValue(args []value) (value, error) {
	i, f, isF, ok := number(first(args))
	if !ok {
		return nil, errString("round() requires a number")
	}
	if len(args) < 2 {
		if !isF {
			return i, nil
		}
		return int(math.RoundToEven(f)), nil
	}
	nd, ok := toIntStrict(args[1])
	if !ok {
		return nil, errString("round() ndigits must be an integer")
	}
	if !isF {
		return i, nil
	}
	p := math.Pow(10, float64(nd))
	return math.RoundToEven(f*p) / p, nil
}

func extreme(args []value, lowest bool) (value, error) {
	items := args
	if len(args) == 1 {
		var err error
		if items, err = iterate(args[0]); err != nil {
			return nil, err
		}
	}
	if len(items) == 0 {
		return nil, errString("min()/max() arg is an empty sequence")
	}
	best := items[0]
	for _, it := range items[1:] {
		var better bool
		var err error
		if lowest {
			better, err = less(it, best)
		} else {
			better, err = less(best, it)
		}
		if err != nil {
			return nil, err
		}
		if better {
			best = it
		}
	}
	return best, nil
}
