package logic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// maxDepth bounds nested calls so runaway recursion fails instead of
// exhausting a small stack.
const maxDepth = 64

type ctrl uint8

const (
	cNext ctrl = iota
	cBreak
	cContinue
	cReturn
)

// interp is shared by the main routine and every handler of one loaded
// pair. Only the routine holding runMu executes; it is handed over while the
// holder is suspended in an awaited asyncio sleep, so routines interleave
// at suspension points and nowhere else.
type interp struct {
	runMu    sync.Mutex
	env      Env
	log      *slog.Logger
	builtins map[string]value
	modules  map[string]*module
}

type frame struct {
	mod     *module
	locals  map[string]value // nil at module level
	globals map[string]bool
	depth   int
}

func (f *frame) lookup(in *interp, name string) (value, bool) {
	if f.locals != nil && !f.globals[name] {
		if v, ok := f.locals[name]; ok {
			return v, true
		}
	}
	if v, ok := f.mod.globals[name]; ok {
		return v, true
	}
	v, ok := in.builtins[name]
	return v, ok
}

func (f *frame) assign(name string, v value) {
	if f.locals == nil || f.globals[name] {
		f.mod.globals[name] = v
		return
	}
	f.locals[name] = v
}

// runtimeErr attaches a line to err unless it already carries one or is a
// cancellation, which must pass through untouched.
func runtimeErr(line int, err error) error {
	var re *RuntimeError
	if errors.As(err, &re) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &RuntimeError{Line: line, Msg: err.Error()}
}

func (in *interp) execBlock(ctx context.Context, f *frame, body []stmt) (ctrl, value, error) {
	for _, s := range body {
		c, v, err := in.exec(ctx, f, s)
		if err != nil {
			return cNext, nil, runtimeErr(s.line(), err)
		}
		if c != cNext {
			return c, v, nil
		}
	}
	return cNext, nil, nil
}

func (in *interp) exec(ctx context.Context, f *frame, s stmt) (ctrl, value, error) {
	switch s := s.(type) {
	case *passStmt:
	case *breakStmt:
		return cBreak, nil, nil
	case *contStmt:
		return cContinue, nil, nil
	case *returnStmt:
		if s.x == nil {
			return cReturn, nil, nil
		}
		v, err := in.eval(ctx, f, s.x)
		return cReturn, v, err
	case *exprStmt:
		_, err := in.eval(ctx, f, s.x)
		return cNext, nil, err
	case *globalStmt:
		if f.globals == nil {
			f.globals = map[string]bool{}
		}
		for _, n := range s.names {
			f.globals[n] = true
		}
	case *importStmt:
		return cNext, nil, in.doImport(f, s)
	case *defStmt:
		f.assign(s.name, &function{def: s, mod: f.mod})
	case *assignStmt:
		return cNext, nil, in.assign(ctx, f, s)
	case *ifStmt:
		for i, cond := range s.conds {
			v, err := in.eval(ctx, f, cond)
			if err != nil {
				return cNext, nil, err
			}
			if truthy(v) {
				return in.execBlock(ctx, f, s.bodies[i])
			}
		}
		return in.execBlock(ctx, f, s.orelse)
	case *whileStmt:
		for {
			v, err := in.eval(ctx, f, s.cond)
			if err != nil {
				return cNext, nil, err
			}
			if !truthy(v) {
				return cNext, nil, nil
			}
			c, rv, err := in.execBlock(ctx, f, s.body)
			if err != nil || c == cReturn {
				return c, rv, err
			}
			if c == cBreak {
				return cNext, nil, nil
			}
		}
	case *forStmt:
		iv, err := in.eval(ctx, f, s.iter)
		if err != nil {
			return cNext, nil, err
		}
		items, err := iterate(iv)
		if err != nil {
			return cNext, nil, err
		}
		for _, it := range items {
			f.assign(s.name, it)
			c, rv, err := in.execBlock(ctx, f, s.body)
			if err != nil || c == cReturn {
				return c, rv, err
			}
			if c == cBreak {
				break
			}
		}
	default:
		return cNext, nil, fmt.Errorf("unsupported statement %T", s)
	}
	return cNext, nil, nil
}

func (in *interp) doImport(f *frame, s *importStmt) error {
	if s.from != "" {
		m, err := in.importModule(s.from)
		if err != nil {
			return err
		}
		for _, it := range s.items {
			if it.name == "*" {
				for k, v := range m.globals {
					f.assign(k, v)
				}
				continue
			}
			v, ok := m.globals[it.name]
			if !ok {
				return errString("cannot import name '" + it.name + "' from '" + s.from + "'")
			}
			f.assign(alias(it), v)
		}
		return nil
	}
	for _, it := range s.items {
		m, err := in.importModule(it.name)
		if err != nil {
			return err
		}
		f.assign(alias(it), m)
	}
	return nil
}

func alias(it importItem) string {
	if it.alias != "" {
		return it.alias
	}
	return it.name
}

func (in *interp) assign(ctx context.Context, f *frame, s *assignStmt) error {
	v, err := in.eval(ctx, f, s.x)
	if err != nil {
		return err
	}
	switch t := s.target.(type) {
	case *nameExpr:
		if s.op != "" {
			cur, ok := f.lookup(in, t.name)
			if !ok {
				return errString("name '" + t.name + "' is not defined")
			}
			if v, err = binary(s.op, cur, v); err != nil {
				return err
			}
		}
		f.assign(t.name, v)
		return nil
	case *indexExpr:
		x, err := in.eval(ctx, f, t.x)
		if err != nil {
			return err
		}
		i, err := in.eval(ctx, f, t.idx)
		if err != nil {
			return err
		}
		if s.op != "" {
			cur, err := index(x, i)
			if err != nil {
				return err
			}
			if v, err = binary(s.op, cur, v); err != nil {
				return err
			}
		}
		return setIndex(x, i, v)
	case *attrExpr:
		x, err := in.eval(ctx, f, t.x)
		if err != nil {
			return err
		}
		m, ok := x.(*module)
		if !ok {
			return errString("cannot set attribute '" + t.name + "' on '" + typeName(x) + "'")
		}
		if s.op != "" {
			cur, ok := m.globals[t.name]
			if !ok {
				return errString("module has no attribute '" + t.name + "'")
			}
			if v, err = binary(s.op, cur, v); err != nil {
				return err
			}
		}
		m.globals[t.name] = v
		return nil
	}
	return errString("cannot assign")
}

func (in *interp) eval(ctx context.Context, f *frame, e expr) (value, error) {
	switch e := e.(type) {
	case *constExpr:
		return e.v, nil
	case *nameExpr:
		v, ok := f.lookup(in, e.name)
		if !ok {
			return nil, errString("name '" + e.name + "' is not defined")
		}
		return v, nil
	case *attrExpr:
		x, err := in.eval(ctx, f, e.x)
		if err != nil {
			return nil, err
		}
		return getAttr(x, e.name)
	case *indexExpr:
		x, err := in.eval(ctx, f, e.x)
		if err != nil {
			return nil, err
		}
		i, err := in.eval(ctx, f, e.idx)
		if err != nil {
			return nil, err
		}
		return index(x, i)
	case *listExpr:
		items, err := in.evalAll(ctx, f, e.items)
		if err != nil {
			return nil, err
		}
		return &list{items: items}, nil
	case *tupleExpr:
		items, err := in.evalAll(ctx, f, e.items)
		if err != nil {
			return nil, err
		}
		return tuple(items), nil
	case *unaryExpr:
		x, err := in.eval(ctx, f, e.x)
		if err != nil {
			return nil, err
		}
		switch e.op {
		case "not":
			return !truthy(x), nil
		case "-":
			i, fl, isF, ok := number(x)
			if !ok {
				return nil, errString("bad operand type for unary -: '" + typeName(x) + "'")
			}
			if isF {
				return -fl, nil
			}
			return -i, nil
		case "+":
			if _, _, _, ok := number(x); !ok {
				return nil, errString("bad operand type for unary +: '" + typeName(x) + "'")
			}
			return x, nil
		}
	case *binExpr:
		l, err := in.eval(ctx, f, e.l)
		if err != nil {
			return nil, err
		}
		switch e.op {
		case "and":
			if !truthy(l) {
				return l, nil
			}
			return in.eval(ctx, f, e.r)
		case "or":
			if truthy(l) {
				return l, nil
			}
			return in.eval(ctx, f, e.r)
		}
		r, err := in.eval(ctx, f, e.r)
		if err != nil {
			return nil, err
		}
		if compareOps[e.op] || e.op == "in" || e.op == "not in" {
			return compare(e.op, l, r)
		}
		return binary(e.op, l, r)
	case *callExpr:
		fn, err := in.eval(ctx, f, e.fn)
		if err != nil {
			return nil, err
		}
		args, err := in.evalAll(ctx, f, e.args)
		if err != nil {
			return nil, err
		}
		var kw map[string]value
		if len(e.kw) > 0 {
			kw = make(map[string]value, len(e.kw))
			for _, k := range e.kw {
				v, err := in.eval(ctx, f, k.x)
				if err != nil {
					return nil, err
				}
				kw[k.name] = v
			}
		}
		return in.call(ctx, f.depth, fn, args, kw)
	case *awaitExpr:
		x, err := in.eval(ctx, f, e.x)
		if err != nil {
			return nil, err
		}
		a, ok := x.(awaitable)
		if !ok {
			return nil, errString("object " + typeName(x) + " can't be used in 'await' expression")
		}
		return a.wait(ctx, in)
	}
	return nil, fmt.Errorf("unsupported expression %T", e)
}

func (in *interp) evalAll(ctx context.Context, f *frame, xs []expr) ([]value, error) {
	if len(xs) == 0 {
		return nil, nil
	}
	out := make([]value, len(xs))
	for i, x := range xs {
		v, err := in.eval(ctx, f, x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (in *interp) call(ctx context.Context, depth int, fnv value, args []value, kw map[string]value) (value, error) {
	switch fn := fnv.(type) {
	case *builtin:
		return fn.fn(ctx, args, kw)
	case *class:
		return fn.ctor(ctx, args, kw)
	case *function:
		bound, err := bind(fn.def, args, kw)
		if err != nil {
			return nil, err
		}
		if fn.def.async {
			return &coroutine{fn: fn, args: bound, depth: depth}, nil
		}
		return in.run(ctx, depth, fn, bound)
	}
	return nil, errString("'" + typeName(fnv) + "' object is not callable")
}

func bind(d *defStmt, args []value, kw map[string]value) ([]value, error) {
	if len(args) > len(d.params) {
		return nil, fmt.Errorf("%s() takes %d positional arguments but %d were given", d.name, len(d.params), len(args))
	}
	out := make([]value, len(d.params))
	copy(out, args)
	for i := len(args); i < len(d.params); i++ {
		v, ok := kw[d.params[i]]
		if !ok {
			return nil, fmt.Errorf("%s() missing argument '%s'", d.name, d.params[i])
		}
		out[i] = v
	}
	for k := range kw {
		found := false
		for _, p := range d.params {
			found = found || p == k
		}
		if !found {
			return nil, fmt.Errorf("%s() got an unexpected keyword argument '%s'", d.name, k)
		}
	}
	return out, nil
}

func (in *interp) run(ctx context.Context, depth int, fn *function, args []value) (value, error) {
	if depth >= maxDepth {
		return nil, errString("maximum recursion depth exceeded")
	}
	f := &frame{mod: fn.mod, locals: make(map[string]value, len(args)), depth: depth + 1}
	for i, p := range fn.def.params {
		f.locals[p] = args[i]
	}
	_, v, err := in.execBlock(ctx, f, fn.def.body)
	return v, err
}
