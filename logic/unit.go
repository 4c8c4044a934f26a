// Package logic loads the generated main-routine and handler-set artifacts.
// It accepts the restricted statement set the block editor emits (imports,
// defs, assignments, loops, conditionals, calls) and rejects anything else
// at load time with a line-numbered error.
//
// time.sleep* blocks without observing cancellation; awaiting
// asyncio.sleep* yields and is where a cancelled routine stops.
package logic

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"neolink-go/errcode"
	"neolink-go/services/board"
)

// MainEntry is the function the main artifact must define.
const MainEntry = "mainLoop"

// Env is what loaded logic may touch.
type Env struct {
	Board board.Board
	// Print receives each print() line. nil discards output.
	Print func(line string)
	Log   *slog.Logger
}

// Routine is the loaded main routine.
type Routine struct {
	in *interp
	fn *function
}

// Run executes the routine until it returns or ctx is cancelled at a
// suspension point.
func (r *Routine) Run(ctx context.Context) error {
	return invoke(ctx, r.in, r.fn)
}

// Handler is one named, independently invokable routine.
type Handler struct {
	name string
	in   *interp
	fn   *function
}

func (h Handler) Name() string { return h.name }

func (h Handler) Invoke(ctx context.Context) error {
	return invoke(ctx, h.in, h.fn)
}

func invoke(ctx context.Context, in *interp, f *function) error {
	in.runMu.Lock()
	defer in.runMu.Unlock()
	v, err := in.call(ctx, 0, f, nil, nil)
	if err != nil {
		return err
	}
	if a, ok := v.(awaitable); ok {
		_, err = a.wait(ctx, in)
	}
	return err
}

// HandlerSet maps names to handlers. It is immutable once loaded.
type HandlerSet struct {
	byName map[string]Handler
	names  []string
}

// Lookup returns errcode.NoHandler when name is absent.
func (s *HandlerSet) Lookup(name string) (Handler, error) {
	if s != nil {
		if h, ok := s.byName[name]; ok {
			return h, nil
		}
	}
	return Handler{}, &errcode.E{C: errcode.NoHandler, Op: "lookup", Msg: name}
}

// Names is sorted.
func (s *HandlerSet) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

func (s *HandlerSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Pair is one main routine with its handler set.
type Pair struct {
	Main     *Routine
	Handlers *HandlerSet
}

// Loader turns artifact text into a runnable pair.
type Loader interface {
	Load(ctx context.Context, mainText, handlerText string) (Pair, error)
}

// Interpreter is the Loader backed by this package's interpreter.
type Interpreter struct {
	env Env
}

func New(env Env) *Interpreter {
	if env.Log == nil {
		env.Log = slog.Default()
	}
	if env.Print == nil {
		env.Print = func(string) {}
	}
	return &Interpreter{env: env}
}

// Load parses and executes both artifacts at module level. The main
// artifact must define mainLoop; every function the handler artifact
// defines becomes a handler.
func (l *Interpreter) Load(ctx context.Context, mainText, handlerText string) (Pair, error) {
	in := &interp{
		env:      l.env,
		log:      l.env.Log,
		builtins: newBuiltins(l.env.Print),
		modules:  map[string]*module{},
	}
	in.runMu.Lock()
	defer in.runMu.Unlock()

	mainMod, err := in.loadModule(ctx, "main", mainText)
	if err != nil {
		return Pair{}, err
	}
	entry, ok := mainMod.globals[MainEntry].(*function)
	if !ok {
		return Pair{}, &errcode.E{C: errcode.LoadFailed, Op: "load main", Msg: MainEntry + " is not defined"}
	}

	hMod, err := in.loadModule(ctx, "handlers", handlerText)
	if err != nil {
		return Pair{}, err
	}
	hs := &HandlerSet{byName: map[string]Handler{}}
	for name, v := range hMod.globals {
		if f, ok := v.(*function); ok && f.mod == hMod {
			hs.byName[name] = Handler{name: name, in: in, fn: f}
			hs.names = append(hs.names, name)
		}
	}
	sort.Strings(hs.names)

	return Pair{Main: &Routine{in: in, fn: entry}, Handlers: hs}, nil
}

func (in *interp) loadModule(ctx context.Context, unit, text string) (_ *module, err error) {
	op := "load " + unit
	defer func() {
		if r := recover(); r != nil {
			err = &errcode.E{C: errcode.LoadFailed, Op: op, Msg: "panic during load"}
		}
	}()
	body, err := parse(text)
	if err == nil {
		err = check(body, false, false, false)
	}
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			se.Unit = unit
		}
		return nil, errcode.Wrap(errcode.LoadFailed, op, err)
	}
	m := &module{name: unit, globals: map[string]value{"__name__": unit}}
	if _, _, err := in.execBlock(ctx, &frame{mod: m}, body); err != nil {
		return nil, errcode.Wrap(errcode.LoadFailed, op, err)
	}
	return m, nil
}
