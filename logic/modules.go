package logic

import (
	"context"
	"time"

	"neolink-go/services/board"
	"neolink-go/x/mathx"
	"neolink-go/x/timex"
)

// Pin and ADC constants follow the ESP32 port values.
const (
	pinIn       = 1
	pinOut      = 3
	pinPullUp   = 2
	pinPullDown = 1
)

var errNoBoard = errString("no board attached")

func (in *interp) importModule(name string) (*module, error) {
	if m, ok := in.modules[name]; ok {
		return m, nil
	}
	var m *module
	switch name {
	case "machine":
		m = in.machineModule()
	case "time", "utime":
		m = timeModule(name)
	case "asyncio", "uasyncio":
		m = asyncioModule(name)
	case "neopixel":
		m = in.neopixelModule()
	default:
		return nil, errString("no module named '" + name + "'")
	}
	in.modules[name] = m
	return m, nil
}

func (in *interp) board() (board.Board, error) {
	if in.env.Board == nil {
		return nil, errNoBoard
	}
	return in.env.Board, nil
}

// ---- machine ----

type pinObj struct {
	in *interp
	id int
}

func (p *pinObj) typeName() string { return "Pin" }

func (p *pinObj) attr(name string) (value, bool) {
	switch name {
	case "value":
		return method(name, func(args []value) (value, error) {
			b, err := p.in.board()
			if err != nil {
				return nil, err
			}
			if len(args) == 0 {
				hi, err := b.ReadPin(p.id)
				if err != nil {
					return nil, err
				}
				if hi {
					return 1, nil
				}
				return 0, nil
			}
			return nil, b.WritePin(p.id, truthy(args[0]))
		}), true
	case "on", "high":
		return method(name, func([]value) (value, error) { return nil, p.write(true) }), true
	case "off", "low":
		return method(name, func([]value) (value, error) { return nil, p.write(false) }), true
	case "init":
		return fn(name, func(_ context.Context, args []value, kw map[string]value) (value, error) {
			return nil, p.init(args, kw)
		}), true
	}
	return nil, false
}

func (p *pinObj) write(high bool) error {
	b, err := p.in.board()
	if err != nil {
		return err
	}
	return b.WritePin(p.id, high)
}

// init applies Pin(id, mode, pull, value=...) arguments; only an initial
// output value touches the board.
func (p *pinObj) init(args []value, kw map[string]value) error {
	v, ok := kw["value"]
	if !ok && len(args) > 2 {
		v, ok = args[2], true
	}
	if !ok || v == nil {
		return nil
	}
	return p.write(truthy(v))
}

func pinID(v value) (int, error) {
	switch v := v.(type) {
	case *pinObj:
		return v.id, nil
	case int:
		return v, nil
	}
	return 0, errString("expected a pin number or Pin, got '" + typeName(v) + "'")
}

type pwmObj struct {
	in   *interp
	pin  int
	freq int
	duty int
}

func (p *pwmObj) typeName() string { return "PWM" }

func (p *pwmObj) attr(name string) (value, bool) {
	switch name {
	case "duty":
		return method(name, func(args []value) (value, error) {
			if len(args) == 0 {
				return p.duty, nil
			}
			d, ok := toInt(args[0])
			if !ok {
				return nil, errString("duty must be a number")
			}
			return nil, p.set(d)
		}), true
	case "duty_u16":
		return method(name, func(args []value) (value, error) {
			if len(args) == 0 {
				return p.duty << 6, nil
			}
			d, ok := toInt(args[0])
			if !ok {
				return nil, errString("duty must be a number")
			}
			return nil, p.set(d >> 6)
		}), true
	case "freq":
		return method(name, func(args []value) (value, error) {
			if len(args) == 0 {
				return p.freq, nil
			}
			f, ok := toInt(args[0])
			if !ok {
				return nil, errString("freq must be a number")
			}
			p.freq = f
			return nil, nil
		}), true
	case "deinit":
		return method(name, func([]value) (value, error) { return nil, p.set(0) }), true
	}
	return nil, false
}

func (p *pwmObj) set(d int) error {
	b, err := p.in.board()
	if err != nil {
		return err
	}
	p.duty = mathx.Clamp(d, 0, board.DutyMax)
	return b.SetDuty(p.pin, p.duty)
}

type adcObj struct {
	in  *interp
	pin int
}

func (a *adcObj) typeName() string { return "ADC" }

func (a *adcObj) attr(name string) (value, bool) {
	switch name {
	case "read", "read_u16":
		return method(name, func([]value) (value, error) {
			b, err := a.in.board()
			if err != nil {
				return nil, err
			}
			v, err := b.ReadAnalog(a.pin)
			if err != nil {
				return nil, err
			}
			if name == "read_u16" {
				return v << 4, nil
			}
			return v, nil
		}), true
	case "atten", "width":
		return method(name, func([]value) (value, error) { return nil, nil }), true
	}
	return nil, false
}

func (in *interp) machineModule() *module {
	pin := &class{
		name: "Pin",
		consts: map[string]value{
			"IN": pinIn, "OUT": pinOut, "PULL_UP": pinPullUp, "PULL_DOWN": pinPullDown,
		},
		ctor: func(_ context.Context, args []value, kw map[string]value) (value, error) {
			id, err := pinID(first(args))
			if err != nil {
				return nil, err
			}
			p := &pinObj{in: in, id: id}
			return p, p.init(args, kw)
		},
	}
	pwm := &class{
		name: "PWM",
		ctor: func(_ context.Context, args []value, kw map[string]value) (value, error) {
			id, err := pinID(first(args))
			if err != nil {
				return nil, err
			}
			p := &pwmObj{in: in, pin: id}
			if f, ok := toInt(kw["freq"]); ok {
				p.freq = f
			}
			if d, ok := kw["duty"]; ok {
				n, ok := toInt(d)
				if !ok {
					return nil, errString("duty must be a number")
				}
				return p, p.set(n)
			}
			return p, nil
		},
	}
	adc := &class{
		name: "ADC",
		consts: map[string]value{
			"ATTN_0DB": 0, "ATTN_2_5DB": 1, "ATTN_6DB": 2, "ATTN_11DB": 3,
			"WIDTH_9BIT": 0, "WIDTH_10BIT": 1, "WIDTH_11BIT": 2, "WIDTH_12BIT": 3,
		},
		ctor: func(_ context.Context, args []value, _ map[string]value) (value, error) {
			id, err := pinID(first(args))
			if err != nil {
				return nil, err
			}
			return &adcObj{in: in, pin: id}, nil
		},
	}
	return &module{name: "machine", globals: map[string]value{"Pin": pin, "PWM": pwm, "ADC": adc}}
}

// ---- time ----

// seconds converts a numeric argument scaled by unit to a Duration.
func seconds(v value, unit time.Duration) (time.Duration, error) {
	f, ok := toFloat(v)
	if !ok {
		return 0, errString("sleep duration must be a number")
	}
	return time.Duration(f * float64(unit)), nil
}

// blockingSleep does not observe cancellation.
func blockingSleep(unit time.Duration) *builtin {
	return method("sleep", func(args []value) (value, error) {
		d, err := seconds(first(args), unit)
		if err != nil {
			return nil, err
		}
		if d > 0 {
			time.Sleep(d)
		}
		return nil, nil
	})
}

func timeModule(name string) *module {
	return &module{name: name, globals: map[string]value{
		"sleep":    blockingSleep(time.Second),
		"sleep_ms": blockingSleep(time.Millisecond),
		"sleep_us": blockingSleep(time.Microsecond),
		"ticks_ms": method("ticks_ms", func([]value) (value, error) { return int(timex.TicksMs()), nil }),
		"ticks_diff": method("ticks_diff", func(args []value) (value, error) {
			if len(args) != 2 {
				return nil, errString("ticks_diff() takes two arguments")
			}
			a, ok1 := toIntStrict(args[0])
			b, ok2 := toIntStrict(args[1])
			if !ok1 || !ok2 {
				return nil, errString("ticks_diff() arguments must be integers")
			}
			return a - b, nil
		}),
		"time": method("time", func([]value) (value, error) { return int(timex.NowMs() / 1000), nil }),
	}}
}

// ---- asyncio ----

// sleeper suspends the awaiting routine and is where cancellation lands.
type sleeper struct{ d time.Duration }

// The caller holds in.runMu; it is released for the duration of the sleep.
func (s sleeper) wait(ctx context.Context, in *interp) (value, error) {
	in.runMu.Unlock()
	ok := timex.Sleep(ctx, s.d)
	in.runMu.Lock()
	if !ok {
		return nil, ctx.Err()
	}
	return nil, nil
}

func asyncSleep(name string, unit time.Duration) *builtin {
	return method(name, func(args []value) (value, error) {
		d, err := seconds(first(args), unit)
		if err != nil {
			return nil, err
		}
		return sleeper{d: d}, nil
	})
}

func asyncioModule(name string) *module {
	return &module{name: name, globals: map[string]value{
		"sleep":    asyncSleep("sleep", time.Second),
		"sleep_ms": asyncSleep("sleep_ms", time.Millisecond),
	}}
}

// ---- neopixel ----

type strip struct {
	in  *interp
	pin int
	px  []board.RGB
}

func (s *strip) typeName() string { return "NeoPixel" }
func (s *strip) size() int        { return len(s.px) }

func (s *strip) attr(name string) (value, bool) {
	switch name {
	case "n":
		return len(s.px), true
	case "write":
		return method(name, func([]value) (value, error) {
			b, err := s.in.board()
			if err != nil {
				return nil, err
			}
			return nil, b.WritePixels(s.pin, append([]board.RGB(nil), s.px...))
		}), true
	case "fill":
		return method(name, func(args []value) (value, error) {
			c, err := color(first(args))
			if err != nil {
				return nil, err
			}
			for i := range s.px {
				s.px[i] = c
			}
			return nil, nil
		}), true
	}
	return nil, false
}

func (s *strip) getIndex(i value) (value, error) {
	n, ok := toIntStrict(i)
	if !ok {
		return nil, errString("pixel index must be an integer")
	}
	n, err := norm(n, len(s.px))
	if err != nil {
		return nil, err
	}
	c := s.px[n]
	return tuple{int(c.R), int(c.G), int(c.B)}, nil
}

func (s *strip) setIndex(i, v value) error {
	n, ok := toIntStrict(i)
	if !ok {
		return errString("pixel index must be an integer")
	}
	n, err := norm(n, len(s.px))
	if err != nil {
		return err
	}
	c, err := color(v)
	if err != nil {
		return err
	}
	s.px[n] = c
	return nil
}

func color(v value) (board.RGB, error) {
	items, err := iterate(v)
	if err != nil || len(items) < 3 {
		return board.RGB{}, errString("colour must be an (r, g, b) tuple")
	}
	var c [3]uint8
	for k := 0; k < 3; k++ {
		n, ok := toInt(items[k])
		if !ok {
			return board.RGB{}, errString("colour components must be numbers")
		}
		c[k] = uint8(mathx.Clamp(n, 0, 255))
	}
	return board.RGB{R: c[0], G: c[1], B: c[2]}, nil
}

// maxPixels bounds a strip allocation.
const maxPixels = 1024

func (in *interp) neopixelModule() *module {
	np := &class{
		name: "NeoPixel",
		ctor: func(_ context.Context, args []value, _ map[string]value) (value, error) {
			if len(args) < 2 {
				return nil, errString("NeoPixel(pin, n) takes two arguments")
			}
			id, err := pinID(args[0])
			if err != nil {
				return nil, err
			}
			n, ok := toIntStrict(args[1])
			if !ok || n < 0 || n > maxPixels {
				return nil, errString("bad pixel count")
			}
			return &strip{in: in, pin: id, px: make([]board.RGB, n)}, nil
		},
	}
	return &module{name: "neopixel", globals: map[string]value{"NeoPixel": np}}
}
