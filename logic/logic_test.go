//go:build !baremetal

package logic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"neolink-go/errcode"
	"neolink-go/services/board"
)

type printCapture struct {
	mu    sync.Mutex
	lines []string
}

func (p *printCapture) print(s string) {
	p.mu.Lock()
	p.lines = append(p.lines, s)
	p.mu.Unlock()
}

func (p *printCapture) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func newTestInterp(b board.Board) (*Interpreter, *printCapture) {
	pc := &printCapture{}
	return New(Env{
		Board: b,
		Print: pc.print,
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}), pc
}

func runMain(t *testing.T, b board.Board, src string) []string {
	t.Helper()
	in, pc := newTestInterp(b)
	pair, err := in.Load(context.Background(), src, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := pair.Main.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return pc.snapshot()
}

func TestExpressions(t *testing.T) {
	cases := []struct {
		expr, want string
	}{
		{"1 + 2 * 3", "7"},
		{"(1 + 2) * 3", "9"},
		{"7 // 2", "3"},
		{"-7 // 2", "-4"},
		{"7 / 2", "3.5"},
		{"-7 % 3", "2"},
		{"2.0 * 3", "6.0"},
		{"0x10 + 1", "17"},
		{"'a' + \"b\"", "ab"},
		{"1 < 2 and 3", "3"},
		{"0 or 'x'", "x"},
		{"not 1", "False"},
		{"1 <= 1 != 2", "True"},
		{"[1, 2] + [3]", "[1, 2, 3]"},
		{"len('abc')", "3"},
		{"max(1, 5, 3)", "5"},
		{"min([4, 2])", "2"},
		{"abs(-3)", "3"},
		{"round(2.5)", "2"},
		{"round(1.234, 1)", "1.2"},
		{"int('12') + 1", "13"},
		{"int(3.9)", "3"},
		{"str(1.5)", "1.5"},
		{"float(2)", "2.0"},
		{"range(3)", "[0, 1, 2]"},
		{"range(5, 0, -2)", "[5, 3, 1]"},
		{"3 in [1, 2, 3]", "True"},
		{"'z' not in 'abc'", "True"},
		{"(1,)", "(1,)"},
		{"None", "None"},
		{"'ab'[1]", "b"},
		{"[1, 2, 3][-1]", "3"},
		{"'a,b'.split(',')", "['a', 'b']"},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got := runMain(t, nil, "def mainLoop():\n    print("+tc.expr+")\n")
			if len(got) != 1 || got[0] != tc.want {
				t.Fatalf("print(%s) = %q, want %q", tc.expr, got, tc.want)
			}
		})
	}
}

func TestStatements(t *testing.T) {
	src := `total = 0

def add(n):
    global total
    total += n
    return total

def mainLoop():
    for i in range(5):
        if i == 1:
            continue
        elif i == 4:
            break
        else:
            add(i)
    print(total)
    xs = [0, 0]
    xs[1] = 7
    xs[1] += 1
    xs.append(9)
    print(xs)
    n = 0
    while n < 3: n += 1
    print(n)
    if n == 3: print("three")
    print("a", "b", sep="-")
`
	got := runMain(t, nil, src)
	want := []string{"5", "[0, 8, 9]", "3", "three", "a-b"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestMachinePeripherals(t *testing.T) {
	sim := board.NewSim(nil)
	sim.SetAnalog(26, 1234)
	src := `from machine import Pin, PWM, ADC
import neopixel

def mainLoop():
    led = Pin(2, Pin.OUT)
    led.on()
    PWM(Pin(4), freq=1000, duty=2000)
    print(ADC(Pin(26)).read())
    np = neopixel.NeoPixel(Pin(5), 2)
    np[1] = (0, 0, 300)
    np.write()
    print(len(np), np[1])
`
	got := runMain(t, sim, src)
	if strings.Join(got, "|") != "1234|2 (0, 0, 255)" {
		t.Fatalf("output = %q", got)
	}
	if !sim.Pin(2) {
		t.Fatal("pin 2 not driven high")
	}
	if sim.Duty(4) != board.DutyMax {
		t.Fatalf("duty = %d, want clamped to %d", sim.Duty(4), board.DutyMax)
	}
	px := sim.Pixels(5)
	if len(px) != 2 || px[1] != (board.RGB{B: 255}) || px[0] != (board.RGB{}) {
		t.Fatalf("pixels = %v", px)
	}
}

func TestMainRoutineStopsAtSuspensionPoint(t *testing.T) {
	in, pc := newTestInterp(nil)
	src := "import uasyncio as asyncio\n\nasync def mainLoop():\n    while True:\n        await asyncio.sleep(0)\n        print('tick')\n"
	pair, err := in.Load(context.Background(), src, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pair.Main.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for len(pc.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("routine never ran")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("routine did not observe cancellation")
	}
}

func TestHandlers(t *testing.T) {
	sim := board.NewSim(nil)
	in, _ := newTestInterp(sim)
	handlers := `import uasyncio as asyncio
from machine import Pin
import neopixel

async def key_a_pressed():
    led = Pin(2, Pin.OUT)
    led.value(1)
    await asyncio.sleep(0)

def helper():
    pass
`
	pair, err := in.Load(context.Background(), "def mainLoop():\n    pass\n", handlers)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := strings.Join(pair.Handlers.Names(), ","); got != "helper,key_a_pressed" {
		t.Fatalf("Names = %s", got)
	}
	h, err := pair.Handlers.Lookup("key_a_pressed")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if err := h.Invoke(context.Background()); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !sim.Pin(2) {
		t.Fatal("handler did not drive pin 2")
	}
	if _, err := pair.Handlers.Lookup("key_b_pressed"); !errors.Is(err, errcode.NoHandler) {
		t.Fatalf("missing handler error = %v", err)
	}
}

func TestLoadFailures(t *testing.T) {
	cases := []struct {
		name     string
		main     string
		handlers string
		line     int // 0 when the failure is not a syntax error
	}{
		{"no mainLoop", "def other():\n    pass\n", "", 0},
		{"unknown module", "import socket\ndef mainLoop():\n    pass\n", "", 0},
		{"unclosed bracket", "def mainLoop(:\n    pass\n", "", 1},
		{"missing block", "def mainLoop():\nprint(1)\n", "", 1},
		{"await outside async", "def mainLoop():\n    await x\n", "", 2},
		{"class", "class A:\n    pass\n", "", 1},
		{"try", "def mainLoop():\n    try:\n        pass\n", "", 2},
		{"bad indent", "def mainLoop():\n    x = 1\n      y = 2\n", "", 3},
		{"break outside loop", "def mainLoop():\n    break\n", "", 2},
		{"bad handler", "def mainLoop():\n    pass\n", "async def key_a_pressed()\n    pass\n", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, _ := newTestInterp(nil)
			_, err := in.Load(context.Background(), tc.main, tc.handlers)
			if err == nil {
				t.Fatal("expected load failure")
			}
			if errcode.Of(err) != errcode.LoadFailed {
				t.Fatalf("code = %s, want %s (%v)", errcode.Of(err), errcode.LoadFailed, err)
			}
			if tc.line == 0 {
				return
			}
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("not a syntax error: %v", err)
			}
			if se.Line != tc.line {
				t.Fatalf("line = %d, want %d (%v)", se.Line, tc.line, err)
			}
		})
	}
}

func TestRuntimeErrorCarriesLine(t *testing.T) {
	in, _ := newTestInterp(nil)
	pair, err := in.Load(context.Background(), "def mainLoop():\n    x = 1\n    y = x / 0\n", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = pair.Main.Run(context.Background())
	var re *RuntimeError
	if !errors.As(err, &re) || re.Line != 3 {
		t.Fatalf("Run error = %v, want runtime error on line 3", err)
	}
}

func TestRecursionIsBounded(t *testing.T) {
	in, _ := newTestInterp(nil)
	pair, err := in.Load(context.Background(), "def f():\n    f()\n\ndef mainLoop():\n    f()\n", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := pair.Main.Run(context.Background()); err == nil {
		t.Fatal("expected recursion error")
	}
}

func TestHandlersInterleaveOnlyAtSuspension(t *testing.T) {
	in, pc := newTestInterp(board.NewSim(nil))
	main := `import uasyncio as asyncio

async def mainLoop():
    while True:
        await asyncio.sleep(0)
        import time
        print('m')
        print('m2')
`
	handlers := `import uasyncio as asyncio

def key_a_pressed():
    import utime
    import machine
    print('k')
`
	pair, err := in.Load(context.Background(), main, handlers)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h, err := pair.Handlers.Lookup("key_a_pressed")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pair.Main.Run(ctx) }()

	for i := 0; i < 50; i++ {
		if err := h.Invoke(context.Background()); err != nil {
			t.Fatalf("Invoke %d: %v", i, err)
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main routine did not stop")
	}

	lines := pc.snapshot()
	keys := 0
	for i, l := range lines {
		switch l {
		case "k":
			keys++
		case "m":
			if i+1 < len(lines) && lines[i+1] != "m2" {
				t.Fatalf("handler ran between two statements of the main routine: %q", lines[i:i+2])
			}
		}
	}
	if keys != 50 {
		t.Fatalf("handler ran %d times", keys)
	}
}
