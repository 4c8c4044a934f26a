//go:build !baremetal

package runtime

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"neolink-go/errcode"
	"neolink-go/services/board"
	"neolink-go/services/boot"
	"neolink-go/services/config"
	"neolink-go/services/ingest"
	"neolink-go/services/link"
	"neolink-go/services/store"
	"neolink-go/types"
)

type fakeTransport struct {
	mu      sync.Mutex
	ev      link.Events
	writes  [][]byte
	started chan struct{}
}

func newFakeTransport() *fakeTransport { return &fakeTransport{started: make(chan struct{})} }

func (f *fakeTransport) Start(ctx context.Context, ev link.Events) error {
	f.mu.Lock()
	f.ev = ev
	f.mu.Unlock()
	close(f.started)
	return nil
}

func (f *fakeTransport) Write(p []byte) error {
	f.mu.Lock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close(link.Handle) error { return nil }
func (f *fakeTransport) Advertise() error        { return nil }
func (f *fakeTransport) String() string          { return "fake" }

func (f *fakeTransport) wrote(want []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.writes {
		if bytes.Equal(w, want) {
			return true
		}
	}
	return false
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type rig struct {
	rt     *Runtime
	tr     *fakeTransport
	sim    *board.Sim
	ram    *store.RAM
	failed chan error
	cancel context.CancelFunc
	done   chan error
}

func start(t *testing.T, seed func(*store.RAM)) *rig {
	t.Helper()
	cfg, err := config.Load("host")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Telemetry.IdleMS = 10
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := &rig{tr: newFakeTransport(), sim: board.NewSim(log), ram: store.NewRAM(), failed: make(chan error, 4), done: make(chan error, 1)}
	if seed != nil {
		seed(g.ram)
	}
	g.rt, err = New(Options{
		Config:    cfg,
		Board:     g.sim,
		Store:     g.ram,
		Transport: g.tr,
		Monitor:   true,
		OnFailure: func(err error) { g.failed <- err },
		Log:       log,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	go func() { g.done <- g.rt.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-g.done:
		case <-time.After(2 * time.Second):
			t.Error("Run did not stop")
		}
	})
	return g
}

func (g *rig) send(lines ...string) {
	g.tr.ev.OnData("p1", []byte(strings.Join(lines, "\n")+"\n"))
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUploadScenario(t *testing.T) {
	g := start(t, nil)
	<-g.tr.started

	prints := g.rt.Bus().NewConnection("test").Subscribe(TopicPrint)

	g.tr.ev.OnConnect("p1")
	eventually(t, "connect chime", func() bool { return g.sim.Chimes() == 1 })

	g.send(
		`{"mode":"start"}`,
		`{"mode":"upload","data":"print(1)"}`,
		`{"mode":"upload","data":"print(2)"}`,
		`{"mode":"end"}`,
	)
	eventually(t, "upload ack", func() bool { return g.tr.wrote(types.UploadComplete) })

	b, err := g.ram.ReadFile("main.py")
	if err != nil {
		t.Fatalf("main artifact: %v", err)
	}
	if got := ingest.UnwrapMain(string(b)); got != "print(1)\nprint(2)\n" {
		t.Fatalf("unwrapped main = %q", got)
	}

	want := []string{"1", "2"}
	for len(want) > 0 {
		select {
		case m := <-prints.Channel():
			line := m.Payload.(types.PrintLine).Text
			if line == want[0] {
				want = want[1:]
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("missing print output %v", want)
		}
	}

	g.send(`{"mode":"get_analog_data"}`)
	eventually(t, "streaming ack", func() bool {
		return g.tr.wrote([]byte(`{"ack":"get_analog_data","message":"Analog data streaming"}` + "\n"))
	})
}

func TestMalformedUploadRecovers(t *testing.T) {
	g := start(t, nil)
	<-g.tr.started
	g.tr.ev.OnConnect("p1")
	g.send(`{"mode":"start"}`, `{"mode":"upload","data":"if :"}`, `{"mode":"end"}`)
	select {
	case err := <-g.failed:
		if errcode.Of(err) != errcode.LoadFailed {
			t.Fatalf("failure = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("failure policy never ran")
	}
}

func TestBadRecordsNeverEscalate(t *testing.T) {
	g := start(t, nil)
	<-g.tr.started
	g.tr.ev.OnConnect("p1")
	g.send(`not json`, `{"data":"x"}`, `{"mode":"keypress","data":"nope"}`, `{"mode":"mystery"}`, `{"mode":"get_analog_data"}`)
	eventually(t, "ack after bad records", func() bool {
		return g.tr.wrote([]byte(`{"ack":"get_analog_data","message":"Analog data streaming"}` + "\n"))
	})
	select {
	case err := <-g.failed:
		t.Fatalf("bad records escalated: %v", err)
	default:
	}
}

func TestIdleWritesNothing(t *testing.T) {
	g := start(t, nil)
	<-g.tr.started
	time.Sleep(100 * time.Millisecond)
	if n := g.tr.count(); n != 0 {
		t.Fatalf("writes without peers = %d", n)
	}
}

func TestBrokenArtifactFailsBoot(t *testing.T) {
	g := start(t, func(s *store.RAM) {
		_ = s.WriteFile("main.py", []byte("async def mainLoop(:\n"))
		_ = s.WriteFile("keyboardhandler.py", []byte(boot.DefaultHandlers))
	})
	select {
	case err := <-g.done:
		if errcode.Of(err) != errcode.BootFailed {
			t.Fatalf("Run = %v", err)
		}
		g.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept going with a broken artifact")
	}
}
