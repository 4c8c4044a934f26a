//go:build !baremetal

package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"neolink-go/bus"
	"neolink-go/services/board"
	"neolink-go/types"
)

type fakePeers struct {
	mu sync.Mutex
	n  int
}

func (f *fakePeers) HasAny() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.n > 0 }
func (f *fakePeers) set(n int)    { f.mu.Lock(); f.n = n; f.mu.Unlock() }

type fakeOut struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
}

func (f *fakeOut) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeOut) count() int { f.mu.Lock(); defer f.mu.Unlock(); return len(f.writes) }

var channels = []types.ChannelConfig{
	{ID: "32", Kind: types.ChannelAnalog, Pin: 32},
	{ID: "33", Kind: types.ChannelAnalog, Pin: 33},
	{ID: "26", Kind: types.ChannelDistance, Pin: 26},
}

var timing = types.TelemetryConfig{StreamMS: 200, IdleMS: 1000, BackoffMS: 500}

func setup() (*board.Sim, *fakePeers, *fakeOut, *Publisher) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sim := board.NewSim(log)
	peers := &fakePeers{}
	out := &fakeOut{}
	p := New(Config{Channels: channels, Timing: timing, Board: sim, Peers: peers, Out: out, Log: log})
	return sim, peers, out, p
}

func TestIdleNeverWrites(t *testing.T) {
	_, _, out, p := setup()
	for i := 0; i < 5; i++ {
		if d := p.Tick(); d != time.Second {
			t.Fatalf("idle delay = %v", d)
		}
	}
	if out.count() != 0 {
		t.Fatalf("writes while idle = %d", out.count())
	}
}

func TestStreamingReading(t *testing.T) {
	sim, peers, out, p := setup()
	peers.set(1)
	sim.SetAnalog(32, 100)
	sim.SetAnalog(33, 4095)
	sim.SetDistance(26, 12.3456)

	if d := p.Tick(); d != 200*time.Millisecond {
		t.Fatalf("stream delay = %v", d)
	}
	if out.count() != 1 {
		t.Fatalf("writes = %d", out.count())
	}
	line := out.writes[0]
	if line[len(line)-1] != '\n' {
		t.Fatal("reading not newline terminated")
	}
	var got struct {
		Type   string              `json:"type"`
		TS     int64               `json:"timestamp"`
		Analog map[string]*float64 `json:"analog"`
	}
	if err := json.Unmarshal(line, &got); err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	if got.Type != "sensors" || *got.Analog["32"] != 100 || *got.Analog["33"] != 4095 || *got.Analog["26"] != 12.35 {
		t.Fatalf("reading = %s", line)
	}
}

func TestFailingChannelIsNullAndBacksOff(t *testing.T) {
	sim, peers, out, p := setup()
	peers.set(1)
	sim.SetAnalog(32, 7)
	sim.Fail(33, errors.New("adc busy"))

	if d := p.Tick(); d != 700*time.Millisecond {
		t.Fatalf("delay after failure = %v", d)
	}
	r, ok := p.Sample()
	if ok {
		t.Fatal("Sample reported success with a failing channel")
	}
	if v, _ := r.Get("33"); v != nil {
		t.Fatal("failed channel carries a value")
	}
	if v, _ := r.Get("32"); v == nil || *v != 7 {
		t.Fatal("healthy channel lost")
	}
	if out.count() != 1 {
		t.Fatalf("writes = %d", out.count())
	}
}

func TestAllChannelsFailingSkipsWrite(t *testing.T) {
	sim, peers, out, _ := setup()
	peers.set(1)
	sim.Fail(5, errors.New("gone"))
	p := New(Config{Channels: []types.ChannelConfig{{ID: "5", Pin: 5}}, Timing: timing, Board: sim, Peers: peers, Out: out})
	p.Tick()
	if out.count() != 0 {
		t.Fatal("wrote a reading without any value")
	}
}

func TestWriteErrorBacksOff(t *testing.T) {
	_, peers, out, p := setup()
	peers.set(1)
	out.err = errors.New("not connected")
	if d := p.Tick(); d != 700*time.Millisecond {
		t.Fatalf("delay after write error = %v", d)
	}
}

func TestRunMirrorsReadingsAndStops(t *testing.T) {
	sim, peers, _, _ := setup()
	peers.set(1)
	sim.SetAnalog(32, 1)
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(TopicReading)
	out := &fakeOut{}
	p := New(Config{Channels: channels[:1], Timing: types.TelemetryConfig{StreamMS: 10, IdleMS: 10}, Board: sim, Peers: peers, Out: out, Conn: conn})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case msg := <-sub.Channel():
		if r, ok := msg.Payload.(types.Reading); !ok || len(r.Values) != 1 {
			t.Fatalf("payload = %#v", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reading published")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
