package config

import (
	"testing"
	"time"

	"neolink-go/bus"
	"neolink-go/errcode"
	"neolink-go/types"
)

func TestMagicbitProfile(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Name != "Neo" || c.Transport.Type != "ble" {
		t.Fatalf("name/transport = %q/%q", c.Name, c.Transport.Type)
	}
	if len(c.ResetPins) != 20 || c.ResetPins[0] != 0 || c.ResetPins[19] != 33 {
		t.Fatalf("reset pins = %v", c.ResetPins)
	}
	if len(c.Channels) != 16 {
		t.Fatalf("channels = %d", len(c.Channels))
	}
	last := c.Channels[len(c.Channels)-1]
	if last.ID != "26" || last.Kind != types.ChannelDistance {
		t.Fatalf("ultrasound channel = %+v", last)
	}
	if c.Chime != (types.ChimeConfig{Pin: 25, Hz: 1000, MS: 200}) {
		t.Fatalf("chime = %+v", c.Chime)
	}
	if c.Storage.Main != "main.py" || c.Storage.Handlers != "keyboardhandler.py" || c.Storage.ResetFlag != "reset.txt" {
		t.Fatalf("storage = %+v", c.Storage)
	}
}

func TestEveryEmbeddedProfileLoads(t *testing.T) {
	names := Boards()
	if len(names) < 3 {
		t.Fatalf("profiles = %v", names)
	}
	for _, n := range names {
		if _, err := Load(n); err != nil {
			t.Errorf("%s: %v", n, err)
		}
	}
}

func TestUnknownBoard(t *testing.T) {
	old := EmbeddedLookup
	EmbeddedLookup = func(string) ([]byte, bool) { return nil, false }
	t.Cleanup(func() { EmbeddedLookup = old })
	if _, err := Load("pico"); err == nil {
		t.Fatal("expected error for missing profile")
	}
}

func TestOverlayFormats(t *testing.T) {
	base, _ := Load("host")

	c := base
	if err := Overlay(&c, "dev.yaml", []byte("name: Bench\ntelemetry:\n  stream_ms: 50\n")); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if c.Name != "Bench" || c.Telemetry.StreamMS != 50 || c.Telemetry.IdleMS != 1000 {
		t.Fatalf("yaml overlay = %+v", c)
	}

	c = base
	if err := Overlay(&c, "dev.jsonc", []byte(`{
		// trailing commas and comments are fine
		"transport": {"type": "stdio",},
	}`)); err != nil {
		t.Fatalf("jsonc: %v", err)
	}
	if c.Transport.Type != "stdio" {
		t.Fatalf("transport = %+v", c.Transport)
	}

	if err := Overlay(&c, "dev.toml", nil); errcode.Of(err) != errcode.Unsupported {
		t.Fatalf("toml err = %v", err)
	}
}

func TestNormalizeClamps(t *testing.T) {
	c := types.BoardConfig{
		Channels:  []types.ChannelConfig{{Pin: 7}},
		Telemetry: types.TelemetryConfig{StreamMS: 1, IdleMS: 999999},
		Command:   types.CommandConfig{MaxLineBytes: 10, RxRingBytes: 3000},
	}
	Normalize(&c)
	if c.Telemetry.StreamMS != 10 || c.Telemetry.IdleMS != 60000 || c.Telemetry.BackoffMS != 500 {
		t.Fatalf("telemetry = %+v", c.Telemetry)
	}
	if c.Command.MaxLineBytes != 256 || c.Command.RxRingBytes != 4096 || c.Command.PollMS != 10 {
		t.Fatalf("command = %+v", c.Command)
	}
	if c.Channels[0].ID != "7" || c.Channels[0].Kind != types.ChannelAnalog {
		t.Fatalf("channel = %+v", c.Channels[0])
	}
	if c.Name != "Neo" || c.Transport.Type != "ble" {
		t.Fatalf("defaults = %q %q", c.Name, c.Transport.Type)
	}
}

func TestPublishRetainedSections(t *testing.T) {
	c, _ := Load("host")
	b := bus.NewBus(8)
	conn := b.NewConnection("test-config")
	Publish(conn, c)

	sub := conn.Subscribe(bus.T(configPrefix, "telemetry"))
	select {
	case m := <-sub.Channel():
		if tc, ok := m.Payload.(types.TelemetryConfig); !ok || tc != c.Telemetry {
			t.Fatalf("payload = %#v", m.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no retained telemetry config")
	}
}
