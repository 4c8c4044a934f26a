// Package telemetry samples the configured channels and broadcasts a
// reading to connected peers on a timer.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"neolink-go/bus"
	"neolink-go/errcode"
	"neolink-go/types"
	"neolink-go/x/mathx"
	"neolink-go/x/timex"
)

var (
	TopicReading = bus.T("telemetry", "reading")
	topicConfig  = bus.T("config", "telemetry")
)

// Sampler is the part of the board the publisher reads.
type Sampler interface {
	ReadAnalog(n int) (int, error)
	ReadDistance(trigger, echo int) (float64, error)
}

type Peers interface{ HasAny() bool }

type Writer interface{ Write(p []byte) error }

type Config struct {
	Channels []types.ChannelConfig
	Timing   types.TelemetryConfig
	Board    Sampler
	Peers    Peers
	Out      Writer
	Conn     *bus.Connection // optional; readings are mirrored on TopicReading
	Log      *slog.Logger
}

type Publisher struct {
	cfg    Config
	log    *slog.Logger
	timing types.TelemetryConfig
}

func New(c Config) *Publisher {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	p := &Publisher{cfg: c, log: c.Log}
	p.setTiming(c.Timing)
	return p
}

func (p *Publisher) setTiming(t types.TelemetryConfig) {
	if t.StreamMS <= 0 {
		t.StreamMS = 200
	}
	if t.IdleMS <= 0 {
		t.IdleMS = 1000
	}
	if t.BackoffMS < 0 {
		t.BackoffMS = 0
	}
	p.timing = t
}

// Sample reads every channel in order. A failing channel is logged and
// left nil; it never fails the whole reading.
func (p *Publisher) Sample() (types.Reading, bool) {
	r := types.Reading{TS: timex.TicksMs(), Values: make([]types.ChannelValue, 0, len(p.cfg.Channels))}
	ok := true
	for _, ch := range p.cfg.Channels {
		v, err := p.read(ch)
		if err != nil {
			ok = false
			p.log.Warn("channel sample failed", "channel", ch.ID,
				"err", errcode.Wrap(errcode.SampleFailed, string(ch.Kind), err))
			r.Values = append(r.Values, types.ChannelValue{ID: ch.ID})
			continue
		}
		r.Values = append(r.Values, types.ChannelValue{ID: ch.ID, Value: &v})
	}
	return r, ok
}

func (p *Publisher) read(ch types.ChannelConfig) (float64, error) {
	switch ch.Kind {
	case types.ChannelDistance:
		echo := ch.Echo
		if echo == 0 {
			echo = ch.Pin
		}
		cm, err := p.cfg.Board.ReadDistance(ch.Pin, echo)
		if err != nil {
			return 0, err
		}
		return mathx.Round(cm, 2), nil
	case types.ChannelAnalog, "":
		n, err := p.cfg.Board.ReadAnalog(ch.Pin)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	default:
		return 0, errcode.Unsupported
	}
}

// Tick runs one publisher step and returns the delay before the next one.
// Nothing is sampled or written while no peer is connected.
func (p *Publisher) Tick() time.Duration {
	t := p.timing
	if p.cfg.Peers == nil || !p.cfg.Peers.HasAny() {
		return timex.Ms(t.IdleMS)
	}
	next := timex.Ms(t.StreamMS)
	backoff := next + timex.Ms(t.BackoffMS)

	r, ok := p.Sample()
	if !ok {
		next = backoff
	}
	if !r.HasValue() {
		return next
	}
	b, err := json.Marshal(r)
	if err != nil {
		p.log.Warn("encode reading", "err", err)
		return backoff
	}
	if err := p.cfg.Out.Write(append(b, '\n')); err != nil {
		p.log.Warn("broadcast reading", "err", err)
		return backoff
	}
	if p.cfg.Conn != nil {
		p.cfg.Conn.Publish(p.cfg.Conn.NewMessage(TopicReading, r, false))
	}
	return next
}

// Run ticks until ctx is done. Timing updates published on config/telemetry
// apply from the next tick.
func (p *Publisher) Run(ctx context.Context) error {
	var cfgCh <-chan *bus.Message
	if p.cfg.Conn != nil {
		sub := p.cfg.Conn.Subscribe(topicConfig)
		defer p.cfg.Conn.Unsubscribe(sub)
		cfgCh = sub.Channel()
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("telemetry stopping")
			return nil
		case msg, ok := <-cfgCh:
			if !ok {
				cfgCh = nil
				continue
			}
			if t, ok := msg.Payload.(types.TelemetryConfig); ok {
				p.setTiming(t)
				p.log.Info("telemetry timing updated", "stream_ms", p.timing.StreamMS, "idle_ms", p.timing.IdleMS)
			}
		case <-timer.C:
			timer.Reset(p.Tick())
		}
	}
}
