package command

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"neolink-go/services/link"
	"neolink-go/types"
	"neolink-go/x/shmring"
	"neolink-go/x/timex"
)

// Peers reports whether anyone is connected.
type Peers interface {
	HasAny() bool
}

// Service is the command loop: transport callbacks push bytes into an RX
// ring, the loop drains it through the Framer and dispatches records in
// arrival order.
type Service struct {
	cfg   types.CommandConfig
	ring  *shmring.Ring
	wmu   sync.Mutex // serialises producers onto the SPSC ring
	wrote uint64     // stream offset of the next byte written; under wmu
	gaps  []gap      // where chunks were dropped; under wmu
	read  uint64     // stream offset of the next byte read; consumer only
	fr    *Framer
	disp  *Dispatcher
	peers Peers
	log   *slog.Logger
}

func NewService(cfg types.CommandConfig, disp *Dispatcher, peers Peers, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RxRingBytes <= 0 {
		cfg.RxRingBytes = 4096
	}
	if cfg.PollMS <= 0 {
		cfg.PollMS = 10
	}
	if cfg.StatusMS <= 0 {
		cfg.StatusMS = 10000
	}
	return &Service{
		cfg:   cfg,
		ring:  shmring.New(shmring.CeilPow2(cfg.RxRingBytes)),
		fr:    NewFramer(cfg.MaxLineBytes),
		disp:  disp,
		peers: peers,
		log:   log,
	}
}

// Deliver is called from transport callbacks. It never blocks. A chunk
// that does not fit whole is dropped and its position recorded, so the
// loop can resync at the next newline instead of splicing the bytes on
// either side into one record.
func (s *Service) Deliver(h link.Handle, p []byte) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.ring.Space() < len(p) {
		s.log.Warn("rx ring full, chunk dropped", "handle", string(h), "bytes", len(p))
		g := gap{at: s.wrote, midLine: !bytes.HasSuffix(p, []byte{'\n'})}
		if n := len(s.gaps); n > 0 && s.gaps[n-1].at == s.wrote {
			s.gaps[n-1] = g
		} else {
			s.gaps = append(s.gaps, g)
		}
		return
	}
	s.wrote += uint64(s.ring.TryWriteFrom(p))
}

// gap is lost input at stream offset at. midLine is set when the input
// after it resumes inside a line.
type gap struct {
	at      uint64
	midLine bool
}

// nextGap returns the first recorded gap at or before end.
func (s *Service) nextGap(end uint64) (gap, bool) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if len(s.gaps) == 0 || s.gaps[0].at > end {
		return gap{}, false
	}
	g := s.gaps[0]
	s.gaps = s.gaps[1:]
	return g, true
}

// Run processes input until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	poll := time.NewTicker(timex.Ms(s.cfg.PollMS))
	defer poll.Stop()
	buf := make([]byte, 512)
	lastStatus := timex.TicksMs()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ring.Readable():
		case <-poll.C:
		}

		for {
			n := s.ring.TryReadInto(buf)
			if n == 0 {
				break
			}
			s.consume(ctx, buf[:n])
		}

		if now := timex.TicksMs(); now-lastStatus >= int64(s.cfg.StatusMS) {
			lastStatus = now
			s.status()
		}
	}
}

// consume feeds p, which starts at stream offset s.read, splitting it at
// every recorded gap.
func (s *Service) consume(ctx context.Context, p []byte) {
	start := s.read
	end := start + uint64(len(p))
	for {
		g, ok := s.nextGap(end)
		if !ok {
			break
		}
		at := max(g.at, start)
		i := int(at - start)
		s.feed(ctx, p[:i])
		p, start = p[i:], at
		n := s.fr.Gap(g.midLine)
		s.log.Warn("input lost, resyncing", "dropped", n, "skip_line", g.midLine)
	}
	s.feed(ctx, p)
	s.read = end
}

func (s *Service) feed(ctx context.Context, p []byte) {
	if len(p) == 0 {
		return
	}
	recs, err := s.fr.Feed(p)
	if err != nil {
		s.log.Warn("framing error", "err", err, "bytes", len(p))
	}
	for _, rec := range recs {
		s.disp.Dispatch(ctx, rec)
	}
}

func (s *Service) status() {
	if s.peers != nil && s.peers.HasAny() {
		s.log.Info("status: connected, streaming")
	} else {
		s.log.Info("status: waiting for connection")
	}
}
