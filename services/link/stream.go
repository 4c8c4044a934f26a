package link

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"neolink-go/errcode"
	"neolink-go/x/timex"
)

// Dialer opens the byte stream behind a Stream transport.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Stream carries the line protocol over one point-to-point byte stream
// (a UART, stdio). It has a single implicit peer that connects when the
// stream opens and disconnects when it fails. A failed stream is redialled
// with backoff unless Once is set.
type Stream struct {
	Name string
	Dial Dialer
	Once bool
	Log  *slog.Logger

	mu  sync.Mutex
	rwc io.ReadWriteCloser
}

// streamPeer is the handle of the single peer on a stream.
const streamPeer Handle = "stream"

func (s *Stream) String() string { return s.Name }

func (s *Stream) Start(ctx context.Context, ev Events) error {
	if s.Dial == nil {
		return errors.New(s.Name + ": no dialer")
	}
	if s.Log == nil {
		s.Log = slog.Default()
	}
	go s.run(ctx, ev)
	return nil
}

func (s *Stream) run(ctx context.Context, ev Events) {
	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for ctx.Err() == nil {
		rwc, err := s.Dial(ctx)
		if err != nil {
			if s.Once {
				s.Log.Error("stream open failed", "transport", s.Name, "err", err)
				return
			}
			delay := backoff()
			s.Log.Warn("stream open failed, retrying", "transport", s.Name, "err", err, "retry_in", delay)
			if !timex.Sleep(ctx, delay) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.rwc = rwc
		s.mu.Unlock()
		ev.OnConnect(streamPeer)

		err = s.pump(ctx, rwc, ev)

		s.mu.Lock()
		s.rwc = nil
		s.mu.Unlock()
		_ = rwc.Close()
		ev.OnDisconnect(streamPeer)

		if s.Once || ctx.Err() != nil {
			return
		}
		delay := backoff()
		s.Log.Warn("stream lost, retrying", "transport", s.Name, "err", err, "retry_in", delay)
		if !timex.Sleep(ctx, delay) {
			return
		}
	}
}

func (s *Stream) pump(ctx context.Context, r io.Reader, ev Events) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		if s.rwc != nil {
			_ = s.rwc.Close()
		}
		s.mu.Unlock()
	})
	defer stop()
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			ev.OnData(streamPeer, append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			return err
		}
	}
}

func (s *Stream) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rwc == nil {
		return errcode.NotConnected
	}
	_, err := s.rwc.Write(p)
	return err
}

func (s *Stream) Close(h Handle) error {
	if h != streamPeer {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rwc == nil {
		return nil
	}
	return s.rwc.Close()
}

// Advertise is a no-op: a stream is always reachable.
func (s *Stream) Advertise() error { return nil }

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}
