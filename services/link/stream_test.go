//go:build !baremetal

package link

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	data   bytes.Buffer
	gone   chan struct{}
}

func (r *recorder) OnConnect(h Handle) { r.add("connect " + string(h)) }
func (r *recorder) OnDisconnect(h Handle) {
	r.add("disconnect " + string(h))
	close(r.gone)
}
func (r *recorder) OnData(_ Handle, p []byte) {
	r.mu.Lock()
	r.data.Write(p)
	r.mu.Unlock()
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.events = append(r.events, s)
	r.mu.Unlock()
}

func TestStdioStream(t *testing.T) {
	pr, pw := io.Pipe()
	var out syncBuffer
	s := NewStdio(pr, &out, quiet())
	rec := &recorder{gone: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx, rec); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := pw.Write([]byte(`{"mode":"start"}` + "\n")); err != nil {
		t.Fatalf("pipe write: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for {
		if err := s.Write([]byte("ok\n")); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("stream never connected")
		}
		time.Sleep(time.Millisecond)
	}
	_ = pw.Close()

	select {
	case <-rec.gone:
	case <-time.After(time.Second):
		t.Fatal("no disconnect at EOF")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.data.String() != `{"mode":"start"}`+"\n" {
		t.Fatalf("data = %q", rec.data.String())
	}
	if len(rec.events) != 2 || rec.events[0] != "connect stream" || rec.events[1] != "disconnect stream" {
		t.Fatalf("events = %v", rec.events)
	}
	if out.String() != "ok\n" {
		t.Fatalf("written = %q", out.String())
	}
}

func TestBackoffSeq(t *testing.T) {
	next := backoffSeq(10*time.Millisecond, 35*time.Millisecond)
	want := []time.Duration{10, 20, 35, 35}
	for i, w := range want {
		if d := next(); d != w*time.Millisecond {
			t.Fatalf("step %d = %v, want %v", i, d, w*time.Millisecond)
		}
	}
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
