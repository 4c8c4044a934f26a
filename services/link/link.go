// Package link tracks connected peers and owns the byte transports they
// reach the device over.
package link

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"neolink-go/bus"
	"neolink-go/types"
	"neolink-go/x/timex"
)

// Handle identifies one connected peer. It is opaque to everything but the
// transport that issued it.
type Handle string

// Events is what a transport reports into.
type Events interface {
	OnConnect(h Handle)
	OnDisconnect(h Handle)
	OnData(h Handle, p []byte)
}

// Transport is the capability surface the runtime consumes.
type Transport interface {
	// Start begins accepting peers and returns once the transport is
	// listening. Events are delivered until ctx is done.
	Start(ctx context.Context, ev Events) error
	// Write broadcasts p to every connected peer.
	Write(p []byte) error
	Close(h Handle) error
	// Advertise makes the device discoverable again.
	Advertise() error
	String() string
}

var TopicPeers = bus.T("link", "peers")

// Registry is the set of open handles. All operations are total.
type Registry struct {
	mu    sync.Mutex
	peers map[Handle]struct{}

	tr   Transport
	cue  func() error
	data func(h Handle, p []byte)
	conn *bus.Connection
	log  *slog.Logger
}

type Options struct {
	// Cue runs once per new peer off the callback path. Failures are logged.
	Cue func() error
	// Data receives bytes from connected peers.
	Data func(h Handle, p []byte)
	// Conn, when set, receives retained link/peers updates.
	Conn *bus.Connection
	Log  *slog.Logger
}

func NewRegistry(o Options) *Registry {
	if o.Log == nil {
		o.Log = slog.Default()
	}
	return &Registry{
		peers: map[Handle]struct{}{},
		cue:   o.Cue,
		data:  o.Data,
		conn:  o.Conn,
		log:   o.Log,
	}
}

// Attach sets the transport used for Advertise on disconnect.
func (r *Registry) Attach(tr Transport) {
	r.mu.Lock()
	r.tr = tr
	r.mu.Unlock()
}

func (r *Registry) OnConnect(h Handle) {
	r.mu.Lock()
	_, dup := r.peers[h]
	r.peers[h] = struct{}{}
	n := len(r.peers)
	r.mu.Unlock()
	if dup {
		return
	}
	r.log.Info("peer connected", "handle", string(h), "peers", n)
	r.publish(n)
	if r.cue != nil {
		go r.runCue()
	}
}

func (r *Registry) runCue() {
	defer func() {
		if p := recover(); p != nil {
			r.log.Warn("connect cue panicked", "panic", p)
		}
	}()
	if err := r.cue(); err != nil {
		r.log.Warn("connect cue failed", "err", err)
	}
}

// OnDisconnect removes h if present and always re-advertises: a
// disconnect must leave the device reconnectable.
func (r *Registry) OnDisconnect(h Handle) {
	r.mu.Lock()
	_, had := r.peers[h]
	delete(r.peers, h)
	n := len(r.peers)
	tr := r.tr
	r.mu.Unlock()
	if had {
		r.log.Info("peer disconnected", "handle", string(h), "peers", n)
		r.publish(n)
	}
	if tr != nil {
		if err := tr.Advertise(); err != nil {
			r.log.Warn("advertise failed", "err", err)
		}
	}
}

// OnData forwards bytes from connected peers and drops the rest.
func (r *Registry) OnData(h Handle, p []byte) {
	r.mu.Lock()
	_, ok := r.peers[h]
	r.mu.Unlock()
	if !ok {
		r.log.Debug("data from unknown peer dropped", "handle", string(h), "bytes", len(p))
		return
	}
	if r.data != nil {
		r.data(h, p)
	}
}

func (r *Registry) HasAny() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers) > 0
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Handles is sorted.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	out := make([]Handle, 0, len(r.peers))
	for h := range r.peers {
		out = append(out, h)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) publish(n int) {
	if r.conn == nil {
		return
	}
	r.conn.Publish(r.conn.NewMessage(TopicPeers, types.PeerState{Count: n, TS: timex.NowMs()}, true))
}
