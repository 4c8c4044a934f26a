//go:build !baremetal

package link

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"neolink-go/types"
)

func init() {
	RegisterTransport("ws", func(cfg types.BoardConfig, log *slog.Logger) (Transport, error) {
		addr := cfg.Transport.Listen
		if addr == "" {
			addr = "127.0.0.1:8765"
		}
		return NewWS(addr, log), nil
	})
}

// WS serves the line protocol to websocket clients, one peer per
// connection. Frames carry raw protocol bytes; framing into records
// happens downstream, so a frame need not hold whole lines.
type WS struct {
	addr string
	log  *slog.Logger

	mu    sync.Mutex
	peers map[Handle]*websocket.Conn
	seq   atomic.Uint64
	ln    net.Listener
	ctx   context.Context
}

const wsWriteTimeout = 5 * time.Second

func NewWS(addr string, log *slog.Logger) *WS {
	if log == nil {
		log = slog.Default()
	}
	return &WS{addr: addr, log: log, peers: map[Handle]*websocket.Conn{}}
}

func (w *WS) String() string { return "ws" }

// Addr is the bound listen address once Start has returned.
func (w *WS) Addr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ln == nil {
		return w.addr
	}
	return w.ln.Addr().String()
}

func (w *WS) Start(ctx context.Context, ev Events) error {
	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.ln = ln
	w.ctx = ctx
	w.mu.Unlock()

	srv := &http.Server{
		Handler:           http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) { w.serve(rw, r, ev) }),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("ws server stopped", "err", err)
		}
	}()
	w.log.Info("ws transport listening", "addr", ln.Addr().String())
	return nil
}

func (w *WS) serve(rw http.ResponseWriter, r *http.Request, ev Events) {
	c, err := websocket.Accept(rw, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		w.log.Warn("ws accept failed", "err", err)
		return
	}
	h := Handle(r.RemoteAddr + "#" + strconv.FormatUint(w.seq.Add(1), 10))

	w.mu.Lock()
	w.peers[h] = c
	ctx := w.ctx
	w.mu.Unlock()

	ev.OnConnect(h)
	defer func() {
		w.mu.Lock()
		delete(w.peers, h)
		w.mu.Unlock()
		_ = c.Close(websocket.StatusNormalClosure, "")
		ev.OnDisconnect(h)
	}()

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		ev.OnData(h, data)
	}
}

// Write sends p to every peer. It returns the last per-peer error.
func (w *WS) Write(p []byte) error {
	w.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(w.peers))
	for _, c := range w.peers {
		conns = append(conns, c)
	}
	w.mu.Unlock()

	var last error
	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		if err := c.Write(ctx, websocket.MessageText, p); err != nil {
			last = err
		}
		cancel()
	}
	return last
}

func (w *WS) Close(h Handle) error {
	w.mu.Lock()
	c, ok := w.peers[h]
	w.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Close(websocket.StatusNormalClosure, "closed by device")
}

// Advertise is a no-op: the listener stays open.
func (w *WS) Advertise() error { return nil }
