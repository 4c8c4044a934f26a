// Package runtime wires the device together: the link registry and its
// transport, the command loop, the telemetry publisher and the reload
// manager, all sharing one bus.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"neolink-go/bus"
	"neolink-go/errcode"
	"neolink-go/logic"
	"neolink-go/services/boot"
	"neolink-go/services/board"
	"neolink-go/services/command"
	"neolink-go/services/config"
	"neolink-go/services/ingest"
	"neolink-go/services/link"
	"neolink-go/services/reload"
	"neolink-go/services/store"
	"neolink-go/services/telemetry"
	"neolink-go/types"
	"neolink-go/x/timex"
)

var TopicPrint = bus.T("logic", "print")

type Options struct {
	Config types.BoardConfig
	Board  board.Board
	Store  store.Store
	// Transport overrides the one named by Config.Transport.Type.
	Transport link.Transport
	// Bus is created when nil.
	Bus *bus.Bus
	// Monitor logs every bus message at debug level.
	Monitor bool
	// OnFailure replaces the default recovery (write defaults, restart).
	OnFailure func(error)
	Log       *slog.Logger
}

type Runtime struct {
	cfg   types.BoardConfig
	log   *slog.Logger
	bus   *bus.Bus
	conn  *bus.Connection
	store store.Store

	tr       link.Transport
	registry *link.Registry
	manager  *reload.Manager
	keys     *reload.Keys
	disp     *command.Dispatcher
	cmd      *command.Service
	tele     *telemetry.Publisher
	monitor  bool
}

func New(o Options) (*Runtime, error) {
	log := o.Log
	if log == nil {
		log = slog.Default()
	}
	if o.Board == nil || o.Store == nil {
		return nil, &errcode.E{C: errcode.BootFailed, Op: "runtime", Msg: "board and store are required"}
	}
	cfg := o.Config
	config.Normalize(&cfg)

	b := o.Bus
	if b == nil {
		b = bus.NewBus(8)
	}
	r := &Runtime{cfg: cfg, log: log, bus: b, conn: b.NewConnection("runtime"), store: o.Store, monitor: o.Monitor}

	tr := o.Transport
	if tr == nil {
		var err error
		if tr, err = link.New(cfg, log.With("svc", "link")); err != nil {
			return nil, errcode.Wrap(errcode.BootFailed, "transport", err)
		}
	}
	r.tr = tr

	onFail := o.OnFailure
	if onFail == nil {
		onFail = boot.Recovery{Store: o.Store, Paths: cfg.Storage, Board: o.Board, Log: log}.Recover
	}

	chime := cfg.Chime
	r.registry = link.NewRegistry(link.Options{
		Cue:  func() error { return o.Board.Chime(chime.Pin, chime.Hz, chime.MS) },
		Data: func(h link.Handle, p []byte) { r.cmd.Deliver(h, p) },
		Conn: r.conn,
		Log:  log.With("svc", "link"),
	})
	r.registry.Attach(tr)

	loader := logic.New(logic.Env{Board: o.Board, Print: r.print, Log: log.With("svc", "logic")})
	r.manager = reload.NewManager(reload.Config{
		Board:     o.Board,
		ResetPins: cfg.ResetPins,
		Store:     o.Store,
		Paths:     cfg.Storage,
		Loader:    loader,
		Conn:      r.conn,
		Log:       log.With("svc", "reload"),
	})
	r.keys = reload.NewKeys(r.manager.Units(), log.With("svc", "keys"))

	r.disp = command.NewDispatcher(command.DispatcherConfig{
		Ingest:    ingest.NewPipeline(o.Store, cfg.Storage, log.With("svc", "ingest")),
		Reload:    r.manager,
		Keys:      r.keys,
		Out:       tr,
		OnFailure: onFail,
		Log:       log.With("svc", "command"),
	})
	r.cmd = command.NewService(cfg.Command, r.disp, r.registry, log.With("svc", "command"))

	r.tele = telemetry.New(telemetry.Config{
		Channels: cfg.Channels,
		Timing:   cfg.Telemetry,
		Board:    o.Board,
		Peers:    r.registry,
		Out:      tr,
		Conn:     b.NewConnection("telemetry"),
		Log:      log.With("svc", "telemetry"),
	})
	return r, nil
}

func (r *Runtime) Bus() *bus.Bus { return r.bus }
func (r *Runtime) Registry() *link.Registry { return r.registry }
func (r *Runtime) Manager() *reload.Manager { return r.manager }
func (r *Runtime) Transport() link.Transport { return r.tr }

// Run starts the transport, loads the persisted logic and serves until ctx
// is done. An error means the device never reached a serving state; the
// caller treats it as fatal.
func (r *Runtime) Run(ctx context.Context) error {
	if err := boot.EnsureArtifacts(r.store, r.cfg.Storage); err != nil {
		r.log.Warn("default artifacts", "err", err)
	}
	config.Publish(r.conn, r.cfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.monitor {
		go r.watchBus(ctx)
	}

	if err := r.tr.Start(ctx, r.registry); err != nil {
		return errcode.Wrap(errcode.BootFailed, "start "+r.tr.String(), err)
	}
	r.log.Info("transport started", "transport", r.tr.String(), "name", r.cfg.Name)

	if err := r.manager.Reload(ctx); err != nil {
		return errcode.Wrap(errcode.BootFailed, "initial load", err)
	}

	var wg sync.WaitGroup
	for _, run := range []func(context.Context) error{r.cmd.Run, r.tele.Run} {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.log.Error("service stopped", "err", err)
				cancel()
			}
		}(run)
	}
	<-ctx.Done()
	wg.Wait()
	if err := r.manager.Stop(); err != nil {
		r.log.Warn("main routine ended with error", "err", err)
	}
	r.log.Info("runtime stopped")
	return nil
}

func (r *Runtime) print(line string) {
	r.log.Info("print", "text", line)
	r.conn.Publish(r.conn.NewMessage(TopicPrint, types.PrintLine{Text: line, TS: timex.NowMs()}, false))
}

func (r *Runtime) watchBus(ctx context.Context) {
	mon := r.bus.NewConnection("monitor")
	defer mon.Disconnect()
	sub := mon.Subscribe(bus.T("#"))
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			r.log.Debug("bus", "topic", m.Topic.String(), "retained", m.Retained)
		}
	}
}
