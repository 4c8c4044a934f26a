// Command neo is the device runtime. On hardware it serves the board's
// configured transport; on a workstation it runs against a simulated board
// with artifacts kept in a directory.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"neolink-go/services/boot"
	"neolink-go/services/config"
	"neolink-go/services/runtime"
	"neolink-go/types"
)

func main() {
	o := parseFlags()
	log := newLogger(o)
	slog.SetDefault(log)

	cfg, err := loadConfig(o)
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}

	p, err := newPlatform(o, log)
	if err != nil {
		log.Error("platform", "err", err)
		os.Exit(1)
	}

	ctx, stop := rootContext()
	defer stop()

	for ctx.Err() == nil {
		if boot.Check(p.store, cfg.Storage, p.board, log) {
			p.drainRestart()
			continue
		}
		serve(ctx, p, cfg, o, log)
		if ctx.Err() == nil {
			log.Info("restarting")
			time.Sleep(250 * time.Millisecond)
		}
	}
}

// serve runs one runtime lifetime. It returns when ctx is done or the board
// asks for a restart.
func serve(ctx context.Context, p *platform, cfg types.BoardConfig, o options, log *slog.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.restart:
			cancel()
		case <-ctx.Done():
		}
	}()

	recovery := boot.Recovery{Store: p.store, Paths: cfg.Storage, Board: p.board, Log: log}
	rt, err := runtime.New(runtime.Options{
		Config:  cfg,
		Board:   p.board,
		Store:   p.store,
		Monitor: o.monitor,
		Log:     log,
	})
	if err != nil {
		recovery.Recover(err)
		<-ctx.Done()
		return
	}
	if err := rt.Run(ctx); err != nil {
		recovery.Recover(err)
		<-ctx.Done()
	}
}

func loadConfig(o options) (types.BoardConfig, error) {
	cfg, err := config.Load(o.board)
	if err != nil {
		return cfg, err
	}
	if err := overlay(&cfg, o); err != nil {
		return cfg, err
	}
	return cfg, nil
}
