//go:build !baremetal

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"neolink-go/services/board"
	"neolink-go/services/config"
	"neolink-go/services/link"
	"neolink-go/services/store"
	"neolink-go/types"
)

type options struct {
	board     string
	config    string
	transport string
	listen    string
	dir       string
	logLevel  string
	monitor   bool
}

func parseFlags() options {
	var o options
	fs := pflag.NewFlagSet("neo", pflag.ExitOnError)
	fs.StringVar(&o.board, "board", "host", "board profile ("+strings.Join(config.Boards(), ", ")+")")
	fs.StringVar(&o.config, "config", "", "YAML or JSON file overlaid on the board profile")
	fs.StringVar(&o.transport, "transport", "", "override transport ("+strings.Join(link.Available(), ", ")+")")
	fs.StringVar(&o.listen, "listen", "", "listen address for the ws transport")
	fs.StringVar(&o.dir, "dir", "neo-data", "directory holding the logic artifacts")
	fs.StringVar(&o.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.BoolVar(&o.monitor, "monitor", false, "log every bus message at debug level")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: neo [flags]\n\n%s", fs.FlagUsages())
	}
	_ = fs.Parse(os.Args[1:])
	return o
}

func newLogger(o options) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(o.logLevel)); err != nil {
		lvl = slog.LevelInfo
	}
	// stdout may carry the stdio transport.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func overlay(cfg *types.BoardConfig, o options) error {
	if o.config != "" {
		if err := config.LoadFile(cfg, o.config); err != nil {
			return err
		}
	}
	if o.transport != "" {
		cfg.Transport.Type = o.transport
	}
	if o.listen != "" {
		cfg.Transport.Listen = o.listen
	}
	return nil
}

type platform struct {
	board   board.Board
	store   store.Store
	restart chan struct{}
}

// newPlatform builds a simulated board whose restart ends the current
// runtime lifetime instead of the process.
func newPlatform(o options, log *slog.Logger) (*platform, error) {
	st, err := store.NewDir(o.dir)
	if err != nil {
		return nil, err
	}
	p := &platform{store: st, restart: make(chan struct{}, 1)}
	sim := board.NewSim(log.With("svc", "board"))
	sim.OnRestart = func() {
		select {
		case p.restart <- struct{}{}:
		default:
		}
	}
	p.board = sim
	return p, nil
}

func (p *platform) drainRestart() {
	select {
	case <-p.restart:
	default:
	}
}

func rootContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
