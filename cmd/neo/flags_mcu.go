//go:build baremetal

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"neolink-go/services/board"
	"neolink-go/services/config"
	"neolink-go/services/store"
	"neolink-go/types"
)

// boardName selects the embedded profile; set with
// -ldflags "-X main.boardName=pico".
var boardName = config.Default

type options struct {
	board   string
	monitor bool
}

func parseFlags() options { return options{board: boardName} }

func newLogger(options) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func overlay(*types.BoardConfig, options) error { return nil }

type platform struct {
	board   board.Board
	store   store.Store
	restart chan struct{}
}

// Artifacts live in a littlefs volume so an upload survives a reset. A
// flash that will not mount leaves the device on RAM until the next boot.
func newPlatform(_ options, log *slog.Logger) (*platform, error) {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	log.Info("boot", "board", boardName)
	var st store.Store
	if fl, err := store.NewFlash(); err != nil {
		log.Warn("flash store unavailable, using RAM", "err", err)
		st = store.NewRAM()
	} else {
		st = fl
	}
	return &platform{board: board.New(), store: st}, nil
}

func (p *platform) drainRestart() {}

func rootContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}
