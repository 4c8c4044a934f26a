// Package reload swaps freshly written logic artifacts into the running
// device and dispatches keypresses to the installed handlers.
package reload

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"neolink-go/bus"
	"neolink-go/errcode"
	"neolink-go/logic"
	"neolink-go/services/board"
	"neolink-go/services/store"
	"neolink-go/types"
	"neolink-go/x/task"
	"neolink-go/x/timex"
)

var TopicState = bus.T("runtime", "state")

type Config struct {
	Board     board.Board
	ResetPins []int
	Store     store.Store
	Paths     types.StorageConfig
	Loader    logic.Loader
	Units     *Units
	Conn      *bus.Connection
	Log       *slog.Logger
}

// Manager owns the installed pair and the task running its main routine.
type Manager struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	current *task.Task
}

func NewManager(c Config) *Manager {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Units == nil {
		c.Units = &Units{}
	}
	return &Manager{cfg: c, log: c.Log}
}

func (m *Manager) Units() *Units { return m.cfg.Units }

// Current is the task running the installed main routine, or nil.
func (m *Manager) Current() *task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Reload resets outputs, tears down the running routine, loads the
// persisted artifacts and starts the new main routine under ctx. A load
// failure is returned as errcode.LoadFailed and leaves nothing installed.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Info("reloading user logic")
	m.publish(types.LevelReloading, "reload_started", nil)

	if m.cfg.Board != nil {
		if err := board.ResetPins(m.cfg.Board, m.cfg.ResetPins); err != nil {
			m.log.Warn("pin reset incomplete", "err", err)
		}
	}

	m.cfg.Units.Evict()

	if m.current != nil {
		if err := m.current.Stop(); err != nil {
			m.log.Warn("previous main routine ended with error", "err", err)
		}
		m.current = nil
	}

	pair, err := m.load(ctx)
	if err != nil {
		m.log.Error("reload failed", "err", err)
		m.publish(types.LevelFailed, "load_failed", err)
		return err
	}

	gen := m.cfg.Units.Install(pair)
	t := task.Go(ctx, logic.MainEntry, pair.Main.Run)
	m.current = t
	go m.watch(t, gen)

	runtime.GC()

	m.log.Info("user logic reloaded", "generation", gen, "handlers", pair.Handlers.Len())
	m.publish(types.LevelRunning, "logic_running", nil)
	return nil
}

func (m *Manager) load(ctx context.Context) (logic.Pair, error) {
	main, err := m.cfg.Store.ReadFile(m.cfg.Paths.Main)
	if err != nil {
		return logic.Pair{}, errcode.Wrap(errcode.LoadFailed, "read "+m.cfg.Paths.Main, err)
	}
	handlers, err := m.cfg.Store.ReadFile(m.cfg.Paths.Handlers)
	if err != nil {
		return logic.Pair{}, errcode.Wrap(errcode.LoadFailed, "read "+m.cfg.Paths.Handlers, err)
	}
	pair, err := m.cfg.Loader.Load(ctx, string(main), string(handlers))
	if err != nil {
		if errcode.Of(err) != errcode.LoadFailed {
			err = errcode.Wrap(errcode.LoadFailed, "load", err)
		}
		return logic.Pair{}, err
	}
	return pair, nil
}

// watch logs a main routine that ends on its own.
func (m *Manager) watch(t *task.Task, gen uint64) {
	err := t.Wait()
	switch {
	case err != nil:
		m.log.Warn("main routine failed", "generation", gen, "err", err)
	default:
		m.log.Debug("main routine finished", "generation", gen)
	}
}

// Stop cancels the running main routine and waits for it.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.current.Stop()
	m.current = nil
	return err
}

func (m *Manager) publish(level, status string, err error) {
	if m.cfg.Conn == nil {
		return
	}
	st := types.RuntimeState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	m.cfg.Conn.Publish(m.cfg.Conn.NewMessage(TopicState, st, true))
}
