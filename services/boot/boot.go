// Package boot holds the cold-start steps and the recovery policy: consume
// the reset flag, make sure both artifacts exist, and on a fatal reload or
// boot failure restore the known-good defaults and restart.
package boot

import (
	"bytes"
	"errors"
	"log/slog"

	"neolink-go/errcode"
	"neolink-go/services/store"
	"neolink-go/types"
)

// DefaultMain idles and reports readiness.
const DefaultMain = `import uasyncio as asyncio

async def mainLoop():
    while True:
        print("Default mainLoop running. Upload new code via BLE.")
        await asyncio.sleep(5)
`

const DefaultHandlers = "# Default keyboard handler\n"

// Restarter is the part of the board recovery needs.
type Restarter interface{ Restart() }

// ConsumeResetFlag deletes the flag and reports true when it holds "1".
// Any other content leaves the flag where it is.
func ConsumeResetFlag(s store.Store, p types.StorageConfig, log *slog.Logger) bool {
	if log == nil {
		log = slog.Default()
	}
	if p.ResetFlag == "" || !s.Exists(p.ResetFlag) {
		return false
	}
	b, err := s.ReadFile(p.ResetFlag)
	if err != nil {
		log.Warn("read reset flag", "err", err)
		return false
	}
	if !bytes.Equal(bytes.TrimSpace(b), []byte("1")) {
		return false
	}
	if err := s.Remove(p.ResetFlag); err != nil {
		log.Warn("remove reset flag", "err", err)
	}
	log.Info("reset flag consumed")
	return true
}

// Check runs the reset flag step; it restarts the board when the flag was set.
func Check(s store.Store, p types.StorageConfig, b Restarter, log *slog.Logger) bool {
	if ConsumeResetFlag(s, p, log) {
		b.Restart()
		return true
	}
	return false
}

// EnsureArtifacts writes the defaults for any artifact that is missing.
func EnsureArtifacts(s store.Store, p types.StorageConfig) error {
	var errs []error
	if !s.Exists(p.Main) {
		if err := s.WriteFile(p.Main, []byte(DefaultMain)); err != nil {
			errs = append(errs, errcode.Wrap(errcode.StoreFailed, "write "+p.Main, err))
		}
	}
	if !s.Exists(p.Handlers) {
		if err := s.WriteFile(p.Handlers, []byte(DefaultHandlers)); err != nil {
			errs = append(errs, errcode.Wrap(errcode.StoreFailed, "write "+p.Handlers, err))
		}
	}
	return errors.Join(errs...)
}

// WriteDefaults overwrites both artifacts with the known-good pair.
func WriteDefaults(s store.Store, p types.StorageConfig) error {
	var errs []error
	if err := s.WriteFile(p.Main, []byte(DefaultMain)); err != nil {
		errs = append(errs, errcode.Wrap(errcode.StoreFailed, "write "+p.Main, err))
	}
	if err := s.WriteFile(p.Handlers, []byte(DefaultHandlers)); err != nil {
		errs = append(errs, errcode.Wrap(errcode.StoreFailed, "write "+p.Handlers, err))
	}
	return errors.Join(errs...)
}

// Recovery restores the defaults and restarts. It is the failure policy
// for reload failures and for a runtime that could not start.
type Recovery struct {
	Store store.Store
	Paths types.StorageConfig
	Board Restarter
	Log   *slog.Logger
}

func (r Recovery) Recover(cause error) {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	log.Error("restoring default logic", "err", cause)
	if err := WriteDefaults(r.Store, r.Paths); err != nil {
		log.Error("write defaults", "err", err)
	}
	r.Board.Restart()
}
