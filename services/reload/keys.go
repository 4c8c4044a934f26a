package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"neolink-go/errcode"
)

// HandlerName maps a key to its handler name.
func HandlerName(key string) string { return "key_" + key + "_pressed" }

// Keys dispatches keypresses to whatever handler set is installed at call
// time. Handler failures are logged, never returned.
type Keys struct {
	units *Units
	log   *slog.Logger
}

func NewKeys(u *Units, log *slog.Logger) *Keys {
	if log == nil {
		log = slog.Default()
	}
	return &Keys{units: u, log: log}
}

func (k *Keys) Dispatch(ctx context.Context, key string) {
	name := HandlerName(key)
	h, err := k.units.Handlers().Lookup(name)
	if err != nil {
		k.log.Info("no handler for key", "key", key, "handler", name)
		return
	}
	if err := k.invoke(ctx, h.Invoke); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		k.log.Warn("handler failed", "handler", name, "err", errcode.Wrap(errcode.HandlerFailed, name, err))
	}
}

func (k *Keys) invoke(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
