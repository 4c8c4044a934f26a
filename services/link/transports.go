package link

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"neolink-go/types"
)

// Factory builds a transport from the board profile.
type Factory func(cfg types.BoardConfig, log *slog.Logger) (Transport, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterTransport adds a transport under name. Platform files register
// theirs from init; tests may register fakes.
func RegisterTransport(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[name] = f
}

// Available lists registered transport names, sorted.
func Available() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// New builds the transport named by cfg.Transport.Type.
func New(cfg types.BoardConfig, log *slog.Logger) (Transport, error) {
	if log == nil {
		log = slog.Default()
	}
	regMu.RLock()
	f, ok := factories[cfg.Transport.Type]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transport type: %q (have %v)", cfg.Transport.Type, Available())
	}
	return f(cfg, log)
}
