//go:build rp2040 || rp2350

package link

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"neolink-go/types"
)

func init() {
	RegisterTransport("uart", func(cfg types.BoardConfig, log *slog.Logger) (Transport, error) {
		if cfg.Transport.UART == nil {
			return nil, errors.New("uart transport requires uart config")
		}
		u := *cfg.Transport.UART
		var hw *uartx.UART
		switch u.ID {
		case "uart0", "":
			hw = uartx.UART0
		case "uart1":
			hw = uartx.UART1
		default:
			return nil, errors.New("unknown uart " + u.ID)
		}
		if err := hw.Configure(uartx.UARTConfig{
			BaudRate: uint32(u.Baud),
			TX:       machine.Pin(u.TX),
			RX:       machine.Pin(u.RX),
		}); err != nil {
			return nil, err
		}
		return &Stream{
			Name: "uart",
			Log:  log,
			Dial: func(ctx context.Context) (io.ReadWriteCloser, error) {
				ctx, cancel := context.WithCancel(ctx)
				return &uartConn{u: hw, ctx: ctx, cancel: cancel}, nil
			},
		}, nil
	})
}

// uartConn adapts uartx's context-aware receive to io.ReadWriteCloser.
// Close cancels a pending receive; the port itself stays configured.
type uartConn struct {
	u      *uartx.UART
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *uartConn) Read(p []byte) (int, error) {
	n, err := c.u.RecvSomeContext(c.ctx, p)
	if err == nil && n == 0 && c.ctx.Err() != nil {
		return 0, c.ctx.Err()
	}
	return n, err
}

func (c *uartConn) Write(p []byte) (int, error) { return c.u.Write(p) }

func (c *uartConn) Close() error {
	c.cancel()
	return nil
}
