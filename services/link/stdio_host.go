//go:build !baremetal

package link

import (
	"context"
	"io"
	"log/slog"
	"os"

	"neolink-go/types"
)

func init() {
	RegisterTransport("stdio", func(_ types.BoardConfig, log *slog.Logger) (Transport, error) {
		return NewStdio(os.Stdin, os.Stdout, log), nil
	})
}

// NewStdio runs the line protocol over r and w for scripted sessions. The
// single peer disconnects at EOF and the stream is not reopened.
func NewStdio(r io.ReadCloser, w io.Writer, log *slog.Logger) *Stream {
	return &Stream{
		Name: "stdio",
		Once: true,
		Log:  log,
		Dial: func(context.Context) (io.ReadWriteCloser, error) {
			return stdio{r, w}, nil
		},
	}
}

type stdio struct {
	io.ReadCloser
	w io.Writer
}

func (s stdio) Write(p []byte) (int, error) { return s.w.Write(p) }
