package command

import (
	"context"
	"encoding/json"
	"log/slog"

	"neolink-go/types"
)

// Ingester turns a finished upload into persisted artifacts.
type Ingester interface {
	Ingest(source string) error
}

// Reloader swaps in the persisted artifacts.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Keys invokes the handler for a key. It never fails the caller.
type Keys interface {
	Dispatch(ctx context.Context, key string)
}

// Writer broadcasts bytes to connected peers.
type Writer interface {
	Write(p []byte) error
}

// FailurePolicy handles a reload failure. The runtime uses it to restore
// default artifacts and restart.
type FailurePolicy func(err error)

// Dispatcher routes decoded records. It owns the upload session.
type Dispatcher struct {
	session Session
	ingest  Ingester
	reload  Reloader
	keys    Keys
	out     Writer
	onFail  FailurePolicy
	log     *slog.Logger
}

type DispatcherConfig struct {
	Ingest    Ingester
	Reload    Reloader
	Keys      Keys
	Out       Writer
	OnFailure FailurePolicy
	Log       *slog.Logger
}

func NewDispatcher(c DispatcherConfig) *Dispatcher {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	return &Dispatcher{
		ingest: c.Ingest,
		reload: c.Reload,
		keys:   c.Keys,
		out:    c.Out,
		onFail: c.OnFailure,
		log:    c.Log,
	}
}

// Session exposes the upload session for inspection.
func (d *Dispatcher) Session() *Session { return &d.session }

// Dispatch handles one record. Undecodable records and unknown modes are
// logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, rec string) {
	cmd, err := DecodeCommand(rec)
	if err != nil {
		d.log.Warn("record dropped", "err", err, "bytes", len(rec))
		return
	}
	d.log.Debug("command", "mode", string(cmd.Mode))

	switch cmd.Mode {
	case types.ModeStart:
		if d.session.Active() {
			d.log.Info("upload restarted", "discarded_bytes", d.session.Len())
		} else {
			d.log.Info("upload started")
		}
		d.session.Start()

	case types.ModeUpload:
		if !d.session.Append(cmd.Data) {
			d.log.Debug("upload chunk outside a session ignored", "bytes", len(cmd.Data))
		}

	case types.ModeEnd:
		d.finish(ctx)

	case types.ModeKeypress:
		if d.keys != nil {
			d.keys.Dispatch(ctx, cmd.Data)
		}

	case types.ModeGetAnalogData:
		b, _ := json.Marshal(types.StreamingAck)
		d.write(append(b, '\n'))

	default:
		d.log.Debug("unknown mode ignored", "mode", string(cmd.Mode))
	}
}

// finish acknowledges the upload, persists it and reloads. An end with no
// open session still regenerates artifacts from the empty buffer.
func (d *Dispatcher) finish(ctx context.Context) {
	chunks := d.session.Chunks()
	d.write(types.UploadComplete)
	src := d.session.End()
	d.log.Info("upload finished", "chunks", chunks, "bytes", len(src))

	if d.ingest != nil {
		if err := d.ingest.Ingest(src); err != nil {
			d.log.Error("artifact write failed", "err", err)
		}
	}
	if d.reload == nil {
		return
	}
	if err := d.reload.Reload(ctx); err != nil {
		d.log.Error("reload failed", "err", err)
		if d.onFail != nil {
			d.onFail(err)
		}
	}
}

func (d *Dispatcher) write(p []byte) {
	if d.out == nil {
		return
	}
	if err := d.out.Write(p); err != nil {
		d.log.Warn("write to peer failed", "err", err)
	}
}
