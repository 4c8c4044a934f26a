//go:build !baremetal || nrf

package link

import (
	"context"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"

	"neolink-go/errcode"
	"neolink-go/types"
)

func init() {
	RegisterTransport("ble", func(cfg types.BoardConfig, log *slog.Logger) (Transport, error) {
		return NewBLE(bluetooth.DefaultAdapter, cfg.Name, log), nil
	})
}

// bleChunk is the notification payload size at the default ATT MTU.
const bleChunk = 20

// BLE is a Nordic UART Service peripheral. Peers write protocol bytes to the
// RX characteristic and receive notifications on TX.
//
// The GATT write callback does not say which central wrote, so inbound data
// is attributed to the most recently connected peer.
type BLE struct {
	adapter *bluetooth.Adapter
	name    string
	log     *slog.Logger

	mu     sync.Mutex
	tx     bluetooth.Characteristic
	rx     bluetooth.Characteristic
	adv    *bluetooth.Advertisement
	last   Handle
	active int
}

func NewBLE(a *bluetooth.Adapter, name string, log *slog.Logger) *BLE {
	if log == nil {
		log = slog.Default()
	}
	return &BLE{adapter: a, name: name, log: log}
}

func (b *BLE) String() string { return "ble" }

func (b *BLE) Start(ctx context.Context, ev Events) error {
	if err := b.adapter.Enable(); err != nil {
		return err
	}

	b.adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		h := Handle(d.Address.String())
		b.mu.Lock()
		if connected {
			b.last = h
			b.active++
		} else if b.active > 0 {
			b.active--
		}
		b.mu.Unlock()
		if connected {
			ev.OnConnect(h)
		} else {
			ev.OnDisconnect(h)
		}
	})

	err := b.adapter.AddService(&bluetooth.Service{
		UUID: bluetooth.ServiceUUIDNordicUART,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &b.rx,
				UUID:   bluetooth.CharacteristicUUIDUARTRX,
				Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(_ bluetooth.Connection, _ int, value []byte) {
					b.mu.Lock()
					h := b.last
					b.mu.Unlock()
					ev.OnData(h, append([]byte(nil), value...))
				},
			},
			{
				Handle: &b.tx,
				UUID:   bluetooth.CharacteristicUUIDUARTTX,
				Flags:  bluetooth.CharacteristicNotifyPermission | bluetooth.CharacteristicReadPermission,
			},
		},
	})
	if err != nil {
		return err
	}

	b.adv = b.adapter.DefaultAdvertisement()
	err = b.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    b.name,
		ServiceUUIDs: []bluetooth.UUID{bluetooth.ServiceUUIDNordicUART},
	})
	if err != nil {
		return err
	}
	if err := b.adv.Start(); err != nil {
		return err
	}
	b.log.Info("ble advertising", "name", b.name)

	go func() {
		<-ctx.Done()
		_ = b.adv.Stop()
	}()
	return nil
}

// Write notifies TX in MTU-sized chunks.
func (b *BLE) Write(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == 0 {
		return errcode.NotConnected
	}
	for len(p) > 0 {
		n := min(len(p), bleChunk)
		if _, err := b.tx.Write(p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Close is not offered by the peripheral role.
func (b *BLE) Close(Handle) error { return errcode.Unsupported }

// Advertise restarts the advertisement.
func (b *BLE) Advertise() error {
	if b.adv == nil {
		return errcode.NotConnected
	}
	_ = b.adv.Stop()
	return b.adv.Start()
}
