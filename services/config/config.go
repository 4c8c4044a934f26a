// Package config resolves the board profile: an embedded JSONC document,
// optionally overlaid by a YAML or JSON file, then normalised.
package config

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"neolink-go/bus"
	"neolink-go/errcode"
	"neolink-go/types"
	"neolink-go/x/mathx"
	"neolink-go/x/shmring"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const configPrefix = "config"

// EmbeddedLookup allows overriding how profiles are resolved.
var EmbeddedLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// Boards lists the embedded profile names.
func Boards() []string {
	out := make([]string, 0, len(embeddedConfigs))
	for k := range embeddedConfigs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Load resolves a named profile and normalises it. An empty name selects
// Default.
func Load(board string) (types.BoardConfig, error) {
	if board == "" {
		board = Default
	}
	raw, ok := EmbeddedLookup(board)
	if !ok || len(raw) == 0 {
		return types.BoardConfig{}, errors.New("no embedded config for board: " + board)
	}
	var cfg types.BoardConfig
	if err := json.Unmarshal(jsonc.ToJSON(raw), &cfg); err != nil {
		return types.BoardConfig{}, errcode.Wrap(errcode.Error, "config "+board, err)
	}
	Normalize(&cfg)
	return cfg, nil
}

// Overlay decodes data over cfg. Fields absent from data keep their value;
// lists present in data replace the profile's. The format comes from the
// file extension: .yaml/.yml, .json or .jsonc.
func Overlay(cfg *types.BoardConfig, name string, data []byte) error {
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		return &errcode.E{C: errcode.Unsupported, Op: "config overlay", Msg: name}
	}
	if err != nil {
		return errcode.Wrap(errcode.Error, "config overlay "+name, err)
	}
	Normalize(cfg)
	return nil
}

// Normalize fills defaults and clamps periods and sizes to workable ranges.
func Normalize(c *types.BoardConfig) {
	if c.Name == "" {
		c.Name = "Neo"
	}
	if c.Transport.Type == "" {
		c.Transport.Type = "ble"
	}
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.Kind == "" {
			ch.Kind = types.ChannelAnalog
		}
		if ch.ID == "" {
			ch.ID = strconv.Itoa(ch.Pin)
		}
	}

	c.Chime.Hz = orDefault(c.Chime.Hz, 1000)
	c.Chime.MS = mathx.Clamp(orDefault(c.Chime.MS, 200), 10, 2000)

	t := &c.Telemetry
	t.StreamMS = mathx.Clamp(orDefault(t.StreamMS, 200), 10, 60000)
	t.IdleMS = mathx.Clamp(orDefault(t.IdleMS, 1000), 10, 60000)
	t.BackoffMS = mathx.Clamp(orDefault(t.BackoffMS, 500), 0, 60000)

	k := &c.Command
	k.MaxLineBytes = mathx.Clamp(orDefault(k.MaxLineBytes, 8*1024), 256, 64*1024)
	k.RxRingBytes = shmring.CeilPow2(mathx.Clamp(orDefault(k.RxRingBytes, 4096), 256, 64*1024))
	k.PollMS = mathx.Clamp(orDefault(k.PollMS, 10), 1, 1000)
	k.StatusMS = mathx.Clamp(orDefault(k.StatusMS, 10000), 100, 600000)

	s := &c.Storage
	if s.Main == "" {
		s.Main = "main.py"
	}
	if s.Handlers == "" {
		s.Handlers = "keyboardhandler.py"
	}
	if s.ResetFlag == "" {
		s.ResetFlag = "reset.txt"
	}
}

// Publish places each config section on config/<section> as a retained
// message so services can pick up changes.
func Publish(conn *bus.Connection, c types.BoardConfig) {
	conn.Publish(conn.NewMessage(bus.T(configPrefix, "board"), c, true))
	conn.Publish(conn.NewMessage(bus.T(configPrefix, "telemetry"), c.Telemetry, true))
	conn.Publish(conn.NewMessage(bus.T(configPrefix, "command"), c.Command, true))
	conn.Publish(conn.NewMessage(bus.T(configPrefix, "transport"), c.Transport, true))
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
