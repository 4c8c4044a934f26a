package types

import (
	"encoding/json"
	"strconv"
)

// ---- Command records (peer -> device) ----

// Mode tags one command record.
type Mode string

const (
	ModeStart         Mode = "start"
	ModeUpload        Mode = "upload"
	ModeEnd           Mode = "end"
	ModeKeypress      Mode = "keypress"
	ModeGetAnalogData Mode = "get_analog_data"
)

// Command is one decoded record. Data is empty when the field is absent.
type Command struct {
	Mode Mode
	Data string
}

// ---- Device -> peer ----

// UploadComplete is written verbatim when an upload session ends.
var UploadComplete = []byte("Upload complete\n")

type Ack struct {
	Ack     string `json:"ack"`
	Message string `json:"message"`
}

// StreamingAck answers get_analog_data.
var StreamingAck = Ack{Ack: string(ModeGetAnalogData), Message: "Analog data streaming"}

// ChannelValue is one channel of a reading. A nil Value marks a failed sample.
type ChannelValue struct {
	ID    string
	Value *float64
}

// Reading is one telemetry sample set in configured channel order.
type Reading struct {
	TS     int64 // monotonic ms
	Values []ChannelValue
}

// HasValue reports whether at least one channel sampled successfully.
func (r Reading) HasValue() bool {
	for _, v := range r.Values {
		if v.Value != nil {
			return true
		}
	}
	return false
}

// Get returns the value for a channel and whether the channel is present.
func (r Reading) Get(id string) (*float64, bool) {
	for _, v := range r.Values {
		if v.ID == id {
			return v.Value, true
		}
	}
	return nil, false
}

// MarshalJSON emits {"type":"sensors","timestamp":N,"analog":{...}} keeping
// channel order, which encoding/json would sort for a map.
func (r Reading) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 32+16*len(r.Values))
	b = append(b, `{"type":"sensors","timestamp":`...)
	b = strconv.AppendInt(b, r.TS, 10)
	b = append(b, `,"analog":{`...)
	for i, v := range r.Values {
		if i > 0 {
			b = append(b, ',')
		}
		key, err := json.Marshal(v.ID)
		if err != nil {
			return nil, err
		}
		b = append(b, key...)
		b = append(b, ':')
		if v.Value == nil {
			b = append(b, "null"...)
		} else {
			b = strconv.AppendFloat(b, *v.Value, 'f', -1, 64)
		}
	}
	b = append(b, "}}"...)
	return b, nil
}
