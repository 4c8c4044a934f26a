package types

// BoardConfig describes one board profile. Durations are milliseconds.
type BoardConfig struct {
	Name      string            `json:"name" yaml:"name"`
	ResetPins []int             `json:"reset_pins" yaml:"reset_pins"`
	Channels  []ChannelConfig   `json:"channels" yaml:"channels"`
	Chime     ChimeConfig       `json:"chime" yaml:"chime"`
	Telemetry TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
	Command   CommandConfig     `json:"command" yaml:"command"`
	Storage   StorageConfig     `json:"storage" yaml:"storage"`
	Transport TransportSettings `json:"transport" yaml:"transport"`
}

type ChannelKind string

const (
	ChannelAnalog   ChannelKind = "analog"
	ChannelDistance ChannelKind = "distance"
)

// ChannelConfig is one telemetry channel. Echo is only used by distance
// channels; zero means the trigger pin doubles as echo.
type ChannelConfig struct {
	ID   string      `json:"id" yaml:"id"`
	Kind ChannelKind `json:"kind" yaml:"kind"`
	Pin  int         `json:"pin" yaml:"pin"`
	Echo int         `json:"echo,omitempty" yaml:"echo,omitempty"`
}

type ChimeConfig struct {
	Pin int `json:"pin" yaml:"pin"`
	Hz  int `json:"hz" yaml:"hz"`
	MS  int `json:"ms" yaml:"ms"`
}

type TelemetryConfig struct {
	StreamMS  int `json:"stream_ms" yaml:"stream_ms"`
	IdleMS    int `json:"idle_ms" yaml:"idle_ms"`
	BackoffMS int `json:"backoff_ms" yaml:"backoff_ms"`
}

type CommandConfig struct {
	MaxLineBytes int `json:"max_line_bytes" yaml:"max_line_bytes"`
	RxRingBytes  int `json:"rx_ring_bytes" yaml:"rx_ring_bytes"`
	PollMS       int `json:"poll_ms" yaml:"poll_ms"`
	StatusMS     int `json:"status_ms" yaml:"status_ms"`
}

type StorageConfig struct {
	Main      string `json:"main" yaml:"main"`
	Handlers  string `json:"handlers" yaml:"handlers"`
	ResetFlag string `json:"reset_flag" yaml:"reset_flag"`
}

type TransportSettings struct {
	Type   string      `json:"type" yaml:"type"` // "ble", "ws", "stdio", "uart"
	Listen string      `json:"listen,omitempty" yaml:"listen,omitempty"`
	UART   *UARTConfig `json:"uart,omitempty" yaml:"uart,omitempty"`
}

// UARTConfig carries enough information for the platform UART transport.
type UARTConfig struct {
	ID   string `json:"id" yaml:"id"` // "uart0" | "uart1"
	Baud int    `json:"baud" yaml:"baud"`
	TX   int    `json:"tx" yaml:"tx"`
	RX   int    `json:"rx" yaml:"rx"`
}
