package types

// ---- Retained state published on the bus ----

// RuntimeState is the retained runtime/state payload.
type RuntimeState struct {
	Level  string `json:"level"`  // "idle", "reloading", "running", "failed"
	Status string `json:"status"` // short machine string
	TS     int64  `json:"ts_ms"`
	Error  string `json:"error,omitempty"`
}

const (
	LevelIdle      = "idle"
	LevelReloading = "reloading"
	LevelRunning   = "running"
	LevelFailed    = "failed"
)

// PeerState is the retained link/peers payload.
type PeerState struct {
	Count int   `json:"count"`
	TS    int64 `json:"ts_ms"`
}

// PrintLine carries one line of user logic output on logic/print.
type PrintLine struct {
	Text string `json:"text"`
	TS   int64  `json:"ts_ms"`
}
