// Package board is the hardware capability surface the runtime and the user
// logic drive: GPIO, PWM duty, ADC, distance sensor, pixels, the connection
// chime and a full restart. Implementations are split by build tag like the
// platform factories: board_mcu.go on hardware, board_host.go elsewhere.
package board

import (
	"errors"
	"math"
	"strconv"
	"time"

	"neolink-go/errcode"
)

// DutyMax is the full-scale PWM duty accepted by SetDuty.
const DutyMax = 1023

// AnalogMax is the full-scale ADC reading (12-bit).
const AnalogMax = 4095

type RGB struct{ R, G, B uint8 }

type Board interface {
	WritePin(n int, high bool) error
	ReadPin(n int) (bool, error)
	SetDuty(n int, duty int) error
	ReadAnalog(n int) (int, error)
	// ReadDistance returns centimetres. echo may equal trigger.
	ReadDistance(trigger, echo int) (float64, error)
	WritePixels(pin int, px []RGB) error
	Chime(pin, hz, ms int) error
	Restart()
}

// ResetPins drives every listed pin low. It attempts every pin and returns
// the joined per-pin failures.
func ResetPins(b Board, pins []int) error {
	var errs []error
	for _, n := range pins {
		if err := b.WritePin(n, false); err != nil {
			errs = append(errs, &errcode.E{C: errcode.UnknownPin, Op: "reset_pin", Msg: strconv.Itoa(n), Err: err})
		}
	}
	return errors.Join(errs...)
}

// EchoTimeout bounds the wait for a single-pin ranger's echo pulse.
const EchoTimeout = 30 * time.Millisecond

// EchoCM converts a round-trip echo pulse to centimetres at 29.1 us/cm,
// rounded to two places.
func EchoCM(pulse time.Duration) float64 {
	us := float64(pulse) / float64(time.Microsecond)
	return math.Round(us/2/29.1*100) / 100
}
