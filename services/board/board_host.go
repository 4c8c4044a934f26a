//go:build !baremetal

package board

import (
	"errors"
	"log/slog"
	"strconv"
	"sync"
)

var errNoEcho = errors.New("board: no echo")

// Sim is an in-memory board. Inputs (analog values, distance, pin levels) are
// set by the caller; outputs are recorded.
type Sim struct {
	mu       sync.Mutex
	log      *slog.Logger
	pins     map[int]bool
	duty     map[int]int
	analog   map[int]int
	failing  map[int]error
	distance map[int]float64
	pixels   map[int][]RGB
	writes   []PinWrite
	chimes   int
	restarts int

	// OnRestart runs after a restart has been recorded.
	OnRestart func()
	// Valid, when set, rejects pins it returns false for.
	Valid func(n int) bool
}

type PinWrite struct {
	Pin  int
	High bool
}

func NewSim(log *slog.Logger) *Sim {
	if log == nil {
		log = slog.Default()
	}
	return &Sim{
		log:      log,
		pins:     map[int]bool{},
		duty:     map[int]int{},
		analog:   map[int]int{},
		failing:  map[int]error{},
		distance: map[int]float64{},
		pixels:   map[int][]RGB{},
	}
}

func (s *Sim) check(n int) error {
	if s.Valid != nil && !s.Valid(n) {
		return errors.New("board: pin " + strconv.Itoa(n) + " not available")
	}
	return nil
}

func (s *Sim) WritePin(n int, high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(n); err != nil {
		return err
	}
	s.pins[n] = high
	s.writes = append(s.writes, PinWrite{Pin: n, High: high})
	return nil
}

func (s *Sim) ReadPin(n int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(n); err != nil {
		return false, err
	}
	return s.pins[n], nil
}

func (s *Sim) SetDuty(n int, duty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(n); err != nil {
		return err
	}
	if duty < 0 {
		duty = 0
	}
	if duty > DutyMax {
		duty = DutyMax
	}
	s.duty[n] = duty
	return nil
}

func (s *Sim) ReadAnalog(n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failing[n]; ok {
		return 0, err
	}
	if err := s.check(n); err != nil {
		return 0, err
	}
	return s.analog[n], nil
}

func (s *Sim) ReadDistance(trigger, echo int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failing[trigger]; ok {
		return 0, err
	}
	d, ok := s.distance[trigger]
	if !ok {
		return 0, errNoEcho
	}
	return d, nil
}

func (s *Sim) WritePixels(pin int, px []RGB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(pin); err != nil {
		return err
	}
	s.pixels[pin] = append([]RGB(nil), px...)
	return nil
}

func (s *Sim) Chime(pin, hz, ms int) error {
	s.mu.Lock()
	s.chimes++
	s.mu.Unlock()
	s.log.Debug("chime", "pin", pin, "hz", hz, "ms", ms)
	return nil
}

func (s *Sim) Restart() {
	s.mu.Lock()
	s.restarts++
	hook := s.OnRestart
	s.mu.Unlock()
	s.log.Warn("restart requested")
	if hook != nil {
		hook()
	}
}

// ---- simulation inputs ----

func (s *Sim) SetAnalog(n, v int) {
	s.mu.Lock()
	s.analog[n] = v
	s.mu.Unlock()
}

func (s *Sim) SetDistance(trigger int, cm float64) {
	s.mu.Lock()
	s.distance[trigger] = cm
	s.mu.Unlock()
}

// Fail makes every read of pin n return err until cleared with Fail(n, nil).
func (s *Sim) Fail(n int, err error) {
	s.mu.Lock()
	if err == nil {
		delete(s.failing, n)
	} else {
		s.failing[n] = err
	}
	s.mu.Unlock()
}

func (s *Sim) SetInput(n int, high bool) {
	s.mu.Lock()
	s.pins[n] = high
	s.mu.Unlock()
}

// ---- inspection ----

func (s *Sim) Pin(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pins[n]
}

func (s *Sim) Duty(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duty[n]
}

func (s *Sim) Pixels(pin int) []RGB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RGB(nil), s.pixels[pin]...)
}

func (s *Sim) Writes() []PinWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PinWrite(nil), s.writes...)
}

func (s *Sim) Chimes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chimes
}

func (s *Sim) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}
