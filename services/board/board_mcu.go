//go:build baremetal

package board

import (
	"device/arm"
	"errors"
	"image/color"
	"machine"
	"sync"
	"time"

	"tinygo.org/x/drivers/buzzer"
	"tinygo.org/x/drivers/hcsr04"
	"tinygo.org/x/drivers/ws2812"
)

var errTimeout = errors.New("board: distance timeout")

// MCU drives the chip through machine and the tinygo drivers. Pins are
// reconfigured on mode change only.
type MCU struct {
	mu     sync.Mutex
	mode   map[int]machine.PinMode
	adcs   map[int]machine.ADC
	ranges map[[2]int]*hcsr04.Device
	strips map[int]*ws2812.Device
	pwm    map[int]bool // pins switched to their PWM function
	slices uint32       // PWM slices already given a period
}

func New() *MCU {
	machine.InitADC()
	return &MCU{
		mode:   map[int]machine.PinMode{},
		adcs:   map[int]machine.ADC{},
		ranges: map[[2]int]*hcsr04.Device{},
		strips: map[int]*ws2812.Device{},
		pwm:    map[int]bool{},
	}
}

func (m *MCU) pin(n int, mode machine.PinMode) machine.Pin {
	p := machine.Pin(n)
	delete(m.pwm, n)
	if cur, ok := m.mode[n]; !ok || cur != mode {
		p.Configure(machine.PinConfig{Mode: mode})
		m.mode[n] = mode
	}
	return p
}

func (m *MCU) WritePin(n int, high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pin(n, machine.PinOutput).Set(high)
	return nil
}

func (m *MCU) ReadPin(n int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pin(n, machine.PinInput).Get(), nil
}

func (m *MCU) ReadAnalog(n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.adcs[n]
	if !ok {
		a = machine.ADC{Pin: machine.Pin(n)}
		a.Configure(machine.ADCConfig{})
		m.adcs[n] = a
		delete(m.mode, n)
	}
	// machine.ADC is left-aligned 16-bit; report 12-bit like the block editor expects.
	return int(a.Get() >> 4), nil
}

func (m *MCU) ReadDistance(trigger, echo int) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if echo == trigger {
		return m.pingPin(trigger)
	}
	key := [2]int{trigger, echo}
	d, ok := m.ranges[key]
	if !ok {
		dev := hcsr04.New(machine.Pin(trigger), machine.Pin(echo))
		dev.Configure()
		d = &dev
		m.ranges[key] = d
		delete(m.mode, trigger)
		delete(m.mode, echo)
	}
	mm := d.ReadDistance()
	if mm <= 0 {
		return 0, errTimeout
	}
	return float64(mm) / 10, nil
}

// pingPin ranges a three-wire sensor: a 10us trigger pulse, then the same
// pin is read back for the width of the echo.
func (m *MCU) pingPin(n int) (float64, error) {
	p := m.pin(n, machine.PinOutput)
	p.Low()
	time.Sleep(2 * time.Microsecond)
	p.High()
	time.Sleep(10 * time.Microsecond)
	p.Low()

	p = m.pin(n, machine.PinInput)
	deadline := time.Now().Add(EchoTimeout)
	for !p.Get() {
		if time.Now().After(deadline) {
			return 0, errTimeout
		}
	}
	start := time.Now()
	for p.Get() {
		if time.Now().After(deadline) {
			return 0, errTimeout
		}
	}
	return EchoCM(time.Since(start)), nil
}

func (m *MCU) WritePixels(pin int, px []RGB) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.strips[pin]
	if !ok {
		m.pin(pin, machine.PinOutput)
		dev := ws2812.New(machine.Pin(pin))
		s = &dev
		m.strips[pin] = s
	}
	buf := make([]color.RGBA, len(px))
	for i, c := range px {
		buf[i] = color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
	}
	return s.WriteColors(buf)
}

// Chime blocks for ms; callers run it off the radio callback path.
func (m *MCU) Chime(pin, hz, ms int) error {
	m.mu.Lock()
	m.pin(pin, machine.PinOutput)
	m.mu.Unlock()
	bz := buzzer.New(machine.Pin(pin))
	// Tone takes a duration in beats at bz.BPM.
	beats := float64(ms) / 1000 * bz.BPM / 60
	return bz.Tone(float64(hz), beats)
}

func (m *MCU) Restart() { arm.SystemReset() }
