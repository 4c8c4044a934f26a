//go:build rp2040 || rp2350

package board

import (
	"machine"
	"strconv"

	"neolink-go/errcode"
	"neolink-go/x/mathx"
)

// PWMHz is the period every slice is configured with on first use.
const PWMHz = 1000

// pwmCtrl narrows the unexported controller type in machine.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// SetDuty drives pin n from its PWM slice. GPIO 2k and 2k+1 share slice
// k mod 8 (channels A and B), so both run at PWMHz.
func (m *MCU) SetDuty(n int, duty int) error {
	if n < 0 || n >= 30 {
		return &errcode.E{C: errcode.UnknownPin, Op: "pwm", Msg: strconv.Itoa(n)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	slice := uint8(n>>1) & 7
	ctrl := pwmBySlice(slice)
	if m.slices&(1<<slice) == 0 {
		if err := ctrl.Configure(machine.PWMConfig{Period: 1e9 / PWMHz}); err != nil {
			return errcode.Wrap(errcode.Error, "pwm configure", err)
		}
		m.slices |= 1 << slice
	}
	if !m.pwm[n] {
		machine.Pin(n).Configure(machine.PinConfig{Mode: machine.PinPWM})
		delete(m.mode, n)
		m.pwm[n] = true
	}
	duty = mathx.Clamp(duty, 0, DutyMax)
	ctrl.Set(uint8(n&1), uint32(duty)*ctrl.Top()/DutyMax)
	return nil
}
