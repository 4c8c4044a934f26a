//go:build baremetal && !rp2040 && !rp2350

package board

import (
	"strconv"

	"neolink-go/errcode"
)

// SetDuty has no PWM binding on this target.
func (m *MCU) SetDuty(n int, duty int) error {
	return &errcode.E{C: errcode.Unsupported, Op: "pwm", Msg: strconv.Itoa(n)}
}
