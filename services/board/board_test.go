//go:build !baremetal

package board

import (
	"errors"
	"testing"
	"time"

	"neolink-go/errcode"
)

func TestResetPinsDrivesAllLow(t *testing.T) {
	s := NewSim(nil)
	for _, n := range []int{2, 4, 5} {
		_ = s.WritePin(n, true)
	}
	if err := ResetPins(s, []int{2, 4, 5}); err != nil {
		t.Fatalf("ResetPins: %v", err)
	}
	for _, n := range []int{2, 4, 5} {
		if s.Pin(n) {
			t.Fatalf("pin %d still high", n)
		}
	}
}

func TestResetPinsContinuesPastFailures(t *testing.T) {
	s := NewSim(nil)
	s.Valid = func(n int) bool { return n != 13 }
	_ = s.WritePin(14, true)

	err := ResetPins(s, []int{13, 14})
	if err == nil {
		t.Fatal("expected a failure for pin 13")
	}
	if !errors.Is(err, errcode.UnknownPin) {
		t.Fatalf("error code = %v", err)
	}
	if s.Pin(14) {
		t.Fatal("pin 14 not reset after pin 13 failed")
	}
}

func TestSimInputsAndFailures(t *testing.T) {
	s := NewSim(nil)
	s.SetAnalog(34, 1234)
	if v, err := s.ReadAnalog(34); err != nil || v != 1234 {
		t.Fatalf("ReadAnalog = %d, %v", v, err)
	}
	s.Fail(34, errors.New("adc"))
	if _, err := s.ReadAnalog(34); err == nil {
		t.Fatal("expected injected failure")
	}
	s.Fail(34, nil)
	if _, err := s.ReadAnalog(34); err != nil {
		t.Fatalf("failure not cleared: %v", err)
	}

	if _, err := s.ReadDistance(26, 26); err == nil {
		t.Fatal("distance without echo should fail")
	}
	s.SetDistance(26, 12.5)
	if d, err := s.ReadDistance(26, 26); err != nil || d != 12.5 {
		t.Fatalf("ReadDistance = %v, %v", d, err)
	}

	if err := s.SetDuty(16, 5000); err != nil || s.Duty(16) != DutyMax {
		t.Fatalf("duty not clamped: %d", s.Duty(16))
	}

	restarted := false
	s.OnRestart = func() { restarted = true }
	s.Restart()
	if !restarted || s.Restarts() != 1 {
		t.Fatal("restart not recorded")
	}
}

func TestEchoCM(t *testing.T) {
	cases := []struct {
		pulse time.Duration
		want  float64
	}{
		{0, 0},
		{582 * time.Microsecond, 10},
		{1164 * time.Microsecond, 20},
		{1000 * time.Microsecond, 17.18},
	}
	for _, c := range cases {
		if got := EchoCM(c.pulse); got != c.want {
			t.Errorf("EchoCM(%v) = %v, want %v", c.pulse, got, c.want)
		}
	}
	if EchoCM(EchoTimeout) <= 500 {
		t.Fatal("timeout shorter than a 5m round trip")
	}
}
