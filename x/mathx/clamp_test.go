package mathx

import "testing"

func TestClamp(t *testing.T) {
	cases := []struct{ v, lo, hi, want int }{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{11, 10, 0, 10},
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestRound(t *testing.T) {
	if got := Round(12.3456, 2); got != 12.35 {
		t.Fatalf("Round = %v", got)
	}
	if got := Round(float32(-1.005), 1); got != -1 {
		t.Fatalf("Round float32 = %v", got)
	}
}
