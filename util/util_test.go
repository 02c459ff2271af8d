package util_test

import (
	"testing"
	"time"

	"github.com/ppfe/macrorig/util"
)

func TestLimiterInside(t *testing.T) {
	l := util.Limiter{Min: 0, Max: 10}
	if !l.Check(5) {
		t.Errorf("expected 5 to be within [0,10]")
	}
}

func TestLimiterBoundary(t *testing.T) {
	l := util.Limiter{Min: 0, Max: 10}
	if !l.Check(0) || !l.Check(10) {
		t.Errorf("expected limits to be inclusive")
	}
}

func TestLimiterOutside(t *testing.T) {
	l := util.Limiter{Min: 0, Max: 10}
	if l.Check(-1) || l.Check(11) {
		t.Errorf("expected out of range values to fail the check")
	}
}

func TestClampHigh(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = 20.
	)
	clamped := util.Clamp(input, low, high)
	if clamped == input {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestClampLow(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = -1.
	)
	clamped := util.Clamp(input, low, high)
	if clamped == input {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d        time.Duration
		expected string
	}{
		{45 * time.Second, "45s"},
		{95 * time.Second, "1:35"},
		{3723 * time.Second, "1:02:03"},
	}
	for _, c := range cases {
		out := util.FormatDuration(c.d)
		if out != c.expected {
			t.Errorf("expected %v to format as %s, got %s", c.d, c.expected, out)
		}
	}
}
