package engines

import (
	"math"
	"testing"
)

func TestSpeedForRate(t *testing.T) {
	tests := []struct {
		rate     float64
		expected float64
	}{
		{0.1, 0.5},
		{0.55, 1.25},
		{1.0, 2.0},
		{0.0, 0.5},  // clamps low
		{-1.0, 0.5}, // clamps low
		{2.0, 2.0},  // clamps high
	}
	for _, tt := range tests {
		got := SpeedForRate(tt.rate)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("SpeedForRate(%f) = %f, want %f", tt.rate, got, tt.expected)
		}
	}
}

func TestRatePercent(t *testing.T) {
	tests := []struct {
		rate     float64
		expected string
	}{
		{0.5, "+0%"},
		{0.1, "-50%"},
		{1.0, "+100%"},
		{0.3, "-25%"},
		{0.75, "+50%"},
	}
	for _, tt := range tests {
		if got := RatePercent(tt.rate); got != tt.expected {
			t.Errorf("RatePercent(%f) = %q, want %q", tt.rate, got, tt.expected)
		}
	}
}

func TestRatePercentContinuousAroundMidpoint(t *testing.T) {
	below := RatePercent(0.49)
	above := RatePercent(0.51)
	if below != "-1%" {
		t.Errorf("RatePercent(0.49) = %q, want -1%%", below)
	}
	if above != "+2%" {
		t.Errorf("RatePercent(0.51) = %q, want +2%%", above)
	}
}
