package engines

import "fmt"

// SpeedForRate maps the normalized rate (0.1 to 1.0) onto the speed
// multiplier the synthesizers understand (0.5x to 2.0x), linearly: 0.1
// maps to 0.5x and 1.0 to 2.0x. Out-of-range input clamps.
func SpeedForRate(rate float64) float64 {
	speed := 0.5 + ((rate - 0.1) / 0.9 * 1.5)
	if speed < 0.5 {
		return 0.5
	}
	if speed > 2.0 {
		return 2.0
	}
	return speed
}

// RatePercent maps the normalized rate onto the SSML prosody rate
// attribute: 0.5 is the voice's natural speed ("+0%"), below it slows
// down linearly to -50% and above it speeds up linearly to +100%.
func RatePercent(rate float64) string {
	var percent float64
	if rate <= 0.5 {
		percent = (rate - 0.5) / 0.4 * 50
	} else {
		percent = (rate - 0.5) / 0.5 * 100
	}
	return fmt.Sprintf("%+.0f%%", percent)
}
