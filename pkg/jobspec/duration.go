package jobspec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Unlimited is returned by ParseDuration for "inf" and "infinity".
const Unlimited = time.Duration(math.MaxInt64)

var fsdUnits = map[byte]float64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
}

// ParseDuration parses a Flux Standard Duration: a non-negative number with
// an optional s, m, h or d suffix. A bare number is in seconds.
func ParseDuration(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	s = raw
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	switch strings.ToLower(s) {
	case "inf", "infinity":
		return Unlimited, nil
	}
	mult := 1.0
	if m, ok := fsdUnits[s[len(s)-1]]; ok {
		mult = m
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("duration must not be negative")
	}
	return secondsToDuration(v * mult), nil
}

func secondsToDuration(sec float64) time.Duration {
	if sec >= float64(Unlimited)/float64(time.Second) {
		return Unlimited
	}
	return time.Duration(sec * float64(time.Second))
}
