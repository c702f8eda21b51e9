package identity

import "time"

// IsWithinThresholdPeriod reports whether t falls inside the window that ends
// now and spans the duration given by pattern, e.g. "15m". The login cooldown
// uses it to decide if a recent failed attempt still counts.
func IsWithinThresholdPeriod(t time.Time, pattern string) (bool, error) {
	duration, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}

	threshold := time.Now().Add(-duration)
	if t.After(threshold) {
		return true, nil
	}

	return false, nil
}

// IsOutsideThresholdPeriod reports whether t predates the window, meaning the
// attempt counter can be reset.
func IsOutsideThresholdPeriod(t time.Time, pattern string) (bool, error) {
	valid, err := IsWithinThresholdPeriod(t, pattern)
	if err != nil {
		return false, err
	}

	return !valid, nil
}
