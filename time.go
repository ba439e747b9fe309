package enrollment

import "time"

// IsWithinThresholdPeriod checks if t happened less than pattern ago.
func IsWithinThresholdPeriod(t time.Time, pattern string) (bool, error) {
	return isWithinThreshold(time.Now(), t, pattern)
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t time.Time, pattern string) (bool, error) {
	valid, err := IsWithinThresholdPeriod(t, pattern)
	if err != nil {
		return false, err
	}

	return !valid, nil
}

func isWithinThreshold(now, t time.Time, pattern string) (bool, error) {
	duration, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}

	return t.After(now.Add(-duration)), nil
}
