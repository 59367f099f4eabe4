package swarm

import "time"

// WaitTime yields the pause a virtual user takes after each task.
type WaitTime func(r Rand) time.Duration

// Between waits a uniformly random duration in [min, max].
// Arguments given in the wrong order are swapped.
func Between(min, max time.Duration) WaitTime {
	if min > max {
		min, max = max, min
	}
	span := max - min
	return func(r Rand) time.Duration {
		if span == 0 {
			return min
		}
		return min + time.Duration(r.Float64()*float64(span))
	}
}

// Constant always waits d.
func Constant(d time.Duration) WaitTime {
	return func(Rand) time.Duration { return d }
}
