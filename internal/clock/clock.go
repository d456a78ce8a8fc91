package clock

import "time"

// Clock supplies wall-clock time. The timer engine never calls time.Now
// directly so recovery and completion logic can be tested without waiting.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func System() Clock { return systemClock{} }
