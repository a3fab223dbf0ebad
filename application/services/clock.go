package services

import "time"

// Clock abstracts time so background schedules and decay math are testable
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
