package valueobjects

import (
	"time"

	"engram-backend/pkg/errors"
)

// ValidInterval is the half-open [from, to) validity window of one memory
// version. A zero `to` means the version is still open-ended.
type ValidInterval struct {
	from time.Time
	to   time.Time
}

// NewOpenInterval starts a validity window with no end
func NewOpenInterval(from time.Time) ValidInterval {
	return ValidInterval{from: from}
}

// NewValidInterval creates a closed validity window
func NewValidInterval(from, to time.Time) (ValidInterval, error) {
	if !to.IsZero() && !to.After(from) {
		return ValidInterval{}, errors.NewValidation("interval end must be after its start")
	}
	return ValidInterval{from: from, to: to}, nil
}

func (i ValidInterval) From() time.Time { return i.from }
func (i ValidInterval) To() time.Time   { return i.to }
func (i ValidInterval) IsOpen() bool    { return i.to.IsZero() }

// Contains reports whether t falls inside [from, to)
func (i ValidInterval) Contains(t time.Time) bool {
	if t.Before(i.from) {
		return false
	}
	return i.to.IsZero() || t.Before(i.to)
}

// Close ends the window at the given instant
func (i ValidInterval) Close(at time.Time) (ValidInterval, error) {
	return NewValidInterval(i.from, at)
}
