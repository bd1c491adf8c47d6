package model

import "time"

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether Start is strictly before End.
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

// Overlaps reports whether the two windows share at least one instant.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && w.End.After(o.Start)
}

// Contains reports whether t falls inside the window. Start is inside, End is not.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// UTC returns the window with both bounds converted to UTC.
func (w Window) UTC() Window {
	return Window{Start: w.Start.UTC(), End: w.End.UTC()}
}
