package clock

import "time"

// Clock is the time source for run summaries and ledger entries.
type Clock interface {
	Now() time.Time
}

// SystemClock reports wall time in UTC so ledger rows compare across zones.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Since is time.Since measured on c, rounded to the millisecond for logs and
// summaries.
func Since(c Clock, start time.Time) time.Duration {
	return c.Now().Sub(start).Round(time.Millisecond)
}
