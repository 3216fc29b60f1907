package audit

import "time"

// Option applies a configuration option to the Log.
type Option func(*Log)

// WithClock sets the source of timestamps for entries appended without one.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator sets the source of entry ids.
func WithIDGenerator(newID func() string) Option {
	return func(l *Log) {
		if newID != nil {
			l.newID = newID
		}
	}
}
