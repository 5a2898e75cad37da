package log

// MultiLogger fans every event out to a set of loggers, in order. The
// server harness uses it to write the CBOR event file and mirror events
// to the console at the same time.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a fan-out over the given loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log delivers the event to every logger in the set.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
