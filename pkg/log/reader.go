package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects a subset of events when reading a log file.
// Zero-value fields match everything.
type Filter struct {
	// ConnectionID filters events to a single connection.
	ConnectionID string

	// Direction filters IO events by direction. Only applies when
	// FilterDirection is true, since DirectionIn is the zero value.
	Direction       Direction
	FilterDirection bool

	// Category filters by event category. Only applies when
	// FilterCategory is true, since CategoryState is the zero value.
	Category       Category
	FilterCategory bool

	// TimeStart and TimeEnd bound events to a time window (inclusive).
	TimeStart time.Time
	TimeEnd   time.Time
}

// matches reports whether ev passes the filter.
func (f *Filter) matches(ev *Event) bool {
	if f.ConnectionID != "" && ev.ConnectionID != f.ConnectionID {
		return false
	}
	if f.FilterDirection && ev.Direction != f.Direction {
		return false
	}
	if f.FilterCategory && ev.Category != f.Category {
		return false
	}
	if !f.TimeStart.IsZero() && ev.Timestamp.Before(f.TimeStart) {
		return false
	}
	if !f.TimeEnd.IsZero() && ev.Timestamp.After(f.TimeEnd) {
		return false
	}
	return true
}

// Reader streams events from a .tlog file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  *Filter
}

// NewReader opens a log file for reading.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, nil)
}

// NewFilteredReader opens a log file and returns only events matching
// the filter. A nil filter matches all events.
func NewFilteredReader(path string, filter *Filter) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	return &Reader{
		file:    file,
		decoder: NewDecoder(file),
		filter:  filter,
	}, nil
}

// Next returns the next matching event, or io.EOF when the file is
// exhausted.
func (r *Reader) Next() (*Event, error) {
	for {
		var ev Event
		if err := r.decoder.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("decoding event: %w", err)
		}
		if r.filter == nil || r.filter.matches(&ev) {
			return &ev, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
