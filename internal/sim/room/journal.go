package room

import (
	"io"

	"tileworld.ai/internal/protocol"
)

type multiJournal []Journal

func (m multiJournal) WriteEvent(env protocol.Envelope) error {
	var first error
	for _, j := range m {
		if err := j.WriteEvent(env); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every sink that has a Close. Shared sinks must tolerate
// being closed more than once.
func (m multiJournal) Close() error {
	var first error
	for _, j := range m {
		if c, ok := j.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// MultiJournal fans one event stream out to several sinks. Nil sinks are
// skipped; with none left it returns nil so callers can skip journaling
// entirely.
func MultiJournal(sinks ...Journal) Journal {
	var out multiJournal
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
