package procman

import (
	"bytes"
	"sync"
)

// limitWriter captures up to max bytes. The first write that would exceed
// the cap truncates, fires onOverflow once, and all further input is
// discarded. Write never returns an error so the child's pipe keeps
// draining while the kill is in flight.
type limitWriter struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	max        int64
	overflowed bool
	onOverflow func()
}

func newLimitWriter(max int64, onOverflow func()) *limitWriter {
	return &limitWriter{max: max, onOverflow: onOverflow}
}

func (w *limitWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	fire := false
	if !w.overflowed {
		remaining := w.max - int64(w.buf.Len())
		if int64(len(p)) <= remaining {
			w.buf.Write(p)
		} else {
			if remaining > 0 {
				w.buf.Write(p[:remaining])
			}
			w.overflowed = true
			fire = true
		}
	}
	w.mu.Unlock()
	if fire && w.onOverflow != nil {
		w.onOverflow()
	}
	return len(p), nil
}

func (w *limitWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func (w *limitWriter) Overflowed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.overflowed
}
