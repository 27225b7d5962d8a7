package procman

import (
	"bytes"
	"testing"
)

func TestLimitWriterCapsAndFiresOnce(t *testing.T) {
	fired := 0
	w := newLimitWriter(10, func() { fired++ })

	n, err := w.Write(bytes.Repeat([]byte("a"), 8))
	if err != nil || n != 8 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	if w.Overflowed() {
		t.Fatalf("overflowed before the cap")
	}

	// Crossing the cap truncates and fires exactly once.
	n, err = w.Write([]byte("bbbb"))
	if err != nil || n != 4 {
		t.Fatalf("overflow write must still report full length: n=%d err=%v", n, err)
	}
	if got := w.String(); got != "aaaaaaaabb" {
		t.Fatalf("buffer = %q, want truncated at 10 bytes", got)
	}
	if fired != 1 {
		t.Fatalf("onOverflow fired %d times, want 1", fired)
	}

	// Further writes are discarded without firing again.
	_, _ = w.Write([]byte("cccc"))
	if fired != 1 || len(w.String()) != 10 {
		t.Fatalf("writer kept accepting after overflow: fired=%d len=%d", fired, len(w.String()))
	}
}

func TestLimitWriterExactFitDoesNotOverflow(t *testing.T) {
	fired := 0
	w := newLimitWriter(4, func() { fired++ })
	_, _ = w.Write([]byte("abcd"))
	if w.Overflowed() || fired != 0 {
		t.Fatalf("exact fit must not overflow")
	}
}
