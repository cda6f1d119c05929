package runtime

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanWriter reports every write on a channel and optionally fails it.
type chanWriter struct {
	writes chan string
	err    error
}

func (w *chanWriter) Write(p []byte) (int, error) {
	w.writes <- string(p)
	if w.err != nil {
		return 0, w.err
	}
	return len(p), nil
}

func noClose() error { return nil }

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for input")
		return ""
	}
}

func TestStdinPumpHandsUndeliveredInputToNextContainer(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	p := newStdinPump(pr)

	gone := &chanWriter{writes: make(chan string, 1), err: errors.New("connection closed")}
	p.Attach(gone, noClose)

	go func() { _, _ = pw.Write([]byte("hello\n")) }()
	assert.Equal(t, "hello\n", receive(t, gone.writes))

	next := &chanWriter{writes: make(chan string, 1)}
	detach := p.Attach(next, noClose)
	defer detach()
	assert.Equal(t, "hello\n", receive(t, next.writes))
}

func TestStdinPumpDetachedContainerGetsNoInput(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	p := newStdinPump(pr)

	first := &chanWriter{writes: make(chan string, 1)}
	detach := p.Attach(first, noClose)

	go func() { _, _ = pw.Write([]byte("one\n")) }()
	assert.Equal(t, "one\n", receive(t, first.writes))
	detach()

	go func() { _, _ = pw.Write([]byte("two\n")) }()
	second := &chanWriter{writes: make(chan string, 1)}
	defer p.Attach(second, noClose)()
	assert.Equal(t, "two\n", receive(t, second.writes))
	assert.Empty(t, first.writes)
}

func TestStdinPumpClosesWriteOnEOF(t *testing.T) {
	p := newStdinPump(strings.NewReader(""))

	closed := make(chan struct{})
	p.Attach(io.Discard, func() error {
		close(closed)
		return nil
	})

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("closeWrite was not called")
	}

	// A container attached after EOF is closed straight away.
	closedLate := false
	p.Attach(io.Discard, func() error {
		closedLate = true
		return nil
	})
	require.True(t, closedLate)
}
