package logger

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// gateWriter blocks every write until release is closed.
type gateWriter struct {
	release chan struct{}
	mu      sync.Mutex
	buf     bytes.Buffer
}

func (g *gateWriter) Write(p []byte) (int, error) {
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buf.Write(p)
}

func (g *gateWriter) String() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buf.String()
}

func TestSinkWriterDropsOnStalledQueue(t *testing.T) {
	gate := &gateWriter{release: make(chan struct{})}
	w := newSinkWriter([]io.Writer{gate}, nil, 16)
	w.stall = time.Millisecond

	total := cap(w.queue) + 10
	for i := 0; i < total; i++ {
		if err := w.Write([]byte("line\n"), false); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if w.Dropped() == 0 {
		t.Fatal("expected records to be dropped while the sink is stalled")
	}

	close(gate.release)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	written := strings.Count(gate.String(), "line\n")
	if uint64(written)+w.Dropped() != uint64(total) {
		t.Fatalf("written %d + dropped %d != %d", written, w.Dropped(), total)
	}
}

func TestSinkWriterSevereGoesToBothGroups(t *testing.T) {
	all := &bytes.Buffer{}
	severe := &bytes.Buffer{}
	w := newSinkWriter([]io.Writer{all}, []io.Writer{severe}, 1024)
	if err := w.Write([]byte("info\n"), false); err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]byte("boom\n"), true); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if all.String() != "info\nboom\n" {
		t.Fatalf("unexpected main sink %q", all.String())
	}
	if severe.String() != "boom\n" {
		t.Fatalf("unexpected severe sink %q", severe.String())
	}
}

func TestSinkWriterAfterClose(t *testing.T) {
	w := newSinkWriter([]io.Writer{&bytes.Buffer{}}, nil, 0)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := w.Write([]byte("late\n"), false); !errors.Is(err, errWriterClosed) {
		t.Fatalf("expected errWriterClosed, got %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSinkWriterReportsFirstError(t *testing.T) {
	w := newSinkWriter([]io.Writer{failingWriter{}}, nil, 16)
	if err := w.Write([]byte("line\n"), false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := w.Close(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected disk full, got %v", err)
	}
}
