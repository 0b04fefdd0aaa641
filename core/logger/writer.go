package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var errWriterClosed = errors.New("logger: writer closed")

// defaultStall bounds how long a record waits for room in a full queue.
const defaultStall = 100 * time.Millisecond

type record struct {
	data   []byte
	severe bool
}

// sinkWriter fans formatted records out to the regular sinks from a single
// goroutine. Records at error level also reach the severe sinks.
// Lower-level records are dropped, and counted, once the queue stays full
// longer than the stall bound; severe records always wait.
type sinkWriter struct {
	queue    chan record
	flushReq chan chan error
	done     chan struct{}
	stall    time.Duration

	// closeMu guards queue against sends after Close.
	closeMu sync.RWMutex
	closed  bool

	mu     sync.Mutex
	sinks  []*bufio.Writer
	severe []*bufio.Writer

	// errMu is separate from mu so a stalled sink never blocks Write.
	errMu    sync.Mutex
	writeErr error

	dropped atomic.Uint64
}

func newSinkWriter(sinks, severe []io.Writer, bufSize int) *sinkWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &sinkWriter{
		queue:    make(chan record, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		stall:    defaultStall,
		sinks:    buffered(sinks, bufSize),
		severe:   buffered(severe, bufSize/4),
	}
	go w.loop()
	return w
}

func buffered(writers []io.Writer, size int) []*bufio.Writer {
	out := make([]*bufio.Writer, 0, len(writers))
	for _, wr := range writers {
		if wr != nil {
			out = append(out, bufio.NewWriterSize(wr, size))
		}
	}
	return out
}

func (w *sinkWriter) loop() {
	defer close(w.done)
	for {
		select {
		case rec, ok := <-w.queue:
			if !ok {
				w.setErr(w.flushAll())
				return
			}
			w.setErr(w.writeRecord(rec))
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

// Write copies p and queues it. severe marks records at error level.
func (w *sinkWriter) Write(p []byte, severe bool) error {
	if len(p) == 0 {
		return nil
	}
	if err := w.getErr(); err != nil {
		return err
	}
	rec := record{data: append([]byte(nil), p...), severe: severe}

	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	select {
	case w.queue <- rec:
		return nil
	default:
	}
	if severe {
		w.queue <- rec
		return nil
	}
	timer := time.NewTimer(w.stall)
	defer timer.Stop()
	select {
	case w.queue <- rec:
	case <-timer.C:
		w.dropped.Add(1)
	}
	return nil
}

// Dropped reports how many records were discarded on a full queue.
func (w *sinkWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// Flush blocks until every queued record has reached the sinks.
func (w *sinkWriter) Flush() error {
	w.closeMu.RLock()
	closed := w.closed
	w.closeMu.RUnlock()
	if closed {
		return w.getErr()
	}
	ack := make(chan error, 1)
	select {
	case w.flushReq <- ack:
		return <-ack
	case <-w.done:
		return w.getErr()
	}
}

// Close drains the queue and reports the first write error.
func (w *sinkWriter) Close() error {
	w.closeMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.closeMu.Unlock()
	<-w.done
	return w.getErr()
}

func (w *sinkWriter) writeRecord(rec record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := writeTo(w.sinks, rec.data); err != nil {
		return err
	}
	if rec.severe {
		return writeTo(w.severe, rec.data)
	}
	return nil
}

func writeTo(sinks []*bufio.Writer, p []byte) error {
	for _, sink := range sinks {
		if _, err := sink.Write(p); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *sinkWriter) flushAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, group := range [][]*bufio.Writer{w.sinks, w.severe} {
		for _, sink := range group {
			if err := sink.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (w *sinkWriter) getErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.writeErr
}

func (w *sinkWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}
