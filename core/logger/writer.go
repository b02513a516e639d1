package logger

import (
	"bufio"
	"io"
	"sync"
	"time"
)

// bufferedWriter batches log lines in memory and flushes them on a timer,
// on Flush and on Close. The first write error sticks.
type bufferedWriter struct {
	mu   sync.Mutex
	buf  *bufio.Writer
	err  error
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// newBufferedWriter wraps w. A zero interval disables the background flusher.
func newBufferedWriter(w io.Writer, size int, interval time.Duration) *bufferedWriter {
	bw := &bufferedWriter{
		buf:  bufio.NewWriterSize(w, size),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if interval <= 0 {
		close(bw.done)
		return bw
	}
	go bw.flushLoop(interval)
	return bw
}

func (w *bufferedWriter) flushLoop(interval time.Duration) {
	defer close(w.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = w.Flush()
		case <-w.stop:
			return
		}
	}
}

func (w *bufferedWriter) Write(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if _, err := w.buf.Write(p); err != nil {
		w.err = err
	}
	return w.err
}

func (w *bufferedWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if err := w.buf.Flush(); err != nil {
		w.err = err
	}
	return w.err
}

// Close stops the flusher and writes out whatever is buffered.
func (w *bufferedWriter) Close() error {
	w.once.Do(func() { close(w.stop) })
	<-w.done
	return w.Flush()
}
