package aof

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"kvcore/lib/logger"
	"kvcore/reply"
)

const minBufferBytes = 128

var errLogClosed = fmt.Errorf("%w: append log closed", reply.ErrBackendUnavailable)

// logWriter owns the append log file. A single goroutine drains the queue
// into a buffer and flushes it when full, on a ticker and at close, so no
// lock guards the buffer or the file.
type logWriter struct {
	file           *os.File
	buffer         bytes.Buffer
	maxBufferBytes int
	// failure is set by the first failed write or sync; the log accepts nothing after it.
	failure error

	queue          chan appendRequest
	enqueueTimeout time.Duration
	flushInterval  time.Duration

	stop     chan struct{}
	stopped  chan struct{}
	closeErr error
}

type appendRequest struct {
	data     []byte
	buffered chan error
}

func newLogWriter(file *os.File, bufferBytes, queueSize int, enqueueTimeout, flushInterval time.Duration) *logWriter {
	if bufferBytes < minBufferBytes {
		bufferBytes = minBufferBytes
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &logWriter{
		file:           file,
		maxBufferBytes: bufferBytes,
		queue:          make(chan appendRequest, queueSize),
		enqueueTimeout: enqueueTimeout,
		flushInterval:  flushInterval,
		stop:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
}

// append hands data to the writer goroutine and waits until it is buffered.
// A full queue past the enqueue timeout, a closed log or an earlier write
// failure is reported as BackendUnavailable.
func (w *logWriter) append(data []byte) error {
	select {
	case <-w.stopped:
		return errLogClosed
	default:
	}

	req := appendRequest{data: data, buffered: make(chan error, 1)}
	timer := time.NewTimer(w.enqueueTimeout)
	defer timer.Stop()

	select {
	case w.queue <- req:
	case <-timer.C:
		return fmt.Errorf("%w: append log queue full after %v", reply.ErrBackendUnavailable, w.enqueueTimeout)
	case <-w.stopped:
		return errLogClosed
	}

	var err error
	select {
	case err = <-req.buffered:
	case <-w.stopped:
		// drained on the way out, or never seen
		select {
		case err = <-req.buffered:
		default:
			return errLogClosed
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %v", reply.ErrBackendUnavailable, err)
	}
	return nil
}

func (w *logWriter) run() {
	defer close(w.stopped)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case req := <-w.queue:
			req.buffered <- w.write(req.data)
		case <-ticker.C:
			if err := w.flush(); err != nil {
				logger.Error("append log periodic flush failed", "error", err)
			}
		case <-w.stop:
			w.drain()
			w.closeErr = errors.Join(w.flush(), w.file.Close())
			return
		}
	}
}

// drain buffers requests that were queued before stop.
func (w *logWriter) drain() {
	for {
		select {
		case req := <-w.queue:
			req.buffered <- w.write(req.data)
		default:
			return
		}
	}
}

// close flushes, syncs and closes the file, and returns the first error.
func (w *logWriter) close() error {
	close(w.stop)
	<-w.stopped
	return w.closeErr
}

func (w *logWriter) write(data []byte) error {
	if w.failure != nil {
		return w.failure
	}
	if w.buffer.Len() > 0 && w.buffer.Len()+len(data) > w.maxBufferBytes {
		if err := w.flush(); err != nil {
			return err
		}
	}
	before := w.buffer.Len()
	w.buffer.Write(data)
	if w.buffer.Len() >= w.maxBufferBytes {
		if err := w.flush(); err != nil {
			w.buffer.Truncate(before)
			return err
		}
	}
	return nil
}

func (w *logWriter) flush() error {
	if w.failure != nil {
		return w.failure
	}
	if w.buffer.Len() == 0 {
		return nil
	}
	if _, err := w.file.Write(w.buffer.Bytes()); err != nil {
		w.failure = fmt.Errorf("append log write: %w", err)
		return w.failure
	}
	if err := w.file.Sync(); err != nil {
		w.failure = fmt.Errorf("append log sync: %w", err)
		return w.failure
	}
	w.buffer.Reset()
	return nil
}
