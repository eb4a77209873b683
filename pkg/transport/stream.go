package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"
)

// stream buffers everything read from the device in a background goroutine
// so that Expect can wait on a pattern with a deadline instead of blocking
// in Read.
type stream struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	err    error
	notify chan struct{}

	wmu sync.Mutex
	w   io.Writer

	closer    func() error
	closeOnce sync.Once
	closeErr  error
}

func newStream(r io.Reader, w io.Writer, closer func() error) *stream {
	s := openStream(w, closer)
	go s.pump(r)
	return s
}

// openStream returns a stream whose reader is started later with pump.
func openStream(w io.Writer, closer func() error) *stream {
	return &stream{
		w:      w,
		closer: closer,
		notify: make(chan struct{}, 1),
	}
}

func (s *stream) pump(r io.Reader) {
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(chunk[:n])
			s.mu.Unlock()
			s.signal()
		}
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			s.signal()
			return
		}
	}
}

func (s *stream) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *stream) write(p []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.w.Write(p); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// Send writes text unchanged.
func (s *stream) Send(text string) error {
	return s.write([]byte(text))
}

// Expect waits for re and consumes the output up to the end of the match.
func (s *stream) Expect(ctx context.Context, re *regexp.Regexp, timeout time.Duration) (string, error) {
	return s.wait(ctx, re, timeout, true)
}

// wait is Expect with optional consumption. Peeking leaves the buffer intact
// so a later Expect sees the same text.
func (s *stream) wait(ctx context.Context, re *regexp.Regexp, timeout time.Duration, consume bool) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		data := s.buf.String()
		if loc := re.FindStringIndex(data); loc != nil {
			if consume {
				s.buf.Next(loc[1])
			}
			s.mu.Unlock()
			return data[:loc[1]], nil
		}
		readErr := s.err
		s.mu.Unlock()

		if readErr != nil {
			return data, fmt.Errorf("%w: %v", ErrClosed, readErr)
		}

		select {
		case <-s.notify:
		case <-timer.C:
			return data, fmt.Errorf("%w (%s): %q", ErrTimeout, timeout, re.String())
		case <-ctx.Done():
			return data, ctx.Err()
		}
	}
}

// Close runs the closer once.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		if s.closer != nil {
			s.closeErr = s.closer()
		}
	})
	return s.closeErr
}
