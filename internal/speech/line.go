package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
)

// InterimPrefix marks a transcript line as an interim result.
const InterimPrefix = "~"

// LineRecognizer turns transcript lines from an io.Reader into results.
// It suits streaming STT engines that print one line per utterance.
//
// The reader is consumed by a single goroutine shared across streams, so
// a session can stop and restart recording on the same input. Lines are
// queued until the current stream takes them; a stopped stream takes none,
// and lines read while no stream is running wait for the next one.
type LineRecognizer struct {
	r    io.Reader
	once sync.Once

	mu      sync.Mutex
	pending []string
	eof     bool
	err     error // read error, valid once eof is set
	current *lineStream
}

// NewLineRecognizer returns a recognizer reading lines from r.
func NewLineRecognizer(r io.Reader) *LineRecognizer {
	return &LineRecognizer{r: r}
}

func (l *LineRecognizer) read() {
	scanner := bufio.NewScanner(l.r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		l.mu.Lock()
		l.pending = append(l.pending, scanner.Text())
		l.wakeLocked()
		l.mu.Unlock()
	}
	l.mu.Lock()
	l.eof = true
	l.err = scanner.Err()
	l.wakeLocked()
	l.mu.Unlock()
}

func (l *LineRecognizer) wakeLocked() {
	if l.current == nil {
		return
	}
	select {
	case l.current.wake <- struct{}{}:
	default:
	}
}

// Start begins a stream. Events are delivered on a separate goroutine.
// The new stream replaces any stream still running on l.
func (l *LineRecognizer) Start(ctx context.Context, cfg Config, h Handler) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.once.Do(func() { go l.read() })

	ctx, cancel := context.WithCancel(ctx)
	s := &lineStream{l: l, cancel: cancel, wake: make(chan struct{}, 1)}

	l.mu.Lock()
	l.current = s
	l.mu.Unlock()

	go s.run(ctx, cfg, h)
	return s, nil
}

type pull int

const (
	pullLine pull = iota
	pullWait
	pullEOF
	pullGone
)

// next takes the oldest queued line for s.
func (l *LineRecognizer) next(s *lineStream) (string, pull, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.current != s:
		return "", pullGone, nil
	case len(l.pending) > 0:
		line := l.pending[0]
		l.pending = l.pending[1:]
		return line, pullLine, nil
	case l.eof:
		return "", pullEOF, l.err
	}
	return "", pullWait, nil
}

// keep reports whether s may deliver line. A stream stopped after taking
// the line puts it back at the head of the queue.
func (l *LineRecognizer) keep(s *lineStream, line string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == s {
		return true
	}
	l.pending = slices.Insert(l.pending, 0, line)
	l.wakeLocked()
	return false
}

func (l *LineRecognizer) release(s *lineStream) {
	l.mu.Lock()
	if l.current == s {
		l.current = nil
	}
	l.mu.Unlock()
}

type lineStream struct {
	l      *LineRecognizer
	cancel context.CancelFunc
	wake   chan struct{}
}

func (s *lineStream) Stop() error {
	s.l.release(s)
	s.cancel()
	return nil
}

func (s *lineStream) run(ctx context.Context, cfg Config, h Handler) {
	defer s.l.release(s)

	var acc Accumulator
	for {
		line, st, err := s.l.next(s)
		switch st {
		case pullGone:
			return
		case pullEOF:
			if err != nil {
				h.Fail(fmt.Errorf("%w: %v", ErrStreamClosed, err))
				return
			}
			h.Finish()
			return
		case pullWait:
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			continue
		}

		text, final := parseLine(line)
		if text == "" || (!final && !cfg.InterimResults) {
			continue
		}
		if !s.l.keep(s, line) {
			return
		}
		h.Deliver(acc.Add(text, final))

		if final && !cfg.Continuous {
			h.Finish()
			return
		}
	}
}

func parseLine(line string) (text string, final bool) {
	line = strings.TrimRight(line, "\r")
	if rest, ok := strings.CutPrefix(line, InterimPrefix); ok {
		return strings.TrimSpace(rest), false
	}
	return strings.TrimSpace(line), true
}
