// Package spool recognizes speech from audio segments dropped into a
// directory by an external recorder.
//
// Recorders must publish each segment atomically: write it under a name
// without an audio extension, then rename it into place. Every new segment
// is transcribed and appended to the stream as a final result.
package spool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/hpungsan/murmur/internal/logging"
	"github.com/hpungsan/murmur/internal/speech"
)

// AudioExtensions lists the segment file extensions picked up from the spool.
var AudioExtensions = []string{".wav", ".mp3", ".m4a", ".ogg", ".webm", ".flac"}

// Transcriber converts one audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, cfg speech.Config) (string, error)
}

// Recognizer watches Dir for new segments.
type Recognizer struct {
	Dir         string
	Transcriber Transcriber
	Logger      *slog.Logger
}

// New returns a Recognizer for dir.
func New(dir string, t Transcriber, logger *slog.Logger) *Recognizer {
	return &Recognizer{Dir: dir, Transcriber: t, Logger: logger}
}

// Start creates the spool directory if needed and begins watching it.
// Segments already present when Start is called are not transcribed.
func (r *Recognizer) Start(ctx context.Context, cfg speech.Config, h speech.Handler) (speech.Stream, error) {
	if r.Transcriber == nil {
		return nil, speech.ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(r.Dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", r.Dir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &stream{
		rec:     r,
		cfg:     cfg,
		h:       h,
		log:     logging.OrDiscard(r.Logger).With(slog.String("spool", r.Dir)),
		watcher: watcher,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(runCtx)
	return s, nil
}

type stream struct {
	rec     *Recognizer
	cfg     speech.Config
	h       speech.Handler
	log     *slog.Logger
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
}

// Stop ends the stream and waits for the watcher to close.
func (s *stream) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	<-s.done
	return nil
}

func (s *stream) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

func (s *stream) run(ctx context.Context) {
	defer close(s.done)
	defer s.watcher.Close()

	var acc speech.Accumulator
	seen := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				s.fatal(fmt.Errorf("watcher events channel closed"))
				return
			}
			if !event.Has(fsnotify.Create) || !isAudio(event.Name) || seen[event.Name] {
				continue
			}
			seen[event.Name] = true
			s.log.Debug("segment received", slog.String("file", filepath.Base(event.Name)))

			text, err := s.rec.Transcriber.Transcribe(ctx, event.Name, s.cfg)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Warn("transcription failed", slog.String("file", event.Name), slog.Any("error", err))
				if s.active() {
					s.h.Fail(err)
				}
				continue
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}

			results := acc.Add(text, true)
			if !s.active() {
				return
			}
			s.h.Deliver(results)

			if !s.cfg.Continuous {
				s.h.Finish()
				return
			}

		case wErr, ok := <-s.watcher.Errors:
			if !ok {
				s.fatal(fmt.Errorf("watcher errors channel closed"))
				return
			}
			s.fatal(wErr)
			return
		}
	}
}

func (s *stream) fatal(err error) {
	if !s.active() {
		return
	}
	s.log.Error("spool watcher failed", slog.Any("error", err))
	s.h.Fail(fmt.Errorf("%w: %v", speech.ErrStreamClosed, err))
}

func isAudio(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AudioExtensions {
		if ext == a {
			return true
		}
	}
	return false
}
