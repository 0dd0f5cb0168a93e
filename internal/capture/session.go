// Package capture drives the creation of a single note by typing or by
// live dictation.
//
// A Session is Idle until the user starts typing or recording. Recording
// streams transcripts from a speech.Recognizer into the draft; saving hands
// the draft to the note store and resets the session.
package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/logging"
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/speech"
)

// State is the session's input mode.
type State string

const (
	Idle      State = "idle"
	Editing   State = "editing"
	Recording State = "recording"
)

// Saver persists a finished draft. *notes.Store satisfies it.
type Saver interface {
	Create(ctx context.Context, content string) (note.Note, error)
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	State      State  `json:"state"`
	Draft      string `json:"draft"`
	Onboarding bool   `json:"onboarding"`
	LastError  error  `json:"-"`
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.log = logging.OrDiscard(l)
	}
}

// OnChange registers a callback invoked after every state or draft change.
// It runs outside the session lock and may call Snapshot.
func OnChange(fn func(Snapshot)) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// Session is one note-capture interaction.
type Session struct {
	saver    Saver
	rec      speech.Recognizer
	cfg      speech.Config
	log      *slog.Logger
	onChange func(Snapshot)

	mu         sync.Mutex
	state      State
	draft      string
	onboarding bool
	lastErr    error
	stream     speech.Stream
	gen        uint64 // bumped whenever the active stream changes
}

// New creates an Idle session. A nil rec means speech is unavailable.
func New(saver Saver, rec speech.Recognizer, cfg speech.Config, opts ...Option) *Session {
	cfg.MaxAlternatives = 1
	s := &Session{
		saver:      saver,
		rec:        rec,
		cfg:        cfg,
		log:        logging.Discard(),
		state:      Idle,
		onboarding: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:      s.state,
		Draft:      s.draft,
		Onboarding: s.onboarding,
		LastError:  s.lastErr,
	}
}

func (s *Session) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// StartTyping opens the text editor. It has no effect while recording.
func (s *Session) StartTyping() {
	s.mu.Lock()
	if s.state == Recording {
		s.mu.Unlock()
		return
	}
	s.state = Editing
	s.onboarding = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// SetDraft replaces the draft. Setting it to "" clears the session.
func (s *Session) SetDraft(text string) {
	if text == "" {
		s.Clear()
		return
	}

	s.mu.Lock()
	s.draft = text
	if s.state == Idle {
		s.state = Editing
		s.onboarding = false
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Clear returns to Idle with an empty draft, stopping any active stream.
func (s *Session) Clear() {
	s.mu.Lock()
	stream := s.detachLocked()
	s.state = Idle
	s.draft = ""
	s.onboarding = true
	s.lastErr = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.stop(stream)
	s.notify(snap)
}

// StartRecording opens a speech stream. Without a working recognizer it
// fails with CAPABILITY_UNAVAILABLE and leaves the session untouched.
//
// The session is Recording while the recognizer starts, so events the
// recognizer delivers from inside Start are applied like any other.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Recording {
		s.mu.Unlock()
		return errors.NewInvalidState(string(Recording), "start recording")
	}
	if s.rec == nil {
		s.mu.Unlock()
		s.log.Warn("speech capability unavailable")
		return errors.NewCapabilityUnavailable(speech.ErrUnsupported)
	}

	prevState, prevOnboarding, prevErr := s.state, s.onboarding, s.lastErr
	s.gen++
	gen := s.gen
	s.state = Recording
	s.onboarding = false
	s.lastErr = nil
	s.mu.Unlock()

	stream, err := s.rec.Start(ctx, s.cfg, s.handler(gen))

	s.mu.Lock()
	if err != nil {
		if gen == s.gen {
			s.gen++
			s.state = prevState
			s.onboarding = prevOnboarding
			s.lastErr = prevErr
		}
		s.mu.Unlock()
		s.log.Warn("speech stream failed to start", slog.Any("error", err))
		return errors.NewCapabilityUnavailable(err)
	}
	if gen != s.gen {
		// Ended or stopped before Start returned.
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.stop(stream)
		s.notify(snap)
		return nil
	}
	s.stream = stream
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info("recording started", slog.String("locale", s.cfg.Locale))
	s.notify(snap)
	return nil
}

// StopRecording stops the stream and returns to Editing with the draft kept.
func (s *Session) StopRecording() error {
	s.mu.Lock()
	if s.state != Recording {
		state := s.state
		s.mu.Unlock()
		return errors.NewInvalidState(string(state), "stop recording")
	}
	stream := s.detachLocked()
	s.state = Editing
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.stop(stream)
	s.log.Info("recording stopped", slog.Int("draft_chars", note.CountChars(snap.Draft)))
	s.notify(snap)
	return nil
}

// Save hands the draft to the saver and resets the session to Idle.
// A blank draft is rejected and nothing changes.
func (s *Session) Save(ctx context.Context) (note.Note, error) {
	s.mu.Lock()
	if s.state == Recording {
		s.mu.Unlock()
		return note.Note{}, errors.NewInvalidState(string(Recording), "save")
	}
	if note.IsBlank(s.draft) {
		s.mu.Unlock()
		return note.Note{}, errors.NewInvalidRequest("draft is empty")
	}

	n, err := s.saver.Create(ctx, s.draft)
	if err != nil && !errors.Is(err, errors.ErrPersistenceWriteFailure) {
		s.mu.Unlock()
		return note.Note{}, err
	}

	// A write failure still leaves the note in the collection.
	s.state = Idle
	s.draft = ""
	s.onboarding = true
	s.lastErr = err
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info("note saved", slog.String("id", n.ID))
	s.notify(snap)
	return n, err
}

// Close releases any active stream.
func (s *Session) Close() error {
	s.mu.Lock()
	stream := s.detachLocked()
	if s.state == Recording {
		s.state = Editing
	}
	s.mu.Unlock()

	s.stop(stream)
	return nil
}

// detachLocked forgets the active stream so its late events are ignored.
func (s *Session) detachLocked() speech.Stream {
	stream := s.stream
	s.stream = nil
	s.gen++
	return stream
}

func (s *Session) stop(stream speech.Stream) {
	if stream == nil {
		return
	}
	if err := stream.Stop(); err != nil {
		s.log.Warn("failed to stop speech stream", slog.Any("error", err))
	}
}

func (s *Session) handler(gen uint64) speech.Handler {
	return speech.Handler{
		OnResult: func(results []speech.Result) { s.onResult(gen, results) },
		OnError:  func(err error) { s.onError(gen, err) },
		OnEnd:    func() { s.onEnd(gen) },
	}
}

func (s *Session) onResult(gen uint64, results []speech.Result) {
	s.mu.Lock()
	if gen != s.gen || s.state != Recording {
		s.mu.Unlock()
		return
	}
	s.draft = speech.Transcript(results)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Session) onError(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	fatal := speech.IsFatal(err)
	s.lastErr = errors.NewTranscriptionStream(err)
	if fatal && s.state == Recording {
		// The stream is already gone; drop it without calling Stop.
		s.stream = nil
		s.gen++
		s.state = Editing
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Warn("speech stream error",
		slog.String("code", string(errors.ErrTranscriptionStream)),
		slog.Bool("fatal", fatal),
		slog.Any("error", err))
	s.notify(snap)
}

func (s *Session) onEnd(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != Recording {
		s.mu.Unlock()
		return
	}
	s.stream = nil
	s.gen++
	s.state = Editing
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info("speech stream ended")
	s.notify(snap)
}
