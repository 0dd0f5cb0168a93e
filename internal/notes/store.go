// Package notes owns the authoritative note collection, its search filter,
// and the round-trip to durable key-value storage.
package notes

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/logging"
	"github.com/hpungsan/murmur/internal/note"
)

// DefaultKey is the storage key the collection lives under.
const DefaultKey = "notes"

// Storage is a flat key-value association holding textual values.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the storage key. Blank keys are ignored.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLocale sets the locale used for case-insensitive search.
func WithLocale(locale string) Option {
	return func(s *Store) {
		s.matcher = note.NewMatcher(locale)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.log = logging.OrDiscard(l)
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxChars rejects notes longer than max runes. 0 disables the limit.
func WithMaxChars(max int) Option {
	return func(s *Store) {
		s.maxChars = max
	}
}

// Store is the authoritative, ordered note collection (newest first).
// Every mutation rewrites the whole collection to storage.
type Store struct {
	kv       Storage
	key      string
	matcher  *note.Matcher
	log      *slog.Logger
	now      func() time.Time
	maxChars int

	mu     sync.RWMutex
	notes  []note.Note
	filter string
}

// New creates an empty Store. Call Load to read the persisted collection.
func New(kv Storage, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		key:     DefaultKey,
		matcher: note.NewMatcher(""),
		log:     logging.Discard(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key.
func (s *Store) Key() string {
	return s.key
}

// Load replaces the in-memory collection with the persisted one.
// A missing, unreadable or malformed value yields an empty collection;
// Load never fails.
func (s *Store) Load(ctx context.Context) {
	loaded, err := s.readCollection(ctx)
	if err != nil {
		s.log.Warn("starting with empty collection",
			slog.String("key", s.key),
			slog.String("code", string(errors.ErrMalformedPersistedState)),
			slog.Any("error", err))
		loaded = nil
	}

	s.mu.Lock()
	s.notes = loaded
	s.mu.Unlock()

	s.log.Debug("collection loaded", slog.String("key", s.key), slog.Int("count", len(loaded)))
}

// readCollection is the single place a stored value is interpreted.
func (s *Store) readCollection(ctx context.Context) ([]note.Note, error) {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, errors.NewMalformedPersistedState(s.key, err)
	}
	if !ok {
		return nil, nil
	}
	notes, err := note.DecodeCollection(data)
	if err != nil {
		return nil, errors.NewMalformedPersistedState(s.key, err)
	}
	return notes, nil
}

// Create prepends a new note and persists the collection.
// On a storage write failure the note is kept in memory and returned
// together with a PERSISTENCE_WRITE_FAILURE error.
func (s *Store) Create(ctx context.Context, content string) (note.Note, error) {
	if note.IsBlank(content) {
		return note.Note{}, errors.NewInvalidRequest("content is required")
	}
	if s.maxChars > 0 {
		if chars := note.CountChars(content); chars > s.maxChars {
			return note.Note{}, errors.NewNoteTooLarge(s.maxChars, chars)
		}
	}

	n, err := note.New(content, s.now())
	if err != nil {
		return note.Note{}, errors.NewInternal(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]note.Note, 0, len(s.notes)+1)
	updated = append(updated, n)
	updated = append(updated, s.notes...)
	s.notes = updated

	if err := s.persistLocked(ctx); err != nil {
		return n, err
	}
	s.log.Debug("note created", slog.String("id", n.ID), slog.Int("count", len(s.notes)))
	return n, nil
}

// Delete removes the note with the given id, keeping the order of the rest.
// Deleting an unknown id is a no-op and reports false.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, n := range s.notes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	updated := make([]note.Note, 0, len(s.notes)-1)
	updated = append(updated, s.notes[:idx]...)
	updated = append(updated, s.notes[idx+1:]...)
	s.notes = updated

	if err := s.persistLocked(ctx); err != nil {
		return true, err
	}
	s.log.Debug("note deleted", slog.String("id", id), slog.Int("count", len(s.notes)))
	return true, nil
}

// Import merges notes whose ids are not yet present and persists once.
// The merged collection is ordered newest first by CreatedAt.
func (s *Store) Import(ctx context.Context, incoming []note.Note) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.notes))
	for _, n := range s.notes {
		seen[n.ID] = true
	}

	merged := append([]note.Note{}, s.notes...)
	added := 0
	for _, n := range incoming {
		if n.ID == "" || seen[n.ID] || note.IsBlank(n.Content) {
			continue
		}
		seen[n.ID] = true
		merged = append(merged, n)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	s.notes = merged

	if err := s.persistLocked(ctx); err != nil {
		return added, err
	}
	return added, nil
}

// persistLocked writes the full collection. Caller holds s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	data, err := note.EncodeCollection(s.notes)
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		s.log.Error("persist failed",
			slog.String("key", s.key),
			slog.Int("count", len(s.notes)),
			slog.Any("error", err))
		return errors.NewPersistenceWriteFailure(s.key, err)
	}
	return nil
}

// SetFilter updates the active search string.
func (s *Store) SetFilter(query string) {
	s.mu.Lock()
	s.filter = query
	s.mu.Unlock()
}

// Filter returns the active search string.
func (s *Store) Filter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Visible returns the notes matching the active filter, newest first.
// The slice is freshly allocated on every call.
func (s *Store) Visible() []note.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matcher.Filter(s.notes, s.filter)
}

// Search is Visible for an explicit query; it leaves the active filter alone.
func (s *Store) Search(query string) []note.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matcher.Filter(s.notes, query)
}

// All returns a copy of the whole collection.
func (s *Store) All() []note.Note {
	return s.Search("")
}

// Get returns the note with the given id.
func (s *Store) Get(id string) (note.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.notes {
		if n.ID == id {
			return n, true
		}
	}
	return note.Note{}, false
}

// Len returns the number of notes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}
