// Package speech defines the continuous speech-to-text capability used by
// capture sessions, plus a line-oriented recognizer for piped transcripts.
//
// A Recognizer opens a Stream that delivers results through a Handler.
// Every OnResult call carries the full list of results received so far;
// later calls may revise earlier interim results.
package speech

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnsupported reports that no speech capability is available.
	ErrUnsupported = errors.New("speech recognition unsupported")

	// ErrStreamClosed marks a stream error after which no more events arrive.
	ErrStreamClosed = errors.New("speech stream closed")
)

// Config is the per-stream recognition configuration.
type Config struct {
	Locale          string
	Continuous      bool
	InterimResults  bool
	MaxAlternatives int
}

// DefaultConfig returns continuous Brazilian Portuguese recognition with
// interim results and a single alternative.
func DefaultConfig() Config {
	return Config{
		Locale:          "pt-BR",
		Continuous:      true,
		InterimResults:  true,
		MaxAlternatives: 1,
	}
}

// Alternative is one candidate transcription of a result.
type Alternative struct {
	Transcript string
	Confidence float64
}

// Result is one recognized segment. Alternatives are ordered best first.
type Result struct {
	Alternatives []Alternative
	Final        bool
}

// Best returns the transcript of the best alternative, or "".
func (r Result) Best() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Transcript
}

// Handler receives stream events. Nil funcs are skipped.
type Handler struct {
	OnResult func(results []Result)
	OnError  func(err error)
	OnEnd    func()
}

// Deliver calls OnResult if set.
func (h Handler) Deliver(results []Result) {
	if h.OnResult != nil {
		h.OnResult(results)
	}
}

// Fail calls OnError if set.
func (h Handler) Fail(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// Finish calls OnEnd if set.
func (h Handler) Finish() {
	if h.OnEnd != nil {
		h.OnEnd()
	}
}

// Recognizer starts recognition streams.
//
// Start may invoke h before it returns, on the calling goroutine or any
// other, so callers must not hold locks that h needs while calling Start.
type Recognizer interface {
	Start(ctx context.Context, cfg Config, h Handler) (Stream, error)
}

// Stream is an active recognition stream.
// Stop is idempotent. Events produced after Stop are dropped.
type Stream interface {
	Stop() error
}

// Transcript concatenates, in order, the best transcript of every result.
func Transcript(results []Result) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Best())
	}
	return b.String()
}

// IsFatal reports whether err ends the stream.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStreamClosed)
}

// Accumulator builds the cumulative result list a stream reports.
// An interim result replaces a trailing interim one; a final result
// replaces a trailing interim one or is appended.
type Accumulator struct {
	results []Result
}

// Add records a transcript and returns a copy of all results so far.
// Segments after the first are separated by a single space.
func (a *Accumulator) Add(transcript string, final bool) []Result {
	idx := len(a.results)
	replace := idx > 0 && !a.results[idx-1].Final
	if replace {
		idx--
	}
	if idx > 0 && transcript != "" && !strings.HasPrefix(transcript, " ") {
		transcript = " " + transcript
	}

	r := Result{
		Alternatives: []Alternative{{Transcript: transcript, Confidence: confidence(final)}},
		Final:        final,
	}
	if replace {
		a.results[idx] = r
	} else {
		a.results = append(a.results, r)
	}
	return a.Results()
}

// Results returns a copy of the accumulated results.
func (a *Accumulator) Results() []Result {
	out := make([]Result, len(a.results))
	copy(out, a.results)
	return out
}

func confidence(final bool) float64 {
	if final {
		return 1
	}
	return 0
}
