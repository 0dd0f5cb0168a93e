package whisper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/murmur/internal/speech"
)

func TestLanguage(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{"pt-BR", "pt"},
		{"en-US", "en"},
		{"tr", "tr"},
		{"", ""},
		{"not a locale!", ""},
	}
	for _, tt := range tests {
		if got := Language(tt.locale); got != tt.want {
			t.Errorf("Language(%q) = %q, want %q", tt.locale, got, tt.want)
		}
	}
}

func TestNew_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := New("")
	require.ErrorIs(t, err, speech.ErrUnsupported)
}

func TestNew_KeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	tr, err := New("", WithModel("whisper-large"))
	require.NoError(t, err)
	require.Equal(t, "whisper-large", tr.Model())
}

func TestTranscribe(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "whisper-1", r.FormValue("model"))
		require.Equal(t, "pt", r.FormValue("language"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " olá mundo "})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "seg.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0600))

	tr, err := New("sk-test", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), path, speech.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "olá mundo", text)
	require.Equal(t, int32(1), calls.Load())
}

func TestTranscribe_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "seg.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0600))

	tr, err := New("sk-test", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), path, speech.DefaultConfig())
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestTranscribe_MissingFile(t *testing.T) {
	tr, err := New("sk-test", WithBaseURL("http://127.0.0.1:0"))
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.wav"), speech.DefaultConfig())
	require.Error(t, err)
}
