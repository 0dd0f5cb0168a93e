package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config holds application configuration.
type Config struct {
	// NoteMaxChars is the maximum character count for note content. 0 uses the default.
	NoteMaxChars int `json:"note_max_chars"`

	// StorageKey is the key the whole note collection is persisted under.
	StorageKey string `json:"storage_key,omitempty"`

	// StorageBackend selects the durable key-value store: "sqlite" (default) or "file".
	StorageBackend string `json:"storage_backend,omitempty"`

	// Locale is the BCP 47 tag used for dictation and for case-insensitive search.
	Locale string `json:"locale,omitempty"`

	// SpeechContinuous keeps the recognizer listening across pauses.
	SpeechContinuous *bool `json:"speech_continuous,omitempty"`

	// SpeechInterimResults enables partial transcripts while the user is still speaking.
	SpeechInterimResults *bool `json:"speech_interim_results,omitempty"`

	// SpoolDir is the directory an external recorder drops audio segments into.
	// Relative paths are resolved against the base directory.
	SpoolDir string `json:"spool_dir,omitempty"`

	// WhisperModel is the transcription model used for spooled audio.
	WhisperModel string `json:"whisper_model,omitempty"`

	// OpenAIBaseURL overrides the transcription API endpoint (OpenAI-compatible servers).
	OpenAIBaseURL string `json:"openai_base_url,omitempty"`

	// OpenAIAPIKey is the transcription API key. OPENAI_API_KEY is used when empty.
	OpenAIAPIKey string `json:"openai_api_key,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// AllowedPaths is an allowlist of directories for export/import by path.
	// Paths outside ~/.murmur/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export/import.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		NoteMaxChars:         10000,
		StorageKey:           "notes",
		StorageBackend:       BackendSQLite,
		Locale:               "pt-BR",
		SpeechContinuous:     boolPtr(true),
		SpeechInterimResults: boolPtr(true),
		SpoolDir:             "spool",
		WhisperModel:         "whisper-1",
		LogLevel:             "info",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.murmur.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.murmur) and repo (.murmur) directories.
// Repo config is found by walking upward from startDir to find the nearest .murmur/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// openai_api_key and openai_base_url are ignored in repo config.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}
	stripCredentials(repo)

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// stripCredentials clears keys a repo config may not set. The API key and
// the endpoint it is sent to come only from the global config.
func stripCredentials(c *Config) {
	c.OpenAIAPIKey = ""
	c.OpenAIBaseURL = ""
}

// FindRepoConfig walks upward from startDir to find the nearest .murmur/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".murmur", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.NoteMaxChars = firstInt(overlay.NoteMaxChars, base.NoteMaxChars)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.StorageKey = firstString(overlay.StorageKey, base.StorageKey)
	result.StorageBackend = firstString(overlay.StorageBackend, base.StorageBackend)
	result.Locale = firstString(overlay.Locale, base.Locale)
	result.SpoolDir = firstString(overlay.SpoolDir, base.SpoolDir)
	result.WhisperModel = firstString(overlay.WhisperModel, base.WhisperModel)
	result.OpenAIBaseURL = firstString(overlay.OpenAIBaseURL, base.OpenAIBaseURL)
	result.OpenAIAPIKey = firstString(overlay.OpenAIAPIKey, base.OpenAIAPIKey)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)

	// Tri-state booleans: overlay wins if set, else base
	result.SpeechContinuous = base.SpeechContinuous
	if overlay.SpeechContinuous != nil {
		result.SpeechContinuous = overlay.SpeechContinuous
	}
	result.SpeechInterimResults = base.SpeechInterimResults
	if overlay.SpeechInterimResults != nil {
		result.SpeechInterimResults = overlay.SpeechInterimResults
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// Continuous reports whether dictation keeps listening across pauses.
func (c *Config) Continuous() bool {
	return c.SpeechContinuous == nil || *c.SpeechContinuous
}

// InterimResults reports whether partial transcripts are requested.
func (c *Config) InterimResults() bool {
	return c.SpeechInterimResults == nil || *c.SpeechInterimResults
}

// ResolveSpoolDir returns the spool directory as an absolute path under baseDir.
func (c *Config) ResolveSpoolDir(baseDir string) string {
	dir := c.SpoolDir
	if dir == "" {
		dir = "spool"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(baseDir, dir)
}

func firstInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func firstString(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func boolPtr(b bool) *bool { return &b }

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
