package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds the complete application configuration
type Config struct {
	General   GeneralConfig   `toml:"general"`
	Audio     AudioConfig     `toml:"audio"`
	STT       STTConfig       `toml:"stt"`
	Extractor ExtractorConfig `toml:"extractor"`
	Answer    AnswerConfig    `toml:"answer"`
	Session   SessionConfig   `toml:"session"`
	Archive   ArchiveConfig   `toml:"archive"`
	Push      PushConfig      `toml:"push"`
	Server    ServerConfig    `toml:"server"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name      string `toml:"name"`
	DataDir   string `toml:"data_dir"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

// AudioConfig holds capture settings
type AudioConfig struct {
	Loopback    bool     `toml:"loopback"`
	Microphone  bool     `toml:"microphone"`
	InputDevice string   `toml:"input_device"`
	Buffer      Duration `toml:"buffer"`
	VADMode     int      `toml:"vad_mode"`
	RecordWAV   bool     `toml:"record_wav"`
}

// STTConfig holds streaming speech-to-text settings
type STTConfig struct {
	URL           string   `toml:"url"`
	APIKey        string   `toml:"api_key"`
	Model         string   `toml:"model"`
	Language      string   `toml:"language"`
	Languages     []string `toml:"languages"`
	EndpointingMs int      `toml:"endpointing_ms"`
	Interim       bool     `toml:"interim"`
	KeepAlive     Duration `toml:"keep_alive"`
	Debounce      Duration `toml:"debounce"`
}

// ExtractorConfig holds question extraction settings
type ExtractorConfig struct {
	Mode           string   `toml:"mode"`
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	Model          string   `toml:"model"`
	Temperature    float32  `toml:"temperature"`
	Timeout        Duration `toml:"timeout"`
	Keywords       []string `toml:"keywords"`
	AutoInterval   Duration `toml:"auto_interval"`
	MinChars       int      `toml:"min_chars"`
	WindowChars    int      `toml:"window_chars"`
	DedupThreshold float64  `toml:"dedup_threshold"`
	DedupWindow    int      `toml:"dedup_window"`
}

// AnswerConfig holds answer request settings
type AnswerConfig struct {
	HistoryPairs int      `toml:"history_pairs"`
	ProjectMode  bool     `toml:"project_mode"`
	Timeout      Duration `toml:"timeout"`
}

// SessionConfig holds the setup context location
type SessionConfig struct {
	Root string `toml:"root"`
	Name string `toml:"name"`
}

// ArchiveConfig holds the QnA archive settings
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// PushConfig holds the transcript push backend settings
type PushConfig struct {
	Enabled   bool     `toml:"enabled"`
	URL       string   `toml:"url"`
	APIKey    string   `toml:"api_key"`
	SessionID string   `toml:"session_id"`
	Timeout   Duration `toml:"timeout"`
}

// ServerConfig holds the local event feed settings
type ServerConfig struct {
	Host         string   `toml:"host"`
	Port         int      `toml:"port"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// Duration wraps time.Duration for TOML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a configuration with all defaults applied and secrets
// taken from the environment
func Default() *Config {
	cfg := &Config{}
	cfg.Audio.Loopback = true
	cfg.STT.Interim = true
	cfg.Archive.Enabled = true
	cfg.Extractor.Temperature = 0.2
	cfg.applyDefaults()
	cfg.expandEnvVars()
	cfg.applySecrets()
	return cfg
}

// Load loads configuration from a TOML file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	cfg := Config{}
	cfg.Audio.Loopback = true
	cfg.STT.Interim = true
	cfg.Archive.Enabled = true
	cfg.Extractor.Temperature = 0.2
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()
	cfg.applySecrets()

	return &cfg, nil
}

// LoadFromEnv loads .env files and then the configuration named by the
// OVERLAY_CONFIG environment variable. Without a config file the defaults
// are returned.
func LoadFromEnv() (*Config, error) {
	LoadDotEnv()

	path := os.Getenv("OVERLAY_CONFIG")
	if path != "" {
		return Load(path)
	}

	for _, p := range defaultPaths() {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return Default(), nil
}

// LoadDotEnv reads .env from the working directory and the user config
// directory. Variables already set in the environment win.
func LoadDotEnv() {
	candidates := []string{".env"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "overlay", ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func defaultPaths() []string {
	paths := []string{
		"./configs/overlay.toml",
		"./overlay.toml",
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "overlay", "config.toml"))
	}
	return paths
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// General
	if c.General.Name == "" {
		c.General.Name = "overlay"
	}
	if c.General.DataDir == "" {
		c.General.DataDir = defaultDataDir()
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.LogFormat == "" {
		c.General.LogFormat = "text"
	}

	// Audio
	if c.Audio.Buffer.Duration == 0 {
		c.Audio.Buffer.Duration = 5 * time.Second
	}
	if c.Audio.VADMode < 0 || c.Audio.VADMode > 3 {
		c.Audio.VADMode = 2
	}

	// STT
	if c.STT.URL == "" {
		c.STT.URL = "wss://api.deepgram.com/v1/listen"
	}
	if c.STT.Model == "" {
		c.STT.Model = "nova-2"
	}
	if c.STT.Language == "" {
		c.STT.Language = "en-US"
	}
	if len(c.STT.Languages) == 0 {
		c.STT.Languages = []string{"en-US", "es-ES"}
	}
	if c.STT.EndpointingMs == 0 {
		c.STT.EndpointingMs = 300
	}
	if c.STT.KeepAlive.Duration == 0 {
		c.STT.KeepAlive.Duration = 5 * time.Second
	}
	if c.STT.Debounce.Duration == 0 {
		c.STT.Debounce.Duration = 1500 * time.Millisecond
	}

	// Extractor
	if c.Extractor.Mode == "" {
		c.Extractor.Mode = "auto"
	}
	if c.Extractor.Model == "" {
		c.Extractor.Model = "gpt-4o-mini"
	}
	if c.Extractor.Timeout.Duration == 0 {
		c.Extractor.Timeout.Duration = 15 * time.Second
	}
	if c.Extractor.AutoInterval.Duration == 0 {
		c.Extractor.AutoInterval.Duration = 3 * time.Second
	}
	if c.Extractor.MinChars == 0 {
		c.Extractor.MinChars = 20
	}
	if c.Extractor.WindowChars == 0 {
		c.Extractor.WindowChars = 600
	}
	if c.Extractor.DedupThreshold == 0 {
		c.Extractor.DedupThreshold = 0.8
	}
	if c.Extractor.DedupWindow == 0 {
		c.Extractor.DedupWindow = 20
	}

	// Answer
	if c.Answer.HistoryPairs == 0 {
		c.Answer.HistoryPairs = 10
	}
	if c.Answer.Timeout.Duration == 0 {
		c.Answer.Timeout.Duration = 30 * time.Second
	}

	// Session
	if c.Session.Root == "" {
		c.Session.Root = c.General.DataDir
	}
	if c.Session.Name == "" {
		c.Session.Name = "default"
	}

	// Archive
	if c.Archive.Path == "" {
		c.Archive.Path = filepath.Join(c.General.DataDir, "qna.db")
	}

	// Push
	if c.Push.SessionID == "" {
		c.Push.SessionID = "local-dev-session"
	}
	if c.Push.Timeout.Duration == 0 {
		c.Push.Timeout.Duration = 10 * time.Second
	}

	// Server
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8765
	}
	if c.Server.ReadTimeout.Duration == 0 {
		c.Server.ReadTimeout.Duration = 15 * time.Second
	}
	if c.Server.WriteTimeout.Duration == 0 {
		c.Server.WriteTimeout.Duration = 30 * time.Second
	}
}

// expandEnvVars expands environment variables in configuration values
func (c *Config) expandEnvVars() {
	c.General.DataDir = os.ExpandEnv(c.General.DataDir)
	c.General.LogFile = os.ExpandEnv(c.General.LogFile)
	c.STT.APIKey = os.ExpandEnv(c.STT.APIKey)
	c.Extractor.APIKey = os.ExpandEnv(c.Extractor.APIKey)
	c.Push.APIKey = os.ExpandEnv(c.Push.APIKey)
	c.Push.URL = os.ExpandEnv(c.Push.URL)
	c.Session.Root = os.ExpandEnv(c.Session.Root)
	c.Archive.Path = os.ExpandEnv(c.Archive.Path)
}

// applySecrets fills unset API keys from well-known environment variables
func (c *Config) applySecrets() {
	if c.Extractor.APIKey == "" {
		c.Extractor.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.STT.APIKey == "" {
		c.STT.APIKey = firstEnv("STT_API_KEY", "AZURE_SPEECH_KEY")
	}
	if c.Push.APIKey == "" {
		c.Push.APIKey = os.Getenv("PUSH_API_KEY")
	}
	if c.Push.URL == "" {
		c.Push.URL = os.Getenv("PUSH_URL")
	}
}

// ServerAddress returns the listen address of the event feed
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RemoteExtraction reports whether the remote classifier should be used
func (c *Config) RemoteExtraction() bool {
	switch c.Extractor.Mode {
	case "remote":
		return true
	case "heuristic":
		return false
	default:
		return c.Extractor.APIKey != ""
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "overlay")
	}
	return "./data"
}
