package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Default backend and polling cadence. The intervals mirror what the web
// client shipped with: rooms every 5s, messages every 3s.
const (
	DefaultAPIBaseURL        = "http://localhost:8080"
	DefaultRoomPollMillis    = 5000
	DefaultMessagePollMillis = 3000
	DefaultPollJitterMillis  = 250
)

// Config represents the global ~/.ssak3/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	APIBaseURL string `toml:"api_base_url"`

	KakaoClientID    string `toml:"kakao_client_id"`
	KakaoRedirectURI string `toml:"kakao_redirect_uri"`

	RoomPollMillis    int `toml:"room_poll_ms"`
	MessagePollMillis int `toml:"message_poll_ms"`
	PollJitterMillis  int `toml:"poll_jitter_ms"`
}

// Load reads config from the given path, fills defaults, and applies
// environment overrides. Returns an error only when the file exists but
// cannot be parsed; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.RoomPollMillis <= 0 {
		c.RoomPollMillis = DefaultRoomPollMillis
	}
	if c.MessagePollMillis <= 0 {
		c.MessagePollMillis = DefaultMessagePollMillis
	}
	if c.PollJitterMillis < 0 {
		c.PollJitterMillis = DefaultPollJitterMillis
	}
}

// applyEnv lets a .env or exported variables override the file, matching the
// precedence the web client used for its REACT_APP_API_URL.
func (c *Config) applyEnv() {
	if v := os.Getenv("SSAK3_API_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("SSAK3_KAKAO_CLIENT_ID"); v != "" {
		c.KakaoClientID = v
	}
	if v := os.Getenv("SSAK3_KAKAO_REDIRECT_URI"); v != "" {
		c.KakaoRedirectURI = v
	}
	if v := os.Getenv("SSAK3_ROOM_POLL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RoomPollMillis = n
		}
	}
	if v := os.Getenv("SSAK3_MESSAGE_POLL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MessagePollMillis = n
		}
	}
}
