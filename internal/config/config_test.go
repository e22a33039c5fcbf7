package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{DefaultSession: "work", APIBaseURL: "https://ssak3.example.com"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.APIBaseURL != "https://ssak3.example.com" {
		t.Errorf("APIBaseURL = %q, want override kept", loaded.APIBaseURL)
	}
}

func TestLoadMissingYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want defaults for missing file", err)
	}
	if cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Errorf("APIBaseURL = %q, want default", cfg.APIBaseURL)
	}
	if cfg.RoomPollMillis != DefaultRoomPollMillis {
		t.Errorf("RoomPollMillis = %d, want %d", cfg.RoomPollMillis, DefaultRoomPollMillis)
	}
	if cfg.MessagePollMillis != DefaultMessagePollMillis {
		t.Errorf("MessagePollMillis = %d, want %d", cfg.MessagePollMillis, DefaultMessagePollMillis)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SSAK3_API_URL", "https://staging.ssak3.example.com")
	t.Setenv("SSAK3_MESSAGE_POLL_MS", "1500")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIBaseURL != "https://staging.ssak3.example.com" {
		t.Errorf("APIBaseURL = %q, want env override", cfg.APIBaseURL)
	}
	if cfg.MessagePollMillis != 1500 {
		t.Errorf("MessagePollMillis = %d, want 1500", cfg.MessagePollMillis)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
