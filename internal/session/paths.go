package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.ssak3.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ssak3")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the UDS socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// CredsPath returns the cached credential file path.
func CredsPath(name string) string {
	return filepath.Join(Dir(name), "creds.toml")
}

// DBPath returns the app-owned ssak3.db path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "ssak3.db")
}

// MediaDir returns the staging directory for outgoing media attachments.
func MediaDir(name string) string {
	return filepath.Join(Dir(name), "media")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "ssakd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
		MediaDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
