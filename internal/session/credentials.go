package session

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Profile is the cached identity payload from the auth exchange. ID is the
// backend database PK when known; KakaoID is the OAuth provider identifier.
// Historical caches may carry only one of the two.
type Profile struct {
	ID              int64  `toml:"id"`
	KakaoID         int64  `toml:"kakao_id"`
	Nickname        string `toml:"nickname"`
	Email           string `toml:"email"`
	ProfileImageURL string `toml:"profile_image_url"`
}

// Credentials is the locally persisted session: bearer tokens plus profile.
// A session is either fully absent or has a token and at least one
// resolvable identifier.
type Credentials struct {
	AccessToken  string  `toml:"access_token"`
	RefreshToken string  `toml:"refresh_token"`
	Profile      Profile `toml:"profile"`
}

// Complete reports whether the credentials satisfy the session invariant.
func (c *Credentials) Complete() bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return c.Profile.ID != 0 || c.Profile.KakaoID != 0
}

// CredStore persists Credentials to the session's creds.toml. It is the
// single source of truth for "logged in or not"; every component reads
// through it, only the auth flow and the expiry handler write.
type CredStore struct {
	mu   sync.RWMutex
	path string
}

// NewCredStore creates a store backed by the given file path.
func NewCredStore(path string) *CredStore {
	return &CredStore{path: path}
}

// Load reads the cached credentials. A missing file yields (nil, nil);
// a malformed file yields an error so the caller can fail closed.
func (s *CredStore) Load() (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var creds Credentials
	if _, err := toml.DecodeFile(s.path, &creds); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &creds, nil
}

// Save writes the credentials with 0600 permissions.
func (s *CredStore) Save(creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(creds)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Clear removes the cached credentials. Missing file is not an error.
func (s *CredStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Token returns the current access token, or empty when logged out.
func (s *CredStore) Token() string {
	creds, err := s.Load()
	if err != nil || creds == nil {
		return ""
	}
	return creds.AccessToken
}
