package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCredStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.toml")
	store := NewCredStore(path)

	creds := &Credentials{
		AccessToken:  "tok-abc",
		RefreshToken: "ref-xyz",
		Profile: Profile{
			ID:       42,
			KakaoID:  3141592653,
			Nickname: "dana",
		},
	}
	if err := store.Save(creds); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil after Save")
	}
	if got.AccessToken != creds.AccessToken || got.Profile.ID != 42 || got.Profile.KakaoID != 3141592653 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.Complete() {
		t.Error("saved credentials should be complete")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("creds file mode = %o, want 0600", perm)
	}
}

func TestCredStoreLoadMissing(t *testing.T) {
	store := NewCredStore(filepath.Join(t.TempDir(), "creds.toml"))
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if got != nil {
		t.Errorf("Load missing = %+v, want nil", got)
	}
	if store.Token() != "" {
		t.Error("Token should be empty with no file")
	}
}

func TestCredStoreLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.toml")
	if err := os.WriteFile(path, []byte("access_token = [broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCredStore(path).Load(); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestCredStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.toml")
	store := NewCredStore(path)
	if err := store.Save(&Credentials{AccessToken: "t", Profile: Profile{ID: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := store.Load(); got != nil {
		t.Error("credentials survived Clear")
	}
	// clearing twice is fine
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestCredentialsComplete(t *testing.T) {
	cases := []struct {
		name  string
		creds *Credentials
		want  bool
	}{
		{"nil", nil, false},
		{"empty", &Credentials{}, false},
		{"token only", &Credentials{AccessToken: "t"}, false},
		{"profile only", &Credentials{Profile: Profile{ID: 1}}, false},
		{"token and db id", &Credentials{AccessToken: "t", Profile: Profile{ID: 1}}, true},
		{"token and kakao id", &Credentials{AccessToken: "t", Profile: Profile{KakaoID: 9999999999}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.creds.Complete(); got != tc.want {
				t.Errorf("Complete() = %v, want %v", got, tc.want)
			}
		})
	}
}
