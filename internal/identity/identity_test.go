package identity

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/session"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		id   int64
		want Ref
	}{
		{"zero", 0, Ref{}},
		{"negative", -5, Ref{}},
		{"small pk", 42, Ref{LocalID: 42}},
		{"boundary below", 999_999, Ref{LocalID: 999_999}},
		{"boundary at", 1_000_000, Ref{ForeignID: 1_000_000}},
		{"kakao sized", 3_141_592_653, Ref{ForeignID: 3_141_592_653}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.id); got != tc.want {
				t.Errorf("Classify(%d) = %+v, want %+v", tc.id, got, tc.want)
			}
		})
	}
}

func TestRefMatches(t *testing.T) {
	cases := []struct {
		name string
		a, b Ref
		want bool
	}{
		{"local vs local", Ref{LocalID: 7}, Ref{LocalID: 7}, true},
		{"foreign vs foreign", Ref{ForeignID: 9_999_999_999}, Ref{ForeignID: 9_999_999_999}, true},
		{"mislabeled foreign", Ref{ForeignID: 9_999_999_999}, Ref{LocalID: 9_999_999_999}, true},
		{"either slot on one side", Ref{LocalID: 7, ForeignID: 9_999_999_999}, Ref{ForeignID: 9_999_999_999}, true},
		{"disjoint", Ref{LocalID: 7}, Ref{LocalID: 8}, false},
		{"empty never matches", Ref{}, Ref{}, false},
		{"empty vs populated", Ref{}, Ref{LocalID: 7}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Matches(tc.b); got != tc.want {
				t.Errorf("%+v.Matches(%+v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			// symmetric
			if got := tc.b.Matches(tc.a); got != tc.want {
				t.Errorf("%+v.Matches(%+v) = %v, want %v", tc.b, tc.a, got, tc.want)
			}
		})
	}
}

func newResolver(t *testing.T) (*Resolver, *session.CredStore) {
	t.Helper()
	store := session.NewCredStore(filepath.Join(t.TempDir(), "creds.toml"))
	return NewResolver(store, zap.NewNop()), store
}

func TestResolveLoggedOut(t *testing.T) {
	r, _ := newResolver(t)
	id, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != nil {
		t.Errorf("Resolve = %+v, want nil", id)
	}
}

func TestResolveFromProfilePK(t *testing.T) {
	r, store := newResolver(t)
	must(t, store.Save(&session.Credentials{
		AccessToken: "opaque",
		Profile:     session.Profile{ID: 42, KakaoID: 3_141_592_653, Nickname: "dana"},
	}))

	id, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id == nil {
		t.Fatal("Resolve returned nil")
	}
	if id.LocalID != 42 || id.ForeignID != 3_141_592_653 || id.Nickname != "dana" {
		t.Errorf("identity = %+v", id)
	}
}

func TestResolveMislabeledProfileID(t *testing.T) {
	// some caches stored the kakao id in the profile's id field
	r, store := newResolver(t)
	must(t, store.Save(&session.Credentials{
		AccessToken: "opaque",
		Profile:     session.Profile{ID: 3_141_592_653},
	}))

	id, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id == nil {
		t.Fatal("Resolve returned nil")
	}
	if id.LocalID != 0 || id.ForeignID != 3_141_592_653 {
		t.Errorf("identity = %+v, want foreign only", id)
	}
}

func TestResolveRecoversLocalIDFromToken(t *testing.T) {
	r, store := newResolver(t)
	must(t, store.Save(&session.Credentials{
		AccessToken: unsignedJWT(t, map[string]any{"userId": float64(42)}),
		Profile:     session.Profile{KakaoID: 3_141_592_653},
	}))

	id, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id == nil {
		t.Fatal("Resolve returned nil")
	}
	if id.LocalID != 42 {
		t.Errorf("LocalID = %d, want 42 from token claims", id.LocalID)
	}
	if id.ForeignID != 3_141_592_653 {
		t.Errorf("ForeignID = %d", id.ForeignID)
	}
}

func TestResolveMalformedCacheClears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creds.toml")
	must(t, os.WriteFile(path, []byte("access_token = [nope"), 0600))

	store := session.NewCredStore(path)
	r := NewResolver(store, zap.NewNop())

	id, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != nil {
		t.Errorf("Resolve = %+v, want nil", id)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt cache should have been removed")
	}
}

func TestLocalIDFromTokenVariants(t *testing.T) {
	cases := []struct {
		name   string
		claims map[string]any
		want   int64
	}{
		{"userId number", map[string]any{"userId": float64(7)}, 7},
		{"sub string", map[string]any{"sub": "7"}, 7},
		{"uid preferred over sub", map[string]any{"uid": float64(7), "sub": "8"}, 7},
		{"kakao sized claim ignored", map[string]any{"sub": "9999999999"}, 0},
		{"no usable claim", map[string]any{"role": "user"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := localIDFromToken(unsignedJWT(t, tc.claims)); got != tc.want {
				t.Errorf("localIDFromToken = %d, want %d", got, tc.want)
			}
		})
	}

	if got := localIDFromToken("not-a-jwt"); got != 0 {
		t.Errorf("opaque token = %d, want 0", got)
	}
}

func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return base64.RawURLEncoding.EncodeToString(b)
	}
	header := map[string]string{"alg": "none", "typ": "JWT"}
	return enc(header) + "." + enc(claims) + "."
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
