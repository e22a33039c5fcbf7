package identity

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/session"
)

// Kakao user IDs are large (10+ digits); backend PKs are small sequential
// integers. Anything below this threshold is treated as a PK.
const foreignIDFloor = 1_000_000

// Ref identifies a user by whichever of the two ID spaces is known.
// LocalID is the backend database PK, ForeignID the Kakao account ID.
// Either may be zero when unknown, never both.
type Ref struct {
	LocalID   int64
	ForeignID int64
}

// Classify buckets a bare numeric ID into the local or foreign space.
func Classify(id int64) Ref {
	if id <= 0 {
		return Ref{}
	}
	if id < foreignIDFloor {
		return Ref{LocalID: id}
	}
	return Ref{ForeignID: id}
}

// Matches reports whether two refs could denote the same user. Both sides
// are compared across the full cross product: a ref carrying only a
// foreign ID matches one carrying the same value in either slot, since
// upstream payloads do not always label which space an ID came from.
func (r Ref) Matches(o Ref) bool {
	ids := func(x Ref) []int64 {
		var out []int64
		if x.LocalID != 0 {
			out = append(out, x.LocalID)
		}
		if x.ForeignID != 0 {
			out = append(out, x.ForeignID)
		}
		return out
	}
	for _, a := range ids(r) {
		for _, b := range ids(o) {
			if a == b {
				return true
			}
		}
	}
	return false
}

// Zero reports whether the ref carries no identifier at all.
func (r Ref) Zero() bool {
	return r.LocalID == 0 && r.ForeignID == 0
}

// Identity is the resolved local user.
type Identity struct {
	Ref
	Nickname string
}

// Resolver derives the current user's identity from the cached session.
// It never performs network I/O; the auth flow is responsible for
// populating the credential cache.
type Resolver struct {
	creds *session.CredStore
	log   *zap.Logger
}

func NewResolver(creds *session.CredStore, log *zap.Logger) *Resolver {
	return &Resolver{creds: creds, log: log.Named("identity")}
}

// Resolve returns the current identity, or nil when logged out. A cached
// profile ID below the foreign floor is taken as the backend PK; above it
// the value is assumed to be the Kakao ID and the PK is recovered from the
// access token claims when present. A corrupt credential file is cleared
// so the next boot lands in the auth-required state instead of looping.
func (r *Resolver) Resolve() (*Identity, error) {
	creds, err := r.creds.Load()
	if err != nil {
		r.log.Warn("credential cache unreadable, clearing", zap.Error(err))
		if clearErr := r.creds.Clear(); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}
	if creds == nil || creds.AccessToken == "" {
		return nil, nil
	}

	id := Identity{Nickname: creds.Profile.Nickname}
	if creds.Profile.KakaoID != 0 {
		id.ForeignID = creds.Profile.KakaoID
	}
	if pk := creds.Profile.ID; pk != 0 {
		ref := Classify(pk)
		if ref.LocalID != 0 {
			id.LocalID = ref.LocalID
		} else if id.ForeignID == 0 {
			id.ForeignID = ref.ForeignID
		}
	}

	if id.LocalID == 0 {
		if pk := localIDFromToken(creds.AccessToken); pk != 0 {
			id.LocalID = pk
		}
	}

	if id.Zero() {
		return nil, nil
	}
	return &id, nil
}

// localIDFromToken inspects the JWT claims without verifying the
// signature; the token is only trusted to the extent the server already
// accepted it. Returns 0 when no usable claim is present.
func localIDFromToken(token string) int64 {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return 0
	}
	for _, key := range []string{"userId", "uid", "sub"} {
		v, ok := claims[key]
		if !ok {
			continue
		}
		var id int64
		switch n := v.(type) {
		case float64:
			id = int64(n)
		case string:
			parsed, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				continue
			}
			id = parsed
		default:
			continue
		}
		if ref := Classify(id); ref.LocalID != 0 {
			return ref.LocalID
		}
	}
	return 0
}
