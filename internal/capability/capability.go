// Package capability issues and verifies short-lived signed download
// tokens bound to (user, file key), per spec §6's Capability tokens: a
// tool argument that names a file is rewritten to a signed URL a client
// can fetch without further authorization, and verification fails closed.
package capability

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any verification failure — expired,
// malformed, wrong signature, or a (user, key) mismatch. Deliberately
// undifferentiated: a capability token either works or it doesn't, and
// distinguishing failure reasons to the caller would leak information
// about why a stale or tampered token was rejected.
var ErrInvalidToken = errors.New("capability: invalid or expired token")

// DefaultTTL is how long a signed download URL remains valid.
const DefaultTTL = 10 * time.Minute

type claims struct {
	jwt.RegisteredClaims
	UserEmail string `json:"user_email"`
	FileKey   string `json:"file_key"`
}

// Issuer mints and verifies capability tokens with a single HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer signing with secret. A zero ttl defaults to
// DefaultTTL.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, ttl: ttl}
}

// Issue mints a token bound to (userEmail, fileKey), valid for the
// issuer's configured TTL.
func (i *Issuer) Issue(userEmail, fileKey string) (string, error) {
	now := time.Now().UTC()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		UserEmail: userEmail,
		FileKey:   fileKey,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
}

// Verify checks tokenString was issued by this Issuer for (userEmail,
// fileKey) and has not expired. Any failure — expiry, bad signature,
// malformed token, or a mismatched user/key — returns ErrInvalidToken;
// verification fails closed.
func (i *Issuer) Verify(tokenString, userEmail, fileKey string) error {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	c, ok := token.Claims.(*claims)
	if !ok {
		return ErrInvalidToken
	}
	if c.UserEmail != userEmail || c.FileKey != fileKey {
		return ErrInvalidToken
	}
	return nil
}
