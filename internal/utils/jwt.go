package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 digests for single-use tokens
	"encoding/hex"  // hex encoding of random bytes and digests
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrInvalidSession is returned by ParseSessionToken for any token that is
// malformed, expired, or signed with another key or algorithm.
var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims is the payload of a session token: the user id and role,
// plus the registered expiry and issue time.
type SessionClaims struct {
	UserID uint64 `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SessionToken is a signed JWT along with its expiry.
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT embedding {id, role}.
func NewSessionToken(secret string, userID uint64, role string, ttl time.Duration) (SessionToken, error) {
	if secret == "" {
		return SessionToken{}, fmt.Errorf("jwt secret is required")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := SessionClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, fmt.Errorf("signing jwt: %w", err)
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies signature and expiry and returns the claims.
func ParseSessionToken(secret, raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Only HMAC; anything else is rejected before the key is handed out.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, ErrInvalidSession
	}
	if claims.UserID == 0 || claims.Role == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// JWTVerifier adapts ParseSessionToken to the middleware's verifier
// interface.
type JWTVerifier struct{ Secret string }

// Verify returns the user id and role carried by raw.
func (v JWTVerifier) Verify(raw string) (uint64, string, error) {
	c, err := ParseSessionToken(v.Secret, raw)
	if err != nil {
		return 0, "", err
	}
	return c.UserID, c.Role, nil
}

// NewOpaqueToken returns a 64-character hex token from 32 random bytes,
// used for email verification and password reset links.
func NewOpaqueToken() (string, error) {
	return randomHex(32)
}

// HashToken returns the SHA-256 hex digest of a raw opaque token.  Only the
// digest is stored so a leaked table cannot be replayed as links.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
