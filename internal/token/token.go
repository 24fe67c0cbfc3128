package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoCredentials is returned when the server has no signing key-pair.
// Callers must surface this as a server-side configuration failure.
var ErrNoCredentials = errors.New("signing credentials not set")

// GenerationError wraps a signing or encoding failure. The underlying
// cause is kept as a string so HTTP handlers can attach it as a
// diagnostic detail.
type GenerationError struct {
	Cause string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("token generation failed: %s", e.Cause)
}

// Grant is the set of permissions embedded in a signed token. Identity
// is caller-supplied and not validated against any registry.
type Grant struct {
	Identity     string `json:"-"`
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

// claims is the wire shape of a signed grant. The media grant rides in
// a dedicated "video" claim alongside the registered claims.
type claims struct {
	jwt.RegisteredClaims
	Video Grant `json:"video"`
}

// Issuer signs room-access grants with a server-held key-pair. It is
// stateless and safe for concurrent use.
type Issuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

// NewIssuer creates an Issuer. Both halves of the key-pair must be
// non-empty or ErrNoCredentials is returned; a token must never be
// issued without a valid signing credential pair.
func NewIssuer(apiKey, apiSecret string, ttl time.Duration) (*Issuer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, ErrNoCredentials
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{apiKey: apiKey, apiSecret: apiSecret, ttl: ttl}, nil
}

// Issue signs a room-join grant for the given identity and room and
// returns the compact token string. Tokens are created per request and
// never persisted.
func (i *Issuer) Issue(identity, room string) (string, error) {
	if identity == "" {
		return "", &GenerationError{Cause: "identity must not be empty"}
	}
	if room == "" {
		return "", &GenerationError{Cause: "room must not be empty"}
	}

	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   identity,
			ID:        uuid.NewString(),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Video: Grant{
			Identity:     identity,
			Room:         room,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(i.apiSecret))
	if err != nil {
		return "", &GenerationError{Cause: err.Error()}
	}
	return signed, nil
}

// Verify parses a signed token back into its grant. Only HMAC-signed
// tokens from this issuer's secret are accepted.
func (i *Issuer) Verify(tokenString string) (*Grant, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(i.apiSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}

	grant := c.Video
	grant.Identity = c.Subject
	return &grant, nil
}
