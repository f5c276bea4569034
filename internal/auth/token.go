package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/i-gras/apiserver/types"
)

// DefaultSessionTTL is the session token lifetime.
const DefaultSessionTTL = 7 * 24 * time.Hour

const tokenSeparator = "."

// Claims is the identity payload embedded in a session token.
type Claims struct {
	// Subject is the user id the token was issued for.
	Subject int `json:"sub"`

	// Name and Email are the user's identity at issuance time.
	// Callers re-fetch the user record so current values win.
	Name  string `json:"name"`
	Email string `json:"email"`

	// ExpiresAt is the expiry as epoch seconds.
	ExpiresAt int64 `json:"exp"`
}

// Codec issues and verifies stateless signed session tokens.
//
// A token is <base64url claims JSON>.<base64url HMAC-SHA256 signature>,
// signed with the server secret. Verification is stateless: there is no
// session table and no revocation list, so a leaked token stays valid
// until it expires.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec constructs a Codec. A non-positive ttl falls back to
// DefaultSessionTTL.
func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue builds a signed session token for the user and returns it with
// its expiry as epoch seconds.
func (c *Codec) Issue(user types.PublicUser) (string, int64) {
	claims := Claims{
		Subject:   user.ID,
		Name:      user.Name,
		Email:     user.Email,
		ExpiresAt: c.now().Add(c.ttl).Unix(),
	}
	// Claims is a flat struct of encodable fields; Marshal cannot fail.
	payload, _ := json.Marshal(claims)
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + tokenSeparator + c.sign(encoded), claims.ExpiresAt
}

// Verify checks the token's signature, shape, and expiry and returns
// the embedded claims. Every malformed, tampered, or expired token
// yields ok == false; no partial trust.
func (c *Codec) Verify(token string) (Claims, bool) {
	encoded, signature, found := strings.Cut(token, tokenSeparator)
	if !found || encoded == "" || signature == "" {
		return Claims{}, false
	}

	expected := c.sign(encoded)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return Claims{}, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, false
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, false
	}
	if claims.Subject < 1 || claims.Name == "" || claims.Email == "" || claims.ExpiresAt == 0 {
		return Claims{}, false
	}
	if claims.ExpiresAt <= c.now().Unix() {
		return Claims{}, false
	}
	return claims, true
}

func (c *Codec) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
