package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the session cookie.
const CookieName = "storefront_session"

const issuer = "storefront"

// Codec signs and verifies session cookies. The cookie value is an HS256 JWT
// whose subject is the session id.
type Codec struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewCodec builds a codec. ttl bounds both the token and the cookie.
func NewCodec(secret string, ttl time.Duration, secure bool) *Codec {
	return &Codec{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

// TTL is the session lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Encode returns the signed cookie value for id.
func (c *Codec) Encode(id string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   id,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies value and returns the session id.
func (c *Codec) Decode(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(c.now))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid session token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("invalid session id: %w", err)
	}
	return claims.Subject, nil
}

// Cookie builds the cookie carrying id.
func (c *Codec) Cookie(id string) (*http.Cookie, error) {
	value, err := c.Encode(id)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// FromRequest returns the session id carried by r, if the cookie verifies.
func (c *Codec) FromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	id, err := c.Decode(cookie.Value)
	if err != nil {
		return "", false
	}
	return id, true
}
