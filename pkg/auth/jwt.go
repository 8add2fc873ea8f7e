package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claims follows the Keycloak access token layout: the username lives in
// preferred_username and realm roles under realm_access.roles.
type claims struct {
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Roles             []string `json:"roles,omitempty"`
	RealmAccess       struct {
		Roles []string `json:"roles,omitempty"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

type Verifier struct {
	key    []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{key: []byte(secret), issuer: issuer}
}

func (v *Verifier) Verify(raw string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	id := c.PreferredUsername
	if id == "" {
		id = c.Subject
	}
	if id == "" {
		return Principal{}, fmt.Errorf("%w: token carries no subject", ErrUnauthenticated)
	}

	return Principal{
		ID:    id,
		Roles: ParseRoles(append(c.RealmAccess.Roles, c.Roles...)...),
	}, nil
}

// Issue mints a token the Verifier accepts. End-user tokens come from the
// identity provider; services use Issue for their own credential.
func (v *Verifier) Issue(subject string, roles []Role, ttl time.Duration) (string, error) {
	c := claims{PreferredUsername: subject}
	for _, r := range roles {
		c.RealmAccess.Roles = append(c.RealmAccess.Roles, string(r))
	}
	now := time.Now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.key)
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
