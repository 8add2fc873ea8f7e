package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc/credentials"
)

// TokenSource yields the bearer credential a service presents to its peers.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a credential provisioned out of band.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", fmt.Errorf("%w: empty service token", ErrUnauthenticated)
	}
	return string(t), nil
}

// SelfIssued mints service tokens with the shared signing key and reuses
// each one until the last fifth of its lifetime.
type SelfIssued struct {
	v       *Verifier
	subject string
	roles   []Role
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	token   string
	refresh time.Time
}

func NewSelfIssued(v *Verifier, subject string, ttl time.Duration, roles ...Role) *SelfIssued {
	return &SelfIssued{v: v, subject: subject, roles: roles, ttl: ttl, now: time.Now}
}

func (s *SelfIssued) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.refresh) {
		return s.token, nil
	}
	tok, err := s.v.Issue(s.subject, s.roles, s.ttl)
	if err != nil {
		return "", fmt.Errorf("issue service token: %w", err)
	}
	s.token = tok
	s.refresh = now.Add(s.ttl - s.ttl/5)
	return tok, nil
}

// SetAuthorization puts the source's current token on an outgoing request.
func SetAuthorization(req *http.Request, src TokenSource) error {
	tok, err := src.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

type perRPC struct {
	src TokenSource
}

// PerRPCCredentials attaches the source's token to every gRPC call. The
// channel itself may be plaintext inside the cluster network.
func PerRPCCredentials(src TokenSource) credentials.PerRPCCredentials {
	return perRPC{src: src}
}

func (c perRPC) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	tok, err := c.src.Token()
	if err != nil {
		return nil, err
	}
	return map[string]string{authorizationMD: "Bearer " + tok}, nil
}

func (perRPC) RequireTransportSecurity() bool { return false }
