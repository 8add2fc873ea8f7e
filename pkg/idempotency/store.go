package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInFlight = errors.New("idempotency: request with this key is in flight")
	ErrMismatch = errors.New("idempotency: key was used with a different request")
)

// entry is the value kept under a key. Fingerprint identifies the request
// that claimed the key so a reuse with another payload can be refused.
type entry struct {
	Fingerprint string `json:"fp"`
	Pending     bool   `json:"pending,omitempty"`
	Response    []byte `json:"response,omitempty"`
}

// Store remembers the outcome of requests keyed by a client supplied
// idempotency key. A key is first claimed with a pending entry and later
// completed with the encoded response.
type Store struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, prefix: "idem"}
}

func (s *Store) Key(scope, subject, key string) string {
	return fmt.Sprintf("%s:%s:%s:%s", s.prefix, scope, subject, key)
}

// Fingerprint hashes the parts that make two requests the same request.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		_, _ = io.WriteString(h, p)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Claim reserves key for the request identified by fingerprint. It returns
// (nil, true, nil) when the caller owns the key and (response, false, nil)
// when the same request already completed. A key still being processed
// yields ErrInFlight; a key claimed by a different request yields ErrMismatch.
func (s *Store) Claim(ctx context.Context, key, fingerprint string) ([]byte, bool, error) {
	pending, err := json.Marshal(entry{Fingerprint: fingerprint, Pending: true})
	if err != nil {
		return nil, false, err
	}

	for range 2 {
		ok, err := s.rdb.SetNX(ctx, key, pending, s.ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("claim %s: %w", key, err)
		}
		if ok {
			return nil, true, nil
		}

		raw, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("read %s: %w", key, err)
		}

		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", key, err)
		}
		switch {
		case e.Fingerprint != fingerprint:
			return nil, false, ErrMismatch
		case e.Pending:
			return nil, false, ErrInFlight
		default:
			return e.Response, false, nil
		}
	}
	return nil, false, ErrInFlight
}

func (s *Store) Complete(ctx context.Context, key, fingerprint string, response []byte) error {
	raw, err := json.Marshal(entry{Fingerprint: fingerprint, Response: response})
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("complete %s: %w", key, err)
	}
	return nil
}

// Release frees a claimed key so the client may retry after a failure.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
