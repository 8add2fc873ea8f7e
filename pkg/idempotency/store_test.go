package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, time.Minute), mr
}

func TestStore_ClaimCompleteReplay(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	fp := Fingerprint("p1", "2")
	key := s.Key("orders", "user1", "abc")

	if key != "idem:orders:user1:abc" {
		t.Errorf("unexpected key %q", key)
	}

	resp, claimed, err := s.Claim(ctx, key, fp)
	if err != nil || !claimed || resp != nil {
		t.Fatalf("first claim: resp=%q claimed=%v err=%v", resp, claimed, err)
	}

	if _, _, err := s.Claim(ctx, key, fp); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}

	if err := s.Complete(ctx, key, fp, []byte(`{"id":"o-1"}`)); err != nil {
		t.Fatalf("complete: %v", err)
	}

	resp, claimed, err = s.Claim(ctx, key, fp)
	if err != nil || claimed {
		t.Fatalf("replay: claimed=%v err=%v", claimed, err)
	}
	if string(resp) != `{"id":"o-1"}` {
		t.Errorf("unexpected stored response %q", resp)
	}
}

func TestStore_ReleaseAllowsRetry(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	fp := Fingerprint("p1", "2")
	key := s.Key("orders", "user1", "retry")

	if _, claimed, _ := s.Claim(ctx, key, fp); !claimed {
		t.Fatal("expected first claim to succeed")
	}
	if err := s.Release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, claimed, err := s.Claim(ctx, key, fp); err != nil || !claimed {
		t.Fatalf("expected claim after release, claimed=%v err=%v", claimed, err)
	}
}

func TestStore_KeysExpire(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	fp := Fingerprint("p1", "2")
	key := s.Key("orders", "user1", "ttl")

	if _, claimed, _ := s.Claim(ctx, key, fp); !claimed {
		t.Fatal("expected claim")
	}
	mr.FastForward(2 * time.Minute)
	if _, claimed, err := s.Claim(ctx, key, fp); err != nil || !claimed {
		t.Fatalf("expected expired key to be claimable, claimed=%v err=%v", claimed, err)
	}
}

func TestStore_RedisDown(t *testing.T) {
	s, mr := newStore(t)
	mr.Close()
	if _, _, err := s.Claim(context.Background(), "idem:x", "fp"); err == nil {
		t.Fatal("expected error with redis unavailable")
	}
}

func TestStore_RejectsReuseWithDifferentRequest(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	key := s.Key("orders", "user1", "reuse")
	first := Fingerprint("p1", "2")
	second := Fingerprint("p1", "5")

	if _, claimed, err := s.Claim(ctx, key, first); err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	if _, _, err := s.Claim(ctx, key, second); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch while pending, got %v", err)
	}

	if err := s.Complete(ctx, key, first, []byte(`{"id":"o-1"}`)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, _, err := s.Claim(ctx, key, second); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch after completion, got %v", err)
	}
	if resp, claimed, err := s.Claim(ctx, key, first); err != nil || claimed || string(resp) != `{"id":"o-1"}` {
		t.Fatalf("same request should replay: resp=%q claimed=%v err=%v", resp, claimed, err)
	}
}

func TestFingerprint_SeparatesParts(t *testing.T) {
	if Fingerprint("p1", "23") == Fingerprint("p12", "3") {
		t.Error("expected part boundaries to change the fingerprint")
	}
	if Fingerprint("p1", "2") != Fingerprint("p1", "2") {
		t.Error("expected fingerprint to be stable")
	}
}
