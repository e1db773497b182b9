package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/eventhub/internal/adapters/redis"
	"github.com/robertarktes/eventhub/internal/domain"
)

const MinKeyLength = 16

// Store is satisfied by the redis adapter.
type Store interface {
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Idempotency struct {
	redis   Store
	ttl     time.Duration
	lockTTL time.Duration
}

func NewIdempotency(redis Store, ttl time.Duration) *Idempotency {
	return &Idempotency{redis: redis, ttl: ttl, lockTTL: 30 * time.Second}
}

type Response struct {
	Status      int
	ContentType string
	Result      []byte
}

// Request identifies one keyed call. Keys are scoped per caller and route so
// two users can never replay each other's responses.
type Request struct {
	Scope string
	Key   string
	Body  []byte
}

func (r Request) storageKey() string {
	return r.Scope + ":" + r.Key
}

func (r Request) fingerprint() string {
	sum := sha256.Sum256(r.Body)
	return hex.EncodeToString(sum[:])
}

func ValidKey(key string) bool {
	return len(key) >= MinKeyLength && len(key) <= 255
}

// Begin returns the stored response for a replay. When nothing is stored it
// takes the in-flight lock and returns nil; the caller must then call Complete
// or Release. Reusing a key with a different body, or while the first call is
// still running, is an ErrConflict.
func (i *Idempotency) Begin(ctx context.Context, req Request) (*Response, error) {
	cached, err := i.redis.Get(ctx, req.storageKey())
	if err != nil {
		return nil, errors.Wrap(err, "idempotency lookup")
	}
	if cached != nil {
		if cached.Fingerprint != req.fingerprint() {
			return nil, errors.Mark(errors.New("idempotency key reused with a different request body"), domain.ErrConflict)
		}
		return &Response{Status: cached.Status, ContentType: cached.ContentType, Result: cached.Result}, nil
	}

	ok, err := i.redis.Lock(ctx, req.storageKey(), i.lockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "idempotency lock")
	}
	if !ok {
		return nil, errors.Mark(errors.New("a request with this idempotency key is still in progress"), domain.ErrConflict)
	}
	return nil, nil
}

func (i *Idempotency) Complete(ctx context.Context, req Request, resp Response) error {
	err := i.redis.Set(ctx, req.storageKey(), redisadapter.IdempResponse{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Result:      resp.Result,
		Fingerprint: req.fingerprint(),
	}, i.ttl)
	if unlockErr := i.redis.Unlock(ctx, req.storageKey()); err == nil {
		err = unlockErr
	}
	return err
}

// Release drops the lock without storing anything, so the client may retry.
func (i *Idempotency) Release(ctx context.Context, req Request) error {
	return i.redis.Unlock(ctx, req.storageKey())
}
