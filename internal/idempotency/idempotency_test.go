package idempotency

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redismock/v9"
	redisadapter "github.com/robertarktes/eventhub/internal/adapters/redis"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotency_FirstCallLocks(t *testing.T) {
	client, mock := redismock.NewClientMock()
	idem := NewIdempotency(redisadapter.NewIdempotency(client), time.Hour)
	req := Request{Scope: "user-1:POST /v1/transactions", Key: "0123456789abcdef", Body: []byte(`{"a":1}`)}

	mock.ExpectGet("idemp:" + req.storageKey()).RedisNil()
	mock.ExpectSetNX("idemp-lock:"+req.storageKey(), 1, 30*time.Second).SetVal(true)

	resp, err := idem.Begin(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_Replay(t *testing.T) {
	client, mock := redismock.NewClientMock()
	idem := NewIdempotency(redisadapter.NewIdempotency(client), time.Hour)
	req := Request{Scope: "user-1:POST /v1/transactions", Key: "0123456789abcdef", Body: []byte(`{"a":1}`)}
	stored, err := json.Marshal(redisadapter.IdempResponse{Status: 201, ContentType: "application/json", Result: []byte(`{"ok":true}`), Fingerprint: req.fingerprint()})
	require.NoError(t, err)

	mock.ExpectGet("idemp:" + req.storageKey()).SetVal(string(stored))

	resp, err := idem.Begin(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
}

func TestIdempotency_Conflicts(t *testing.T) {
	client, mock := redismock.NewClientMock()
	idem := NewIdempotency(redisadapter.NewIdempotency(client), time.Hour)
	req := Request{Scope: "user-1:POST /v1/transactions", Key: "0123456789abcdef", Body: []byte(`{"a":1}`)}
	other, err := json.Marshal(redisadapter.IdempResponse{Status: 201, Fingerprint: "different"})
	require.NoError(t, err)

	mock.ExpectGet("idemp:" + req.storageKey()).SetVal(string(other))
	_, err = idem.Begin(context.Background(), req)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	mock.ExpectGet("idemp:" + req.storageKey()).RedisNil()
	mock.ExpectSetNX("idemp-lock:"+req.storageKey(), 1, 30*time.Second).SetVal(false)
	_, err = idem.Begin(context.Background(), req)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_Complete(t *testing.T) {
	client, mock := redismock.NewClientMock()
	idem := NewIdempotency(redisadapter.NewIdempotency(client), time.Hour)
	req := Request{Scope: "s", Key: "0123456789abcdef", Body: []byte("body")}
	data, err := json.Marshal(redisadapter.IdempResponse{Status: 200, ContentType: "application/json", Result: []byte("{}"), Fingerprint: req.fingerprint()})
	require.NoError(t, err)

	mock.ExpectSet("idemp:"+req.storageKey(), data, time.Hour).SetVal("OK")
	mock.ExpectDel("idemp-lock:" + req.storageKey()).SetVal(1)

	require.NoError(t, idem.Complete(context.Background(), req, Response{Status: 200, ContentType: "application/json", Result: []byte("{}")}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidKey(t *testing.T) {
	assert.False(t, ValidKey("short"))
	assert.True(t, ValidKey("0123456789abcdef"))
}
