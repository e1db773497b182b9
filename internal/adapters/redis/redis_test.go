package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotency_GetMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	idem := NewIdempotency(client)

	mock.ExpectGet("idemp:k1").RedisNil()

	resp, err := idem.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_SetThenGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	idem := NewIdempotency(client)
	stored := IdempResponse{Status: 201, ContentType: "application/json", Result: []byte(`{"id":"1"}`), Fingerprint: "abc"}
	data, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectSet("idemp:k1", data, time.Hour).SetVal("OK")
	mock.ExpectGet("idemp:k1").SetVal(string(data))

	require.NoError(t, idem.Set(context.Background(), "k1", stored, time.Hour))
	got, err := idem.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, stored, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_Lock(t *testing.T) {
	client, mock := redismock.NewClientMock()
	idem := NewIdempotency(client)

	mock.ExpectSetNX("idemp-lock:k1", 1, time.Minute).SetVal(true)
	mock.ExpectSetNX("idemp-lock:k1", 1, time.Minute).SetVal(false)
	mock.ExpectDel("idemp-lock:k1").SetVal(1)

	ok, err := idem.Lock(context.Background(), "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = idem.Lock(context.Background(), "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, idem.Unlock(context.Background(), "k1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_IncrWindow(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewCache(client)

	mock.ExpectIncr("rl:ip:1.2.3.4:100").SetVal(3)
	mock.ExpectExpire("rl:ip:1.2.3.4:100", time.Minute).SetVal(true)

	n, err := cache.IncrWindow(context.Background(), "rl:ip:1.2.3.4:100", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_IncrWindowError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewCache(client)

	mock.ExpectIncr("k").SetErr(errors.New("connection refused"))

	_, err := cache.IncrWindow(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
