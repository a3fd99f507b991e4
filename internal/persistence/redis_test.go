package persistence

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Save(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client, "")

	payload := []byte(`{"events":3}`)
	mock.ExpectSet("rncpsim:snapshot:jdoe", payload, 0).SetVal("OK")

	require.NoError(t, store.Save(context.Background(), "jdoe", payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Load(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client, "custom:")

	mock.ExpectGet("custom:jdoe").SetVal(`{"events":3}`)

	got, err := store.Load(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"events":3}`), got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_LoadMissing(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client, "")

	mock.ExpectGet("rncpsim:snapshot:ghost").RedisNil()

	_, err := store.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client, "")

	mock.ExpectDel("rncpsim:snapshot:jdoe").SetVal(1)

	require.NoError(t, store.Delete(context.Background(), "jdoe"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
