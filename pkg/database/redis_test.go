package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := InitRedis(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Set(context.Background(), "xuanji:ping", "1", 0).Err())
	v, err := mr.Get("xuanji:ping")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestInitRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := InitRedis(addr, "", 0)
	assert.Error(t, err)
}
