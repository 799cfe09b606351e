package memmgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	m, err := New(&BlockConfig{BlockSize: 16, MaxBlocks: 2, MinBlocks: 1})
	require.NoError(t, err)
	defer m.Close()

	b, err := m.AcquireBlock(context.Background())
	require.NoError(t, err)
	b.Bytes[0] = 0xFF
	m.ReleaseBlock(b)

	b2, err := m.AcquireBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(0), b2.Bytes[0], "released block must be zeroed")
}

func TestAcquireBlocksUntilContextDone(t *testing.T) {
	m, err := New(&BlockConfig{BlockSize: 8, MaxBlocks: 1, MinBlocks: 1})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.AcquireBlock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.AcquireBlock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseIsIdempotent(t *testing.T) {
	m, err := New(DefaultBlockConfig())
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
