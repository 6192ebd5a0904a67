package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte("v1"), time.Minute))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExpiredKeyIsAbsent(t *testing.T) {
	s := New()
	ctx := context.Background()

	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 30*time.Second))

	clock = clock.Add(29 * time.Second)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	clock = clock.Add(2 * time.Second)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	s := New()
	ctx := context.Background()

	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))

	clock = clock.Add(1000 * time.Hour)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("abc"), 0))

	v, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	v[0] = 'x'

	v2, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), v2)
}

func TestCompareAndSwap(t *testing.T) {
	s := New()
	ctx := context.Background()

	// nil old matches only an absent key
	swapped, err := s.CompareAndSwap(ctx, "k", nil, []byte("v1"), time.Minute)
	require.NoError(t, err)
	require.True(t, swapped)

	swapped, err = s.CompareAndSwap(ctx, "k", nil, []byte("v2"), time.Minute)
	require.NoError(t, err)
	require.False(t, swapped)

	// stale old value loses
	swapped, err = s.CompareAndSwap(ctx, "k", []byte("stale"), []byte("v2"), time.Minute)
	require.NoError(t, err)
	require.False(t, swapped)

	swapped, err = s.CompareAndSwap(ctx, "k", []byte("v1"), []byte("v2"), time.Minute)
	require.NoError(t, err)
	require.True(t, swapped)

	v, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)
}

func TestCompareAndSwapTreatsExpiredAsAbsent(t *testing.T) {
	s := New()
	ctx := context.Background()

	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.Set(ctx, "k", []byte("v1"), time.Second))
	clock = clock.Add(2 * time.Second)

	swapped, err := s.CompareAndSwap(ctx, "k", nil, []byte("v2"), time.Minute)
	require.NoError(t, err)
	require.True(t, swapped)
}
