package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotStoreConcurrentAccess(t *testing.T) {
	s := NewHotStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Put(fmt.Sprintf("key-%d", i), i)
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Keys("key-"), 20)
	v, ok := s.Get("key-7")
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestHotStoreDelete(t *testing.T) {
	s := NewHotStore()
	s.Put("k", "v")
	s.Delete("k")

	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestWarmStoreTTLExpiry(t *testing.T) {
	s := NewWarmStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "short", []byte("x"), 10*time.Millisecond))
	require.NoError(t, s.Put(ctx, "long", []byte("y"), time.Hour))

	_, ok, err := s.Get(ctx, "short")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok, err = s.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok, "expired keys are a miss")

	keys, err := s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"long"}, keys)
}

func TestWarmStoreZeroTTLNeverExpires(t *testing.T) {
	s := NewWarmStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("v"), 0))

	data, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), data)
}

func TestWarmStoreCopiesValues(t *testing.T) {
	s := NewWarmStore()
	ctx := context.Background()

	buf := []byte("original")
	require.NoError(t, s.Put(ctx, "k", buf, time.Hour))
	buf[0] = 'X'

	data, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("original"), data)
}

func TestArchiveAppendsVersions(t *testing.T) {
	a := NewArchive()
	ctx := context.Background()

	require.NoError(t, a.Archive(ctx, "k", []byte("v1"), nil))
	require.NoError(t, a.Archive(ctx, "k", []byte("v2"), map[string]string{"source": "test"}))

	assert.Equal(t, 2, a.VersionCount("k"))

	data, ok, err := a.Retrieve(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), data)
}

func TestArchiveMiss(t *testing.T) {
	a := NewArchive()

	_, ok, err := a.Retrieve(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArchiveFailWrites(t *testing.T) {
	a := NewArchive()
	a.FailWrites = true

	err := a.Archive(context.Background(), "k", []byte("v"), nil)
	assert.Error(t, err)
	assert.Zero(t, a.VersionCount("k"))
}
