package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavebuild/wavebuild/internal/types"
)

func TestPut_IsIdempotent(t *testing.T) {
	s := New(t.TempDir(), DefaultLimits())
	id1, err := s.Put([]byte("hello"))
	require.NoError(t, err)
	id2, err := s.Put([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Equal(t, int64(5), s.TotalSize())
}

func TestGet_RoundTrip(t *testing.T) {
	s := New(t.TempDir(), DefaultLimits())
	id, err := s.Put([]byte("payload"))
	require.NoError(t, err)

	data, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestGet_NotFound(t *testing.T) {
	s := New(t.TempDir(), DefaultLimits())
	var id types.ArtifactID
	_, err := s.Get(id)
	assert.Error(t, err)
}

func TestHasMany(t *testing.T) {
	s := New(t.TempDir(), DefaultLimits())
	present, err := s.Put([]byte("present"))
	require.NoError(t, err)
	var missing types.ArtifactID

	result := s.HasMany([]types.ArtifactID{present, missing})
	assert.True(t, result[present])
	assert.False(t, result[missing])
}

func TestFlushAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, DefaultLimits())
	id, err := s.Put([]byte("durable"))
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	reloaded := New(dir, DefaultLimits())
	require.NoError(t, reloaded.Load())
	assert.True(t, reloaded.Has(id))

	data, err := reloaded.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "durable", string(data))
}

func TestEviction_DropsUnderSoftLimit(t *testing.T) {
	s := New(t.TempDir(), Limits{MaxSizeSoft: 10, MaxSizeHard: 1 << 30})

	_, err := s.Put([]byte("0123456789")) // exactly at the soft limit, no eviction yet
	require.NoError(t, err)
	_, err = s.Put([]byte("more-bytes-pushes-over")) // now over soft limit
	require.NoError(t, err)

	s.runEviction()
	assert.LessOrEqual(t, s.TotalSize(), int64(10))
}
