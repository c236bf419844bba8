package cache

import (
	"bufio"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavebuild/wavebuild/internal/types"
)

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := New(dir, DefaultLimits(), nil)
	s.PutTarget(CacheEntry{
		TargetID: "//app:main",
		SourceFP: map[string]types.ContentFingerprint{
			"main.go": {Scheme: types.SchemeWhole},
		},
	})
	s.PutAction(ActionCacheEntry{ActionKey: "compile:main", Outputs: []types.ArtifactID{{1, 2, 3}}})
	s.PutDependencies("main.go", []string{"//app:util"})

	require.NoError(t, s.Flush())

	reloaded := New(dir, DefaultLimits(), nil)
	require.NoError(t, reloaded.Load())

	entry, ok := reloaded.GetTarget("//app:main")
	require.True(t, ok)
	assert.Equal(t, types.SchemeWhole, entry.SourceFP["main.go"].Scheme)

	action, ok := reloaded.GetAction("compile:main")
	require.True(t, ok)
	assert.Equal(t, types.ArtifactID{1, 2, 3}, action.Outputs[0])

	imports, ok := reloaded.GetDependencies("main.go")
	require.True(t, ok)
	assert.Equal(t, []string{"//app:util"}, imports)
}

func TestStore_Load_PreservesUnknownHeaderFlags(t *testing.T) {
	dir := t.TempDir()

	s := New(dir, DefaultLimits(), nil)
	s.PutTarget(CacheEntry{TargetID: "//app:main"})
	require.NoError(t, s.Flush())

	// Simulate a newer writer having set a flag bit this version doesn't
	// understand yet.
	s.targetsFlags = 0x0001
	require.NoError(t, s.Flush())

	f, err := os.Open(s.targetsPath())
	require.NoError(t, err)
	defer f.Close()
	header, err := readHeader(bufio.NewReader(f))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0001), header.Flags)

	reloaded := New(dir, DefaultLimits(), nil)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, uint16(0x0001), reloaded.targetsFlags)

	// A Flush after reloading must keep echoing the preserved bit forward.
	require.NoError(t, reloaded.Flush())
	f2, err := os.Open(reloaded.targetsPath())
	require.NoError(t, err)
	defer f2.Close()
	header2, err := readHeader(bufio.NewReader(f2))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0001), header2.Flags)
}

func TestStore_Load_MissingFilesIsNotError(t *testing.T) {
	s := New(t.TempDir(), DefaultLimits(), nil)
	require.NoError(t, s.Load())
	assert.Equal(t, 0, s.TargetCount())
}

func TestStore_EvictionByAge(t *testing.T) {
	s := New(t.TempDir(), Limits{MaxAge: time.Hour}, nil)

	s.targets.Set("old", CacheEntry{TargetID: "old", LastAccess: time.Now().Add(-2 * time.Hour)})
	s.targets.Set("new", CacheEntry{TargetID: "new", LastAccess: time.Now()})

	s.runEviction()

	_, oldOK := s.targets.Get("old")
	_, newOK := s.targets.Get("new")
	assert.False(t, oldOK)
	assert.True(t, newOK)
}

func TestStore_EvictionByCount(t *testing.T) {
	s := New(t.TempDir(), Limits{MaxEntries: 3}, nil)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		s.targets.Set(key, CacheEntry{TargetID: key, LastAccess: base.Add(time.Duration(i) * time.Minute)})
	}

	s.runEviction()

	assert.LessOrEqual(t, s.TargetCount(), 3)
	// The most recently touched entries should survive.
	_, ok := s.targets.Get(string(rune('a' + 9)))
	assert.True(t, ok)
	_, ok = s.targets.Get("a")
	assert.False(t, ok)
}

func TestStore_EvictionBySize(t *testing.T) {
	s := New(t.TempDir(), Limits{MaxSize: 200}, nil)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		fp := make(map[string]types.ContentFingerprint)
		for j := 0; j < i+1; j++ {
			fp[string(rune('x'+j))] = types.ContentFingerprint{}
		}
		s.targets.Set(key, CacheEntry{TargetID: key, LastAccess: base.Add(time.Duration(i) * time.Minute), SourceFP: fp})
	}

	s.runEviction()

	var total int64
	s.targets.Range(func(_ string, e CacheEntry) { total += e.Size() })
	assert.LessOrEqual(t, total, int64(200))
}

func TestInvalidateAction(t *testing.T) {
	s := New(t.TempDir(), DefaultLimits(), nil)
	s.PutAction(ActionCacheEntry{ActionKey: "compile:x"})
	s.InvalidateAction("compile:x")
	_, ok := s.GetAction("compile:x")
	assert.False(t, ok)
}

func TestReverseDependents(t *testing.T) {
	s := New(t.TempDir(), DefaultLimits(), nil)
	s.PutDependencies("a.go", []string{"//lib:util"})
	s.PutDependencies("b.go", []string{"//lib:util", "//lib:other"})
	s.PutDependencies("c.go", []string{"//lib:other"})

	dependents := s.ReverseDependents("//lib:util")
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, dependents)
}
