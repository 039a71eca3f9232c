package nightly

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	s := NewStore(path)
	ctx := context.Background()

	resolved := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	in := []Nightly{
		{
			Sha:                 "aaaa1111",
			Tag:                 Tag{Name: "nightly-main-aaaa1111-py3", LastPushed: resolved.Add(time.Hour), Digest: "sha256:a"},
			EstimatedLastPushed: resolved.Add(time.Hour),
			ShaTimestamp:        &resolved,
		},
		{
			Sha:                 "bbbb2222",
			Tag:                 Tag{Name: "nightly-main-bbbb2222-py3", LastPushed: resolved.Add(25 * time.Hour)},
			EstimatedLastPushed: resolved.Add(25 * time.Hour),
		},
	}

	require.NoError(t, s.Save(ctx, in))
	out := s.Load(ctx)
	require.Len(t, out, 2)
	assert.Equal(t, in[0].Sha, out[0].Sha)
	require.NotNil(t, out[0].ShaTimestamp)
	assert.True(t, resolved.Equal(*out[0].ShaTimestamp))
	assert.Nil(t, out[1].ShaTimestamp)
}

func TestStore_MissingFileIsColdStart(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "never-written.json"))
	assert.Empty(t, s.Load(context.Background()))
}

func TestStore_CorruptFileIsColdStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewStore(path)
	assert.Empty(t, s.Load(context.Background()))
}

func TestStore_SaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	s := NewStore(path)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []Nightly{{Sha: "aaaa1111"}}))
	require.NoError(t, s.Save(ctx, []Nightly{{Sha: "aaaa1111"}, {Sha: "bbbb2222"}}))

	// No temp leftovers, and the final content is the second write.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, s.Load(ctx), 2)
}

func TestStore_SaveJSONIsAnArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	s := NewStore(path)
	require.NoError(t, s.Save(context.Background(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// An empty set still serializes as a JSON array, the documented cache contract.
	assert.Equal(t, "[]", string(data))
}
