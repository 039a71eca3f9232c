package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshSpec(t *testing.T) {
	t.Run("origin main", func(t *testing.T) {
		remote, spec, err := refreshSpec("refs/remotes/origin/main")
		require.NoError(t, err)
		assert.Equal(t, "origin", remote)
		assert.Equal(t, gitconfig.RefSpec("refs/heads/main:refs/remotes/origin/main"), spec)
	})

	t.Run("other remote and branch", func(t *testing.T) {
		remote, spec, err := refreshSpec("refs/remotes/upstream/release")
		require.NoError(t, err)
		assert.Equal(t, "upstream", remote)
		assert.Equal(t, gitconfig.RefSpec("refs/heads/release:refs/remotes/upstream/release"), spec)
	})

	t.Run("not a remote tracking ref", func(t *testing.T) {
		_, _, err := refreshSpec("refs/heads/main")
		assert.Error(t, err)
	})
}

func TestMarkerExpired(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("c0", map[string]string{"a.txt": "a"})
	r := tr.open()
	marker := r.fetchMarkerPath()

	t.Run("missing marker is expired", func(t *testing.T) {
		assert.True(t, r.markerExpired(marker, time.Hour))
	})

	t.Run("fresh marker is not expired", func(t *testing.T) {
		require.NoError(t, writeMarker(marker))
		assert.False(t, r.markerExpired(marker, time.Hour))
	})

	t.Run("old marker is expired", func(t *testing.T) {
		old := strconv.FormatInt(time.Now().Add(-2*time.Hour).Unix(), 10)
		require.NoError(t, os.WriteFile(marker, []byte(old), 0o644))
		assert.True(t, r.markerExpired(marker, time.Hour))
	})

	t.Run("garbage marker is expired", func(t *testing.T) {
		require.NoError(t, os.WriteFile(marker, []byte("not-a-timestamp"), 0o644))
		assert.True(t, r.markerExpired(marker, time.Hour))
	})

	t.Run("future marker is expired", func(t *testing.T) {
		future := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)
		require.NoError(t, os.WriteFile(marker, []byte(future), 0o644))
		assert.True(t, r.markerExpired(marker, time.Hour))
	})
}

func TestRefresh_SkipMode(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("c0", map[string]string{"a.txt": "a"})
	r := tr.open()

	// Skip mode must not touch the remote (none is configured here).
	err := r.Refresh(context.Background(), FreshnessPolicy{Skip: true})
	assert.NoError(t, err)
}

func TestRefresh_CooldownSuppressesFetch(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("c0", map[string]string{"a.txt": "a"})
	r := tr.open()
	require.NoError(t, writeMarker(r.fetchMarkerPath()))

	// No remote is configured, so an actual fetch would fail loudly; the
	// fresh marker must short-circuit before that.
	err := r.Refresh(context.Background(), FreshnessPolicy{Cooldown: time.Hour})
	assert.NoError(t, err)
}

func TestRefresh_FetchesFromLocalRemote(t *testing.T) {
	origin := newTestRepo(t)
	c0 := origin.commit("c0", map[string]string{"a.txt": "a"})

	local := newTestRepo(t)
	local.commit("unrelated", map[string]string{"b.txt": "b"})
	_, err := local.repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{origin.dir},
	})
	require.NoError(t, err)
	r := local.open()

	require.NoError(t, r.Refresh(context.Background(), FreshnessPolicy{Force: true}))

	ref, err := local.repo.Reference("refs/remotes/origin/main", true)
	require.NoError(t, err)
	assert.Equal(t, c0, ref.Hash())

	// The marker now exists; a second non-forced refresh inside the
	// cooldown is a no-op even though the remote is reachable.
	assert.FileExists(t, r.fetchMarkerPath())
	assert.NoError(t, r.Refresh(context.Background(), FreshnessPolicy{Cooldown: time.Hour}))
}

func TestRefresh_ForceIgnoresCooldown(t *testing.T) {
	origin := newTestRepo(t)
	origin.commit("c0", map[string]string{"a.txt": "a"})

	local := newTestRepo(t)
	local.commit("unrelated", map[string]string{"b.txt": "b"})
	_, err := local.repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{origin.dir},
	})
	require.NoError(t, err)
	r := local.open()

	require.NoError(t, r.Refresh(context.Background(), FreshnessPolicy{Force: true}))

	// Advance origin and force again: the new tip must arrive despite the
	// fresh marker.
	c1 := origin.commit("c1", map[string]string{"a.txt": "a2"})
	require.NoError(t, r.Refresh(context.Background(), FreshnessPolicy{Cooldown: time.Hour, Force: true}))

	ref, err := local.repo.Reference("refs/remotes/origin/main", true)
	require.NoError(t, err)
	assert.Equal(t, c1, ref.Hash())
}

func TestRefresh_MarkerLivesInGitDir(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("c0", map[string]string{"a.txt": "a"})
	r := tr.open()

	assert.Equal(t, filepath.Join(tr.dir, ".git", markerFile), r.fetchMarkerPath())
}
