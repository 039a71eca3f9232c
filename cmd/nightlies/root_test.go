package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottopell/nightlies/internal/config"
	"github.com/scottopell/nightlies/internal/nightly"
)

func testNightly(sha, role string, ts time.Time) nightly.Nightly {
	return nightly.Nightly{
		Sha:                 sha,
		Tag:                 nightly.Tag{Name: "nightly-main-" + sha + role, LastPushed: ts},
		EstimatedLastPushed: ts,
	}
}

func resetQueryFlags(t *testing.T) {
	t.Helper()
	allTagsFlag, shaFlag, fromFlag, toFlag, recentFlag = false, "", "", "", 0
	cfg = &config.Config{PrimaryRoleSuffix: "-py3"}
}

func TestSelectNightlies(t *testing.T) {
	now := time.Now().UTC()
	nightlies := []nightly.Nightly{
		testNightly("aaaa1111", "-py3", now.Add(-time.Hour)),
		testNightly("bbbb2222", "-py3", now.Add(-2*24*time.Hour)),
		testNightly("cccc3333", "-jmx", now.Add(-time.Hour)),
		testNightly("dddd4444", "-py3", now.Add(-10*24*time.Hour)),
	}

	t.Run("default window keeps the last week, primary role only", func(t *testing.T) {
		resetQueryFlags(t)
		got, err := selectNightlies(nightlies)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "aaaa1111", got[0].Sha)
		assert.Equal(t, "bbbb2222", got[1].Sha)
	})

	t.Run("all-tags includes other roles", func(t *testing.T) {
		resetQueryFlags(t)
		allTagsFlag = true
		got, err := selectNightlies(nightlies)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("recent takes the newest N", func(t *testing.T) {
		resetQueryFlags(t)
		recentFlag = 1
		got, err := selectNightlies(nightlies)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "aaaa1111", got[0].Sha)
	})

	t.Run("sha lookup matches tag names", func(t *testing.T) {
		resetQueryFlags(t)
		shaFlag = "bbbb2222"
		got, err := selectNightlies(nightlies)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "bbbb2222", got[0].Sha)
	})

	t.Run("explicit range is inclusive", func(t *testing.T) {
		resetQueryFlags(t)
		fromFlag = now.Add(-3 * 24 * time.Hour).Format(time.RFC3339)
		got, err := selectNightlies(nightlies)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("bad from value errors", func(t *testing.T) {
		resetQueryFlags(t)
		fromFlag = "yesterday"
		_, err := selectNightlies(nightlies)
		assert.Error(t, err)
	})
}

func TestEffectivePages(t *testing.T) {
	pages := rootCmd.PersistentFlags().Lookup("pages")
	require.NotNil(t, pages)
	defer func() {
		pages.Changed = false
		pagesFlag = 0
	}()

	t.Run("config value applies when the flag is untouched", func(t *testing.T) {
		pages.Changed = false
		cfg = &config.Config{MaxPages: 3}
		assert.Equal(t, 3, effectivePages())
	})

	t.Run("env-configured max pages reaches the fetch", func(t *testing.T) {
		pages.Changed = false
		t.Setenv("NIGHTLIES_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
		t.Setenv("NIGHTLIES_MAX_PAGES", "4")
		cfg = config.Load()
		assert.Equal(t, 4, effectivePages())
	})

	t.Run("explicit flag wins over config", func(t *testing.T) {
		cfg = &config.Config{MaxPages: 3}
		require.NoError(t, rootCmd.PersistentFlags().Set("pages", "2"))
		assert.Equal(t, 2, effectivePages())
	})
}

func TestParseQueryTime(t *testing.T) {
	rfc, err := parseQueryTime("2024-06-01T12:00:00Z")
	require.NoError(t, err)
	bare, err := parseQueryTime("2024-06-01T12:00:00")
	require.NoError(t, err)
	assert.True(t, rfc.Equal(bare))

	_, err = parseQueryTime("June 1st")
	assert.Error(t, err)
}

func TestTagForSha(t *testing.T) {
	nightlies := []nightly.Nightly{testNightly("aaaa1111", "-py3", time.Now())}
	assert.Equal(t, "nightly-main-aaaa1111-py3", tagForSha(nightlies, "aaaa1111"))
	assert.Empty(t, tagForSha(nightlies, "ffff0000"))
}
