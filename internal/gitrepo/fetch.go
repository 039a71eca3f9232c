package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/gofrs/flock"
)

// markerFile records when the last successful refresh happened. It lives
// next to git's own bookkeeping inside .git.
const markerFile = "NIGHTLIES_FETCH_TIMESTAMP"

// FreshnessPolicy decides whether Refresh actually talks to the remote.
type FreshnessPolicy struct {
	// Cooldown suppresses a refresh when one succeeded within this window.
	Cooldown time.Duration
	// Force refreshes even inside the cooldown window.
	Force bool
	// Skip disables refreshing entirely (fast/offline mode).
	Skip bool
}

// Refresh updates the remote-tracking ref so ancestry answers are not
// stale. The marker file debounces repeated invocations; a flock around it
// keeps concurrent runs from fetching simultaneously.
func (r *Repository) Refresh(ctx context.Context, policy FreshnessPolicy) error {
	if policy.Skip {
		slog.DebugContext(ctx, "Skipping repository refresh (disabled)")
		return nil
	}

	markerPath := r.fetchMarkerPath()
	lock := flock.New(markerPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking fetch marker: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if !policy.Force && !r.markerExpired(markerPath, policy.Cooldown) {
		slog.DebugContext(ctx, "Skipping repository refresh (recently fetched)",
			"cooldown", policy.Cooldown)
		return nil
	}

	remote, refspec, err := refreshSpec(r.remoteRef)
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "Refreshing remote-tracking ref",
		"remote", remote, "refspec", string(refspec))
	started := time.Now()
	err = r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{refspec},
		Tags:       git.NoTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching %s: %w", r.remoteRef, err)
	}
	slog.DebugContext(ctx, "Repository refresh finished", "duration", time.Since(started))

	if err := writeMarker(markerPath); err != nil {
		slog.WarnContext(ctx, "Failed to update fetch marker", "error", err)
	}
	return nil
}

func (r *Repository) fetchMarkerPath() string {
	return filepath.Join(r.path, ".git", markerFile)
}

// markerExpired reads the marker; anything unreadable or implausible means
// "expired" so a refresh happens.
func (r *Repository) markerExpired(path string, cooldown time.Duration) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return true
	}
	last := time.Unix(secs, 0)
	if last.After(time.Now()) {
		return true
	}
	return time.Since(last) > cooldown
}

func writeMarker(path string) error {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	return os.WriteFile(path, []byte(ts), 0o644)
}

// refreshSpec derives the remote name and fetch refspec from a
// remote-tracking ref like "refs/remotes/origin/main".
func refreshSpec(remoteRef string) (string, gitconfig.RefSpec, error) {
	rest, ok := strings.CutPrefix(remoteRef, "refs/remotes/")
	if !ok {
		return "", "", fmt.Errorf("unsupported remote ref %q", remoteRef)
	}
	remote, branch, ok := strings.Cut(rest, "/")
	if !ok || remote == "" || branch == "" {
		return "", "", fmt.Errorf("unsupported remote ref %q", remoteRef)
	}
	spec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:%s", branch, remoteRef))
	return remote, spec, nil
}
