package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scottopell/nightlies/internal/config"
	"github.com/scottopell/nightlies/internal/gitrepo"
	"github.com/scottopell/nightlies/internal/nightly"
	"github.com/scottopell/nightlies/internal/registry"
)

// saveGrace bounds how long a finished command waits for the background
// cache write before exiting anyway.
const saveGrace = 2 * time.Second

// app is the assembled state every command works from: the merged nightly
// set, plus the local repository when one could be opened.
type app struct {
	cfg       *config.Config
	repo      *gitrepo.Repository
	nightlies []nightly.Nightly
	saveDone  chan struct{}
}

// startup fetches live tags, loads the persisted cache, and refreshes the
// local repository concurrently, then merges everything into one nightly
// set. The merged set is written back in the background; commands call
// awaitSave before exiting.
//
// A missing or unopenable repository degrades the run (no commit
// timestamps, no ancestry answers) rather than failing it: the listing
// surface works from registry data alone.
func startup(ctx context.Context, cfg *config.Config, pages int, noFetch, forceFetch bool) (*app, error) {
	a := &app{cfg: cfg}

	repo, err := gitrepo.Open(cfg.RepoPath, cfg.RemoteRef)
	if err != nil {
		slog.WarnContext(ctx, "Local repository unavailable, continuing without commit resolution",
			"path", cfg.RepoPath, "error", err)
	} else {
		a.repo = repo
	}

	client := registry.NewClient(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.RegistryURL, cfg.TagPrefix, cfg.PageSize)
	store := nightly.NewStore(cfg.CachePath)

	var (
		fresh     []nightly.Tag
		persisted []nightly.Nightly
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fresh, err = client.FetchTags(gctx, pages)
		return err
	})
	g.Go(func() error {
		persisted = store.Load(gctx)
		return nil
	})
	if a.repo != nil {
		g.Go(func() error {
			policy := gitrepo.FreshnessPolicy{
				Cooldown: cfg.FetchCooldown,
				Force:    forceFetch,
				Skip:     noFetch,
			}
			if err := a.repo.Refresh(gctx, policy); err != nil {
				// Stale ancestry data is better than no run at all.
				slog.WarnContext(gctx, "Repository refresh failed, ancestry answers may be stale",
					"error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var resolver nightly.CommitResolver
	if a.repo != nil {
		resolver = a.repo
	}
	correlator := nightly.NewCorrelator(resolver, cfg.TagPrefix, cfg.ShaLength)
	a.nightlies = correlator.Merge(ctx, persisted, fresh)

	a.saveDone = make(chan struct{})
	go func() {
		defer close(a.saveDone)
		if err := store.Save(context.WithoutCancel(ctx), a.nightlies); err != nil {
			slog.WarnContext(ctx, "Failed to persist nightly cache", "path", store.Path(), "error", err)
		}
	}()

	return a, nil
}

// awaitSave gives the background cache write a short grace period.
func (a *app) awaitSave() {
	select {
	case <-a.saveDone:
	case <-time.After(saveGrace):
		slog.Warn("Cache save still running at exit, abandoning it")
	}
}
