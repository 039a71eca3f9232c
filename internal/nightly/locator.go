package nightly

import (
	"context"
	"fmt"
	"log/slog"
)

// Locator answers which nightly first contained a change.
type Locator struct {
	resolver CommitResolver
}

func NewLocator(resolver CommitResolver) *Locator {
	return &Locator{resolver: resolver}
}

// FirstContaining returns the nightly with the earliest effective timestamp
// whose build commit's ancestry includes changeSha, or ErrNoNightlyFound.
//
// Candidates are prefiltered to builds no older than the change's commit
// time — that only trims obviously impossible ancestry walks, the walk
// itself is still the authority — then scanned oldest-first so the first
// ancestry hit is the answer. Note the early return assumes a later
// descendant nightly also contains the change; cherry-picks and reverts can
// break that, so callers must not infer anything about nightlies after the
// returned one.
func (l *Locator) FirstContaining(ctx context.Context, nightlies []Nightly, changeSha string) (Nightly, error) {
	changeTime, err := l.resolver.CommitTimestamp(ctx, changeSha)
	if err != nil {
		return Nightly{}, fmt.Errorf("resolving target change %q: %w", changeSha, err)
	}
	slog.DebugContext(ctx, "Resolved target change", "sha", changeSha, "timestamp", changeTime)

	candidates := make([]Nightly, 0, len(nightlies))
	for _, n := range nightlies {
		if !n.EffectiveTimestamp().Before(changeTime) {
			candidates = append(candidates, n)
		}
	}
	SortOldestFirst(candidates)
	slog.DebugContext(ctx, "Filtered candidate nightlies", "count", len(candidates))

	for _, n := range candidates {
		ok, err := l.resolver.IsAncestor(ctx, changeSha, n.Sha)
		if err != nil {
			slog.WarnContext(ctx, "Skipping nightly, ancestry check failed",
				"nightly", n.Sha, "error", err)
			continue
		}
		if ok {
			slog.DebugContext(ctx, "Found containing nightly", "nightly", n.Sha)
			return n, nil
		}
	}

	return Nightly{}, fmt.Errorf("%w: %s", ErrNoNightlyFound, changeSha)
}
