package nightly

import (
	"context"
	"log/slog"
	"time"
)

// CommitResolver is the slice of repository access the correlator and
// locator need. internal/gitrepo provides the real implementation.
type CommitResolver interface {
	// CommitTimestamp resolves the authoritative commit time for a sha
	// reachable from the tracked remote branch.
	CommitTimestamp(ctx context.Context, sha string) (time.Time, error)
	// IsAncestor reports whether ancestor is reachable by walking parent
	// edges backward from descendant.
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
}

// Correlator groups raw registry tags into canonical Nightly records.
type Correlator struct {
	resolver  CommitResolver
	tagPrefix string
	shaLength int
}

func NewCorrelator(resolver CommitResolver, tagPrefix string, shaLength int) *Correlator {
	return &Correlator{
		resolver:  resolver,
		tagPrefix: tagPrefix,
		shaLength: shaLength,
	}
}

// Merge folds freshly fetched tags into the persisted nightly set and
// returns the grown set. Existing records are never mutated or dropped, so
// merging the same tags twice is a no-op; a tag whose sha is already present
// is skipped even if its metadata differs. Tags without a valid build
// identifier are filtered silently. A failed timestamp resolution degrades
// ordering for that one nightly (ShaTimestamp stays nil), it does not
// exclude it.
func (c *Correlator) Merge(ctx context.Context, persisted []Nightly, fresh []Tag) []Nightly {
	seen := make(map[string]struct{}, len(persisted))
	for _, n := range persisted {
		seen[n.Sha] = struct{}{}
	}

	merged := persisted
	for _, tag := range fresh {
		sha, ok := ExtractSha(tag.Name, c.tagPrefix, c.shaLength)
		if !ok {
			slog.DebugContext(ctx, "Skipping tag without a build identifier", "tag", tag.Name)
			continue
		}
		if _, dup := seen[sha]; dup {
			continue
		}
		seen[sha] = struct{}{}

		n := Nightly{
			Sha:                 sha,
			Tag:                 tag,
			EstimatedLastPushed: tag.LastPushed,
		}
		if c.resolver != nil {
			ts, err := c.resolver.CommitTimestamp(ctx, sha)
			if err != nil {
				slog.WarnContext(ctx, "Could not resolve commit timestamp, falling back to push time",
					"sha", sha, "error", err)
			} else {
				n.ShaTimestamp = &ts
			}
		}
		merged = append(merged, n)
	}

	return merged
}
