// Package nightly holds the build-to-commit correlation model: registry
// tags, the canonical Nightly record keyed by build SHA, the merge that
// grows the persisted set, and the locator that answers "which nightly
// first contains this change".
package nightly

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNoNightlyFound means no nightly's ancestry contains the target change.
	ErrNoNightlyFound = errors.New("no nightly found containing the commit")
	// ErrNotEnoughNightlies means an operation needed more nightlies than exist.
	ErrNotEnoughNightlies = errors.New("not enough nightlies")
)

// Tag is one raw registry entry, immutable once fetched.
type Tag struct {
	Name       string    `json:"name"`
	LastPushed time.Time `json:"tag_last_pushed"`
	Digest     string    `json:"digest"`
}

// Nightly correlates one build with the commit it was built from.
// Sha is unique across the persisted set and never mutates; ShaTimestamp is
// attached lazily when the commit resolver succeeds and stays nil otherwise.
type Nightly struct {
	Sha                 string     `json:"sha"`
	Tag                 Tag        `json:"tag"`
	EstimatedLastPushed time.Time  `json:"estimated_last_pushed"`
	ShaTimestamp        *time.Time `json:"sha_timestamp,omitempty"`
}

// EffectiveTimestamp prefers the authoritative commit time and falls back to
// the registry push time when resolution failed.
func (n *Nightly) EffectiveTimestamp() time.Time {
	if n.ShaTimestamp != nil {
		return *n.ShaTimestamp
	}
	return n.EstimatedLastPushed
}

// IsWeekendBuild reports whether the build landed on a Saturday or Sunday (UTC).
func (n *Nightly) IsWeekendBuild() bool {
	wd := n.EffectiveTimestamp().UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// ExtractSha pulls the build identifier out of a tag name.
//
// A nightly tag looks like "nightly-full-main-a1b2c3d4-py3": a fixed prefix,
// the short commit SHA at a fixed token position, and a role suffix. The
// second return is false when the name does not follow the convention or the
// candidate token has the wrong length; such tags are filtered, not errors.
func ExtractSha(name, prefix string, shaLen int) (string, bool) {
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(name, prefix)
	sha, _, found := strings.Cut(rest, "-")
	if !found {
		// No role suffix after the identifier.
		return "", false
	}
	if len(sha) != shaLen || !isHex(sha) {
		return "", false
	}
	return sha, true
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return len(s) > 0
}

// SortNewestFirst orders nightlies by effective timestamp, newest first.
func SortNewestFirst(nightlies []Nightly) {
	sort.SliceStable(nightlies, func(i, j int) bool {
		return nightlies[i].EffectiveTimestamp().After(nightlies[j].EffectiveTimestamp())
	})
}

// SortOldestFirst orders nightlies by effective timestamp, oldest first.
func SortOldestFirst(nightlies []Nightly) {
	sort.SliceStable(nightlies, func(i, j int) bool {
		return nightlies[i].EffectiveTimestamp().Before(nightlies[j].EffectiveTimestamp())
	})
}

// FilterRange keeps nightlies whose effective timestamp is within
// [from, to]; a zero `to` means "no upper bound".
func FilterRange(nightlies []Nightly, from, to time.Time) []Nightly {
	var out []Nightly
	for _, n := range nightlies {
		ts := n.EffectiveTimestamp()
		if ts.Before(from) {
			continue
		}
		if !to.IsZero() && ts.After(to) {
			continue
		}
		out = append(out, n)
	}
	return out
}
