// Package manifest parses the project's dependency manifest and computes
// the version delta between two builds.
package manifest

import (
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/mod/semver"
)

// Status classifies one dependency in a manifest comparison.
type Status string

const (
	StatusSame    Status = "same"
	StatusUpdated Status = "updated"
	StatusAdded   Status = "added"
	StatusRemoved Status = "removed"
)

// ComponentDiff is one dependency's delta between a base and comparison
// manifest. Computed per report, never persisted.
type ComponentDiff struct {
	Name              string
	BaseVersion       string
	ComparisonVersion string
	Status            Status
}

// Parse reads a manifest into a name→version map. Two shapes are accepted:
// a flat object of name→version strings, and a wrapped object whose
// "dependencies" field holds that map. Unknown sibling fields and entries
// whose versions are not plain strings are ignored.
func Parse(data []byte) (map[string]string, error) {
	var wrapped struct {
		Dependencies map[string]json.RawMessage `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Dependencies) > 0 {
		return versionMap(wrapped.Dependencies), nil
	}

	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("parsing dependency manifest: %w", err)
	}
	return versionMap(flat), nil
}

func versionMap(raw map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(raw))
	for name, value := range raw {
		var version string
		if err := json.Unmarshal(value, &version); err != nil {
			// Nested metadata (objects, numbers) is not a pinned version.
			continue
		}
		out[name] = version
	}
	return out
}

// Diff computes the full outer join of two manifests, classifying every
// dependency name seen on either side. Results are sorted by name.
func Diff(base, comparison map[string]string) []ComponentDiff {
	names := make(map[string]struct{}, len(base)+len(comparison))
	for name := range base {
		names[name] = struct{}{}
	}
	for name := range comparison {
		names[name] = struct{}{}
	}

	diffs := make([]ComponentDiff, 0, len(names))
	for name := range names {
		baseVersion, inBase := base[name]
		compVersion, inComp := comparison[name]

		d := ComponentDiff{Name: name, BaseVersion: baseVersion, ComparisonVersion: compVersion}
		switch {
		case inBase && !inComp:
			d.Status = StatusRemoved
		case !inBase && inComp:
			d.Status = StatusAdded
		case sameVersion(baseVersion, compVersion):
			d.Status = StatusSame
		default:
			d.Status = StatusUpdated
		}
		diffs = append(diffs, d)
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Name < diffs[j].Name })
	return diffs
}

// sameVersion treats semver-equal strings (e.g. "v1.2.0" vs "1.2") as the
// same pin; anything non-semver falls back to string equality.
func sameVersion(a, b string) bool {
	if a == b {
		return true
	}
	ca, cb := canonicalSemver(a), canonicalSemver(b)
	return ca != "" && ca == cb
}

func canonicalSemver(v string) string {
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// Changed filters a diff to the entries worth rendering: Same entries are
// computed but suppressed from reports.
func Changed(diffs []ComponentDiff) []ComponentDiff {
	var out []ComponentDiff
	for _, d := range diffs {
		if d.Status != StatusSame {
			out = append(out, d)
		}
	}
	return out
}
