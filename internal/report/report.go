// Package report builds and renders the diff report between two nightly
// builds: commit log, per-file change sizes, and the dependency manifest
// delta.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/scottopell/nightlies/internal/gitrepo"
	"github.com/scottopell/nightlies/internal/manifest"
)

// RepoSource is the slice of repository access the reporter needs.
type RepoSource interface {
	LogRange(ctx context.Context, older, newer string) ([]gitrepo.CommitSummary, error)
	CommitStats(ctx context.Context, sha string) (insertions, deletions int, err error)
	DiffStat(ctx context.Context, older, newer string) ([]gitrepo.FileStat, error)
	FileAt(ctx context.Context, sha, path string) ([]byte, error)
	Patch(ctx context.Context, older, newer string) (string, error)
}

// CommitLine is one commit of the report, with stats when they could be
// gathered. StatsKnown stays false when the stat lookup failed; the commit
// still counts.
type CommitLine struct {
	gitrepo.CommitSummary
	Insertions int
	Deletions  int
	StatsKnown bool
	PRLink     string
}

// Report is the structured diff between two builds.
type Report struct {
	OlderSha string
	NewerSha string
	OlderTag string
	NewerTag string

	Commits     []CommitLine
	Files       []gitrepo.FileStat
	BinaryCount int

	// Components holds the full outer join including Same entries;
	// rendering suppresses Same. ManifestError carries the inline
	// degradation notice when either manifest could not be read.
	Components    []manifest.ComponentDiff
	ManifestError string

	// Paths of the spilled full patch and summary, set only when the diff
	// exceeded the spill threshold.
	PatchPath   string
	SummaryPath string
}

// Options configures a Reporter.
type Options struct {
	ManifestPath   string
	GitHubProject  string
	SpillThreshold int
	SpillDir       string
}

// Reporter assembles diff reports. Git lookups run sequentially: the local
// repository is a single resource, not something to fan out against.
type Reporter struct {
	repo RepoSource
	opts Options
}

func NewReporter(repo RepoSource, opts Options) *Reporter {
	if opts.SpillDir == "" {
		opts.SpillDir = os.TempDir()
	}
	return &Reporter{repo: repo, opts: opts}
}

var prRefPattern = regexp.MustCompile(`\(#(\d+)\)\s*$`)

// Build produces the report for older..newer. Manifest trouble degrades
// that one section; per-commit stat trouble degrades single lines.
func (r *Reporter) Build(ctx context.Context, older, newer string) (*Report, error) {
	rep := &Report{OlderSha: older, NewerSha: newer}

	commits, err := r.repo.LogRange(ctx, older, newer)
	if err != nil {
		return nil, fmt.Errorf("building commit log: %w", err)
	}
	for _, c := range commits {
		line := CommitLine{CommitSummary: c, PRLink: r.prLink(c.Subject)}
		ins, del, err := r.repo.CommitStats(ctx, c.Sha)
		if err != nil {
			slog.WarnContext(ctx, "Commit stats unavailable", "sha", c.Sha, "error", err)
		} else {
			line.Insertions, line.Deletions, line.StatsKnown = ins, del, true
		}
		rep.Commits = append(rep.Commits, line)
	}

	stats, err := r.repo.DiffStat(ctx, older, newer)
	if err != nil {
		return nil, fmt.Errorf("building file summary: %w", err)
	}
	for _, st := range stats {
		if st.Binary {
			rep.BinaryCount++
			continue
		}
		rep.Files = append(rep.Files, st)
	}

	r.buildManifestDelta(ctx, rep, older, newer)
	r.spillLargeDiff(ctx, rep, older, newer)

	return rep, nil
}

func (r *Reporter) buildManifestDelta(ctx context.Context, rep *Report, older, newer string) {
	load := func(sha string) (map[string]string, error) {
		data, err := r.repo.FileAt(ctx, sha, r.opts.ManifestPath)
		if err != nil {
			return nil, err
		}
		return manifest.Parse(data)
	}

	base, err := load(older)
	if err != nil {
		rep.ManifestError = fmt.Sprintf("dependency delta unavailable: %v", err)
		slog.WarnContext(ctx, "Skipping dependency delta", "sha", older, "error", err)
		return
	}
	comparison, err := load(newer)
	if err != nil {
		rep.ManifestError = fmt.Sprintf("dependency delta unavailable: %v", err)
		slog.WarnContext(ctx, "Skipping dependency delta", "sha", newer, "error", err)
		return
	}

	rep.Components = manifest.Diff(base, comparison)
}

// spillLargeDiff writes the full patch and a plain summary to well-known
// temp paths when the diff is too big for a terminal. Best effort only.
func (r *Reporter) spillLargeDiff(ctx context.Context, rep *Report, older, newer string) {
	if r.opts.SpillThreshold <= 0 {
		return
	}

	patch, err := r.repo.Patch(ctx, older, newer)
	if err != nil {
		slog.WarnContext(ctx, "Could not compute full patch", "error", err)
		return
	}
	if strings.Count(patch, "\n") <= r.opts.SpillThreshold {
		return
	}

	patchPath := filepath.Join(r.opts.SpillDir, "nightlies-diff.patch")
	if err := os.WriteFile(patchPath, []byte(patch), 0o644); err != nil {
		slog.WarnContext(ctx, "Could not write spilled patch", "path", patchPath, "error", err)
		return
	}
	rep.PatchPath = patchPath

	summaryPath := filepath.Join(r.opts.SpillDir, "nightlies-diff-summary.txt")
	var sb strings.Builder
	renderPlain(&sb, rep)
	if err := os.WriteFile(summaryPath, []byte(sb.String()), 0o644); err != nil {
		slog.WarnContext(ctx, "Could not write spilled summary", "path", summaryPath, "error", err)
		return
	}
	rep.SummaryPath = summaryPath
}

func (r *Reporter) prLink(subject string) string {
	m := prRefPattern.FindStringSubmatch(subject)
	if m == nil || r.opts.GitHubProject == "" {
		return ""
	}
	return fmt.Sprintf("https://github.com/%s/pull/%s", r.opts.GitHubProject, m[1])
}
