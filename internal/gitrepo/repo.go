// Package gitrepo answers commit questions against the local project
// checkout: authoritative timestamps, ancestry, two-dot commit logs, diff
// stats and file contents at a commit. All access is read-only except the
// debounced remote refresh in fetch.go.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// ErrCommitNotFound means an identifier could not be resolved to a commit
// reachable from the tracked remote branch. The usual cause is a stale
// local clone rather than a commit that never existed.
var ErrCommitNotFound = errors.New("commit not found on tracked branch")

// CommitSummary is one entry of a two-dot commit log.
type CommitSummary struct {
	Sha     string
	Subject string
	Author  string
	When    time.Time
}

// FileStat is one file's change size between two commits.
type FileStat struct {
	Path       string
	Insertions int
	Deletions  int
	Binary     bool
}

// Repository wraps a local clone plus the remote-tracking ref commits must
// be reachable from.
type Repository struct {
	path      string
	remoteRef string
	repo      *git.Repository
}

// Open opens the clone at path. remoteRef is the fully qualified
// remote-tracking ref, e.g. "refs/remotes/origin/main".
func Open(path, remoteRef string) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	return &Repository{path: path, remoteRef: remoteRef, repo: repo}, nil
}

func (r *Repository) Path() string {
	return r.path
}

// StaleAdvice is the remediation text shown when a commit cannot be found.
func (r *Repository) StaleAdvice() string {
	return fmt.Sprintf("your checkout at %s may be stale; consider running 'git -C %s fetch --all --tags'", r.path, r.path)
}

// resolve turns a (possibly short) identifier into a commit hash.
func (r *Repository) resolve(sha string) (plumbing.Hash, error) {
	h, err := r.repo.ResolveRevision(plumbing.Revision(sha))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %q is not a known object (%s)", ErrCommitNotFound, sha, r.StaleAdvice())
	}
	return *h, nil
}

func (r *Repository) tip() (plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.ReferenceName(r.remoteRef), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("reading %s: %w (%s)", r.remoteRef, err, r.StaleAdvice())
	}
	return ref.Hash(), nil
}

// CommitTimestamp resolves sha and returns its committer time. The commit
// must be reachable from the remote-tracking ref; an unreachable or unknown
// identifier yields ErrCommitNotFound with stale-clone advice.
func (r *Repository) CommitTimestamp(ctx context.Context, sha string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	hash, err := r.resolve(sha)
	if err != nil {
		return time.Time{}, err
	}
	tip, err := r.tip()
	if err != nil {
		return time.Time{}, err
	}

	reachable, err := r.walkContains(ctx, hash, tip)
	if err != nil {
		return time.Time{}, err
	}
	if !reachable {
		return time.Time{}, fmt.Errorf("%w: %q is not reachable from %s (%s)", ErrCommitNotFound, sha, r.remoteRef, r.StaleAdvice())
	}

	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading commit %q: %w", sha, err)
	}
	return commit.Committer.When.UTC(), nil
}

// IsAncestor reports whether ancestor is reachable by walking parent edges
// backward from descendant.
func (r *Repository) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ancestorHash, err := r.resolve(ancestor)
	if err != nil {
		return false, err
	}
	descendantHash, err := r.resolve(descendant)
	if err != nil {
		return false, err
	}
	return r.walkContains(ctx, ancestorHash, descendantHash)
}

// walkContains walks ancestors of `from` newest-first and reports whether
// `target` is visited. The walk stops at the first match; the visited set
// grows only as far as the walk actually went.
func (r *Repository) walkContains(ctx context.Context, target, from plumbing.Hash) (bool, error) {
	if target == from {
		return true, nil
	}

	start, err := r.repo.CommitObject(from)
	if err != nil {
		return false, fmt.Errorf("loading commit %s: %w", from, err)
	}

	found := false
	visited := 0
	iter := object.NewCommitIterCTime(start, nil, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		visited++
		if c.Hash == target {
			found = true
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("walking ancestors of %s: %w", from, err)
	}

	slog.DebugContext(ctx, "Ancestry walk finished",
		"target", target.String()[:8], "from", from.String()[:8],
		"visited", visited, "found", found)
	return found, nil
}

// LogRange returns the non-merge commits reachable from newer but not from
// older (git's two-dot range), newest first.
func (r *Repository) LogRange(ctx context.Context, older, newer string) ([]CommitSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	olderHash, err := r.resolve(older)
	if err != nil {
		return nil, err
	}
	newerHash, err := r.resolve(newer)
	if err != nil {
		return nil, err
	}

	excluded, err := r.ancestorSet(ctx, olderHash)
	if err != nil {
		return nil, err
	}

	start, err := r.repo.CommitObject(newerHash)
	if err != nil {
		return nil, fmt.Errorf("loading commit %q: %w", newer, err)
	}

	var summaries []CommitSummary
	iter := object.NewCommitIterCTime(start, excluded, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.NumParents() > 1 {
			return nil
		}
		summaries = append(summaries, CommitSummary{
			Sha:     c.Hash.String()[:8],
			Subject: firstLine(c.Message),
			Author:  c.Author.Name,
			When:    c.Committer.When.UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking range %s..%s: %w", older, newer, err)
	}
	return summaries, nil
}

// ancestorSet collects every ancestor of older so the range walk can
// exclude them. The set must be complete: a branch in the range can fork
// arbitrarily far below older, and any hole here would let the walk from
// newer descend into older's own history.
func (r *Repository) ancestorSet(ctx context.Context, older plumbing.Hash) (map[plumbing.Hash]bool, error) {
	start, err := r.repo.CommitObject(older)
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", older, err)
	}

	set := make(map[plumbing.Hash]bool)
	iter := object.NewCommitIterCTime(start, nil, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		set[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collecting ancestors of %s: %w", older, err)
	}
	return set, nil
}

// CommitStats returns the insertion/deletion totals of one commit against
// its first parent.
func (r *Repository) CommitStats(ctx context.Context, sha string) (insertions, deletions int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	hash, err := r.resolve(sha)
	if err != nil {
		return 0, 0, err
	}
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return 0, 0, fmt.Errorf("loading commit %q: %w", sha, err)
	}

	currentTree, err := commit.Tree()
	if err != nil {
		return 0, 0, fmt.Errorf("loading tree of %q: %w", sha, err)
	}

	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return 0, 0, fmt.Errorf("loading parent of %q: %w", sha, err)
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return 0, 0, fmt.Errorf("loading parent tree of %q: %w", sha, err)
		}
	}

	stats, err := r.treeFileStats(ctx, parentTree, currentTree)
	if err != nil {
		return 0, 0, err
	}
	for _, st := range stats {
		insertions += st.Insertions
		deletions += st.Deletions
	}
	return insertions, deletions, nil
}

// DiffStat returns per-file change sizes between two commits. Binary files
// carry the Binary flag with zero line counts.
func (r *Repository) DiffStat(ctx context.Context, older, newer string) ([]FileStat, error) {
	olderTree, err := r.treeAt(older)
	if err != nil {
		return nil, err
	}
	newerTree, err := r.treeAt(newer)
	if err != nil {
		return nil, err
	}
	return r.treeFileStats(ctx, olderTree, newerTree)
}

func (r *Repository) treeAt(sha string) (*object.Tree, error) {
	hash, err := r.resolve(sha)
	if err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("loading commit %q: %w", sha, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading tree of %q: %w", sha, err)
	}
	return tree, nil
}

func (r *Repository) treeFileStats(ctx context.Context, from, to *object.Tree) ([]FileStat, error) {
	changes, err := object.DiffTreeWithOptions(ctx, from, to, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diffing trees: %w", err)
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing patch: %w", err)
	}

	var stats []FileStat
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		path := ""
		if to != nil {
			path = to.Path()
		} else if from != nil {
			path = from.Path()
		}

		st := FileStat{Path: path, Binary: fp.IsBinary()}
		if !fp.IsBinary() {
			for _, chunk := range fp.Chunks() {
				lines := strings.Count(chunk.Content(), "\n")
				if len(chunk.Content()) > 0 && !strings.HasSuffix(chunk.Content(), "\n") {
					lines++
				}
				switch chunk.Type() {
				case fdiff.Add:
					st.Insertions += lines
				case fdiff.Delete:
					st.Deletions += lines
				}
			}
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// Patch returns the full textual patch between two commits.
func (r *Repository) Patch(ctx context.Context, older, newer string) (string, error) {
	olderTree, err := r.treeAt(older)
	if err != nil {
		return "", err
	}
	newerTree, err := r.treeAt(newer)
	if err != nil {
		return "", err
	}
	changes, err := object.DiffTreeWithOptions(ctx, olderTree, newerTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return "", fmt.Errorf("diffing trees: %w", err)
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return "", fmt.Errorf("computing patch: %w", err)
	}
	return patch.String(), nil
}

// FileAt returns the contents of path as of the given commit.
func (r *Repository) FileAt(ctx context.Context, sha, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tree, err := r.treeAt(sha)
	if err != nil {
		return nil, err
	}
	file, err := tree.File(filepath.ToSlash(path))
	if err != nil {
		return nil, fmt.Errorf("reading %s at %s: %w", path, sha, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("reading %s at %s: %w", path, sha, err)
	}
	return []byte(contents), nil
}

func firstLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(line)
}
