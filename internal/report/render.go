package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/scottopell/nightlies/internal/manifest"
)

// maxRenderedCommits keeps terminal output readable; the full list is
// always available in the spilled summary.
const maxRenderedCommits = 25

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	tagStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Render writes the styled report.
func Render(w io.Writer, rep *Report) {
	newerLabel := rep.NewerTag
	if newerLabel == "" {
		newerLabel = rep.NewerSha
	}
	olderLabel := rep.OlderTag
	if olderLabel == "" {
		olderLabel = rep.OlderSha
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("┌─ Diff between %s and %s",
		tagStyle.Render(newerLabel), tagStyle.Render(olderLabel))))

	fmt.Fprintf(w, "│ %d commits:\n", len(rep.Commits))
	for i, c := range rep.Commits {
		if i == maxRenderedCommits {
			fmt.Fprintln(w, "│   …")
			break
		}
		renderCommit(w, c)
	}

	fmt.Fprintln(w, "│")
	fmt.Fprintln(w, "│ File summary:")
	renderFiles(w, rep)

	renderComponents(w, rep)

	if rep.PatchPath != "" {
		fmt.Fprintln(w, "│")
		fmt.Fprintf(w, "│ Large diff: full patch at %s\n", rep.PatchPath)
		if rep.SummaryPath != "" {
			fmt.Fprintf(w, "│ Summary copy at %s\n", rep.SummaryPath)
		}
	}

	fmt.Fprintln(w, "└─────────────────────────────────────")
}

func renderCommit(w io.Writer, c CommitLine) {
	line := fmt.Sprintf("│   %s %s", c.Sha, c.Subject)
	if c.StatsKnown {
		line += " " + dimStyle.Render(fmt.Sprintf("(+%d, -%d)", c.Insertions, c.Deletions))
	}
	if c.PRLink != "" {
		line += " " + dimStyle.Render(c.PRLink)
	}
	fmt.Fprintln(w, line)
}

func renderFiles(w io.Writer, rep *Report) {
	if len(rep.Files) == 0 && rep.BinaryCount == 0 {
		fmt.Fprintln(w, "│   (no file changes)")
		return
	}
	for _, f := range rep.Files {
		fmt.Fprintf(w, "│   %s | +%d -%d\n", f.Path, f.Insertions, f.Deletions)
	}
	if rep.BinaryCount > 0 {
		fmt.Fprintf(w, "│   (%d binary files changed)\n", rep.BinaryCount)
	}
}

func renderComponents(w io.Writer, rep *Report) {
	fmt.Fprintln(w, "│")
	fmt.Fprintln(w, "│ Dependency delta:")

	if rep.ManifestError != "" {
		fmt.Fprintf(w, "│   %s\n", rep.ManifestError)
		return
	}

	changed := manifest.Changed(rep.Components)
	if len(changed) == 0 {
		fmt.Fprintln(w, "│   (no dependency changes)")
		return
	}

	var buf strings.Builder
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, d := range changed {
		switch d.Status {
		case manifest.StatusUpdated:
			fmt.Fprintf(tw, "%s\t%s → %s\t%s\n", d.Name, d.BaseVersion, d.ComparisonVersion, color.YellowString("updated"))
		case manifest.StatusAdded:
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.ComparisonVersion, color.GreenString("added"))
		case manifest.StatusRemoved:
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.BaseVersion, color.RedString("removed"))
		}
	}
	_ = tw.Flush()
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		fmt.Fprintf(w, "│   %s\n", line)
	}
}

// renderPlain writes the unstyled variant used for the spilled summary file.
func renderPlain(w io.Writer, rep *Report) {
	fmt.Fprintf(w, "Diff between %s and %s\n\n", rep.NewerSha, rep.OlderSha)

	fmt.Fprintf(w, "%d commits:\n", len(rep.Commits))
	for _, c := range rep.Commits {
		if c.StatsKnown {
			fmt.Fprintf(w, "  %s %s (+%d, -%d)\n", c.Sha, c.Subject, c.Insertions, c.Deletions)
		} else {
			fmt.Fprintf(w, "  %s %s\n", c.Sha, c.Subject)
		}
	}

	fmt.Fprintln(w, "\nFile summary:")
	for _, f := range rep.Files {
		fmt.Fprintf(w, "  %s | +%d -%d\n", f.Path, f.Insertions, f.Deletions)
	}
	if rep.BinaryCount > 0 {
		fmt.Fprintf(w, "  (%d binary files changed)\n", rep.BinaryCount)
	}

	if rep.ManifestError != "" {
		fmt.Fprintf(w, "\nDependency delta: %s\n", rep.ManifestError)
		return
	}
	changed := manifest.Changed(rep.Components)
	if len(changed) > 0 {
		fmt.Fprintln(w, "\nDependency delta:")
		for _, d := range changed {
			switch d.Status {
			case manifest.StatusUpdated:
				fmt.Fprintf(w, "  %s %s -> %s (updated)\n", d.Name, d.BaseVersion, d.ComparisonVersion)
			case manifest.StatusAdded:
				fmt.Fprintf(w, "  %s %s (added)\n", d.Name, d.ComparisonVersion)
			case manifest.StatusRemoved:
				fmt.Fprintf(w, "  %s %s (removed)\n", d.Name, d.BaseVersion)
			}
		}
	}
}
