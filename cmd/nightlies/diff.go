package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scottopell/nightlies/internal/nightly"
	"github.com/scottopell/nightlies/internal/prompt"
	"github.com/scottopell/nightlies/internal/report"
)

var skipWeekendsFlag bool

var diffCmd = &cobra.Command{
	Use:          "diff [older-sha newer-sha]",
	Short:        "Show what changed between two nightly builds",
	Long:         "Shows the commits, file changes, and dependency manifest delta between two nightlies. With no arguments, picks the pair interactively.",
	Args:         cobra.RangeArgs(0, 2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := startup(ctx, cfg, effectivePages(), noFetchFlag, forceFetchFlag)
		if err != nil {
			return err
		}
		defer a.awaitSave()

		if a.repo == nil {
			return fmt.Errorf("diffing needs a local repository at %s", cfg.RepoPath)
		}

		var older, newer string
		switch len(args) {
		case 2:
			older, newer = args[0], args[1]
		case 1:
			return fmt.Errorf("diff takes either two shas or none")
		default:
			if !prompt.IsInteractive() {
				return fmt.Errorf("no shas given and stdin is not a terminal; pass two shas explicitly")
			}
			olderNightly, newerNightly, err := prompt.PickDiffPair(a.nightlies, skipWeekendsFlag)
			if err != nil {
				return err
			}
			older, newer = olderNightly.Sha, newerNightly.Sha
		}

		reporter := report.NewReporter(a.repo, report.Options{
			ManifestPath:   cfg.ManifestPath,
			GitHubProject:  cfg.GitHubProject,
			SpillThreshold: cfg.DiffSpillThreshold,
		})
		rep, err := reporter.Build(ctx, older, newer)
		if err != nil {
			return err
		}

		rep.OlderTag = tagForSha(a.nightlies, older)
		rep.NewerTag = tagForSha(a.nightlies, newer)

		report.Render(os.Stdout, rep)
		return nil
	},
}

func init() {
	diffCmd.Flags().BoolVar(&skipWeekendsFlag, "skip-weekends", false, "Hide weekend builds and treat Friday and Monday as adjacent")
}

// tagForSha labels a report side with its tag name when the sha belongs to
// a known nightly; bare shas render as-is.
func tagForSha(nightlies []nightly.Nightly, sha string) string {
	for i := range nightlies {
		if nightlies[i].Sha == sha {
			return nightlies[i].Tag.Name
		}
	}
	return ""
}
