package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scottopell/nightlies/internal/config"
	"github.com/scottopell/nightlies/internal/nightly"
)

var cfg *config.Config

var (
	pagesFlag      int
	noFetchFlag    bool
	forceFetchFlag bool

	allTagsFlag bool
	digestFlag  bool
	shaFlag     string
	fromFlag    string
	toFlag      string
	recentFlag  int
)

// defaultListWindow is how far back the default listing reaches.
const defaultListWindow = 7 * 24 * time.Hour

var rootCmd = &cobra.Command{
	Use:          "nightlies",
	Short:        "List and correlate agent nightly container builds",
	Long:         "Lists recent agent nightly images, correlates each build with the commit it was built from, and answers which build first contains a change.",
	SilenceUsage: true,
}

func init() {
	// Assigned here rather than in the composite literal to avoid an
	// initialization cycle: the closure references effectivePages, which
	// references rootCmd.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := startup(ctx, cfg, effectivePages(), noFetchFlag, forceFetchFlag)
		if err != nil {
			return err
		}
		defer a.awaitSave()

		selected, err := selectNightlies(a.nightlies)
		if err != nil {
			return err
		}

		for i := range selected {
			printNightly(cmd, &selected[i])
		}
		return nil
	}

	rootCmd.PersistentFlags().IntVar(&pagesFlag, "pages", 0, "Number of registry pages to fetch (default from config)")
	rootCmd.PersistentFlags().BoolVar(&noFetchFlag, "no-fetch", false, "Skip refreshing the local repository")
	rootCmd.PersistentFlags().BoolVar(&forceFetchFlag, "force-fetch", false, "Refresh the local repository even inside the cooldown window")

	rootCmd.Flags().BoolVarP(&allTagsFlag, "all-tags", "a", false, "Include all tag roles, not just the primary one")
	rootCmd.Flags().BoolVarP(&digestFlag, "digest", "d", false, "Print the image digest for each tag")
	rootCmd.Flags().StringVar(&shaFlag, "sha", "", "Show nightlies whose tag contains this sha")
	rootCmd.Flags().StringVarP(&fromFlag, "from", "f", "", "Start of the query range (inclusive), RFC3339 or YYYY-MM-DDTHH:MM:SS")
	rootCmd.Flags().StringVarP(&toFlag, "to", "t", "", "End of the query range (inclusive), defaults to now")
	rootCmd.Flags().IntVarP(&recentFlag, "recent", "r", 0, "Show the most recent N nightlies")

	rootCmd.AddCommand(containsCmd)
	rootCmd.AddCommand(diffCmd)
}

// effectivePages resolves the registry page budget: an explicit --pages
// wins, otherwise the configured MaxPages (file or NIGHTLIES_MAX_PAGES)
// applies. Flags are registered before config loads, so the flag cannot
// simply default to the config value.
func effectivePages() int {
	if f := rootCmd.PersistentFlags().Lookup("pages"); f != nil && f.Changed && pagesFlag > 0 {
		return pagesFlag
	}
	return cfg.MaxPages
}

// selectNightlies applies the query flags: an explicit range, a sha lookup,
// a most-recent-N request, or the default seven-day window.
func selectNightlies(nightlies []nightly.Nightly) ([]nightly.Nightly, error) {
	filtered := filterRole(nightlies)

	switch {
	case fromFlag != "":
		from, err := parseQueryTime(fromFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid --from value: %w", err)
		}
		to := time.Time{}
		if toFlag != "" {
			if to, err = parseQueryTime(toFlag); err != nil {
				return nil, fmt.Errorf("invalid --to value: %w", err)
			}
		}
		out := nightly.FilterRange(filtered, from, to)
		nightly.SortNewestFirst(out)
		return out, nil

	case shaFlag != "":
		var out []nightly.Nightly
		for _, n := range filtered {
			if strings.Contains(n.Tag.Name, shaFlag) {
				out = append(out, n)
			}
		}
		nightly.SortNewestFirst(out)
		return out, nil

	case recentFlag > 0:
		nightly.SortNewestFirst(filtered)
		if len(filtered) > recentFlag {
			filtered = filtered[:recentFlag]
		}
		return filtered, nil

	default:
		out := nightly.FilterRange(filtered, time.Now().UTC().Add(-defaultListWindow), time.Time{})
		nightly.SortNewestFirst(out)
		return out, nil
	}
}

func filterRole(nightlies []nightly.Nightly) []nightly.Nightly {
	if allTagsFlag {
		return nightlies
	}
	var out []nightly.Nightly
	for _, n := range nightlies {
		if strings.HasSuffix(n.Tag.Name, cfg.PrimaryRoleSuffix) {
			out = append(out, n)
		}
	}
	return out
}

// parseQueryTime accepts RFC3339 and the bare local-style layout; the bare
// form is read as UTC.
func parseQueryTime(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02T15:04:05", value)
}

func printNightly(cmd *cobra.Command, n *nightly.Nightly) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tag: %s:%s, Last Pushed: %s",
		cfg.ImageRepository, n.Tag.Name, n.EffectiveTimestamp().Format(time.RFC3339))
	if digestFlag && n.Tag.Digest != "" {
		fmt.Fprintf(&sb, ", Image Digest: %s", n.Tag.Digest)
	}
	fmt.Fprintf(&sb, ", GitHub URL: %s", treeURL(n.Sha))
	cmd.Println(sb.String())
}

func treeURL(sha string) string {
	return fmt.Sprintf("https://github.com/%s/tree/%s", cfg.GitHubProject, sha)
}
