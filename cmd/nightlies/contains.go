package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scottopell/nightlies/internal/nightly"
)

var containsCmd = &cobra.Command{
	Use:          "contains <sha>",
	Short:        "Find the first nightly whose build includes the given commit",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		changeSha := args[0]

		a, err := startup(ctx, cfg, effectivePages(), noFetchFlag, forceFetchFlag)
		if err != nil {
			return err
		}
		defer a.awaitSave()

		if a.repo == nil {
			return fmt.Errorf("ancestry lookup needs a local repository at %s", cfg.RepoPath)
		}

		locator := nightly.NewLocator(a.repo)
		found, err := locator.FirstContaining(ctx, a.nightlies, changeSha)
		switch {
		case errors.Is(err, nightly.ErrNoNightlyFound):
			return fmt.Errorf("%w; the change may be newer than every known nightly", err)
		case err != nil:
			return err
		}

		cmd.Printf("First nightly containing %s:\n", changeSha)
		cmd.Printf("  Tag: %s:%s\n", cfg.ImageRepository, found.Tag.Name)
		cmd.Printf("  Built from: %s (%s)\n", found.Sha, treeURL(found.Sha))
		cmd.Printf("  Pushed: %s\n", found.EffectiveTimestamp().Format("2006-01-02 15:04 UTC"))
		return nil
	},
}
