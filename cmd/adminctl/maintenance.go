package main

import (
	"context"
	"errors"
	"fmt"

	"territory-admin/workflow"

	"github.com/spf13/cobra"
)

func printCounts(e *env, c workflow.ResetCounts) {
	fmt.Fprintf(e.out, "users reset:\t%d\n", c.UsersReset)
	fmt.Fprintf(e.out, "feed items deleted:\t%d\n", c.FeedItems)
	fmt.Fprintf(e.out, "activities deleted:\t%d\n", c.Activities)
	fmt.Fprintf(e.out, "territories deleted:\t%d\n", c.Territories)
}

var cmdRanking = &cobra.Command{
	Use:   "ranking [command]",
	Short: "Weekly ranking",
}

var cmdRankingClose = &cobra.Command{
	Use:   "close",
	Short: "Store every user's current XP rank as their previous rank",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			users, err := e.db.ListUsers(ctx)
			if err != nil {
				return err
			}
			ranked, err := e.runner.CloseWeeklyRanking(ctx, users)
			if err != nil {
				return err
			}

			fmt.Fprintln(e.out, "RANK\tID\tNAME\tXP")
			for _, u := range ranked {
				fmt.Fprintf(e.out, "%d\t%s\t%s\t%d\n", *u.PreviousRank, u.ID, u.DisplayName, u.XP)
			}
			return nil
		})
	},
}

var wipeConfirm bool

var cmdWipe = &cobra.Command{
	Use:   "wipe",
	Short: "Reset every user's progress and delete all feed, activity, and territory data",
	Long: `wipe resets every user to level 1 with no XP, then deletes the whole feed,
every activity session, and every territory.  Accounts and follow
relationships are kept.  It cannot be undone.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !wipeConfirm {
			return errors.New("refusing to wipe without --yes")
		}
		return run(cmd, true, func(ctx context.Context, e *env) error {
			counts, err := e.runner.MasterWipeAllData(ctx)
			printCounts(e, counts)
			return err
		})
	},
}

func init() {
	cmdWipe.Flags().BoolVar(&wipeConfirm, "yes", false, "Really wipe everything.")

	cmdRanking.AddCommand(cmdRankingClose)
}
