package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"territory-admin/aggregate"
	"territory-admin/dblayer"
	"territory-admin/dbtypes"

	"github.com/spf13/cobra"
)

var errConfirmationRequired = errors.New("refusing to delete across all users without --yes")

var (
	filterUser   string
	filterType   string
	filterSearch string
	confirmAll   bool
)

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&filterUser, "user", "", "Only records owned by this user ID.")
	cmd.Flags().StringVar(&filterType, "type", aggregate.AllTypes, "Only records of this type.")
	cmd.Flags().StringVar(&filterSearch, "search", "", "Case-insensitive text search.")
}

var cmdFeed = &cobra.Command{
	Use:   "feed [command]",
	Short: "Manage feed items",
}

var cmdFeedList = &cobra.Command{
	Use:  "list",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			feed, err := aggregate.LoadFeedWithUsers(ctx, e.db, filterUser)
			if err != nil {
				return err
			}
			aggregate.SortFeed(feed)
			feed = aggregate.FilterFeed(feed, filterType, filterSearch)

			fmt.Fprintln(e.out, "ID\tDATE\tTYPE\tRARITY\tUSER\tXP\tTITLE")
			for _, f := range feed {
				fmt.Fprintf(e.out, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					f.Item.ID,
					formatTime(f.Item.Date),
					dbtypes.FeedTypeDisplayName(f.Item.Type),
					dbtypes.RarityDisplayName(f.Item.Rarity),
					aggregate.DisplayName(f.User),
					f.Item.XPEarned,
					f.Item.Title)
			}
			fmt.Fprintf(e.out, "\n%d items\t%d xp\n", len(feed), aggregate.TotalFeedXP(feed))
			return nil
		})
	},
}

var (
	feedTitle       string
	feedSubtitle    string
	feedUser        string
	feedType        string
	feedRarity      string
	feedXP          int64
	feedRelatedUser string
	feedPersonal    bool
)

var cmdFeedCreate = &cobra.Command{
	Use:  "create",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			if !slices.Contains(dbtypes.FeedTypes, feedType) {
				return fmt.Errorf("unknown feed type %q; want one of %v", feedType, dbtypes.FeedTypes)
			}
			if !slices.Contains(dbtypes.Rarities, feedRarity) {
				return fmt.Errorf("unknown rarity %q; want one of %v", feedRarity, dbtypes.Rarities)
			}
			if feedXP < 0 {
				return errors.New("xp must not be negative")
			}

			f := dbtypes.NewFeedItem(feedTitle, feedSubtitle, feedUser)
			f.Type = feedType
			f.Rarity = feedRarity
			f.XPEarned = feedXP
			f.RelatedUserName = feedRelatedUser
			f.IsPersonal = feedPersonal
			if err := f.Validate(); err != nil {
				return err
			}

			id, err := e.db.CreateFeedItem(ctx, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, id)
			return nil
		})
	},
}

var cmdFeedUpdate = &cobra.Command{
	Use:  "update FEED_ITEM_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			f, found, err := e.db.GetFeedItem(ctx, args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("feed item %q: %w", args[0], dblayer.ErrNotFound)
			}

			flags := cmd.Flags()
			if flags.Changed("title") {
				f.Title = feedTitle
			}
			if flags.Changed("subtitle") {
				f.Subtitle = feedSubtitle
			}
			if flags.Changed("user") {
				f.UserID = feedUser
			}
			if flags.Changed("type") {
				if !slices.Contains(dbtypes.FeedTypes, feedType) {
					return fmt.Errorf("unknown feed type %q; want one of %v", feedType, dbtypes.FeedTypes)
				}
				f.Type = feedType
			}
			if flags.Changed("rarity") {
				if !slices.Contains(dbtypes.Rarities, feedRarity) {
					return fmt.Errorf("unknown rarity %q; want one of %v", feedRarity, dbtypes.Rarities)
				}
				f.Rarity = feedRarity
			}
			if flags.Changed("xp") {
				if feedXP < 0 {
					return errors.New("xp must not be negative")
				}
				f.XPEarned = feedXP
			}
			if flags.Changed("related-user") {
				f.RelatedUserName = feedRelatedUser
			}
			if flags.Changed("personal") {
				f.IsPersonal = feedPersonal
			}
			if err := f.Validate(); err != nil {
				return err
			}

			return e.db.UpdateFeedItem(ctx, f)
		})
	},
}

var cmdFeedDelete = &cobra.Command{
	Use:  "delete FEED_ITEM_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			return e.db.DeleteFeedItem(ctx, args[0])
		})
	},
}

var cmdFeedDeleteAll = &cobra.Command{
	Use:  "delete-all",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			if filterUser == "" && !confirmAll {
				return errConfirmationRequired
			}
			n, err := e.runner.DeleteFeedItems(ctx, filterUser)
			fmt.Fprintf(e.out, "deleted:\t%d\n", n)
			return err
		})
	},
}

var cmdActivities = &cobra.Command{
	Use:   "activities [command]",
	Short: "Inspect and delete activity sessions",
}

var cmdActivitiesList = &cobra.Command{
	Use:  "list",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			activities, err := aggregate.LoadActivitiesWithUsers(ctx, e.db, filterUser)
			if err != nil {
				return err
			}
			aggregate.SortActivities(activities)
			filtered := aggregate.FilterActivities(activities, filterType, filterSearch)

			fmt.Fprintln(e.out, "ID\tENDED\tTYPE\tUSER\tDISTANCE\tDURATION\tXP\tNEW CELLS")
			for _, a := range filtered {
				fmt.Fprintf(e.out, "%s\t%s\t%s\t%s\t%.2f km\t%s\t%d\t%d\n",
					a.Activity.ID,
					formatTime(a.Activity.EndDate),
					a.Activity.ActivityType,
					aggregate.DisplayName(a.User),
					a.Activity.DistanceMeters/1000,
					aggregate.FormatDuration(a.Activity.DurationSeconds),
					a.Activity.XPBreakdown.Total,
					a.Activity.TerritoryStats.NewCellsCount)
			}
			fmt.Fprintf(e.out, "\n%d sessions\t%d xp\ttypes: %v\n",
				len(filtered), aggregate.TotalActivityXP(filtered), aggregate.ActivityTypes(activities))
			return nil
		})
	},
}

var cmdActivitiesDelete = &cobra.Command{
	Use:   "delete ACTIVITY_ID",
	Short: "Delete a session and its route and territory subcollections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			return e.runner.DeleteActivityWithChildren(ctx, args[0])
		})
	},
}

var cmdActivitiesDeleteAll = &cobra.Command{
	Use:  "delete-all",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			if filterUser == "" && !confirmAll {
				return errConfirmationRequired
			}
			n, err := e.runner.DeleteActivities(ctx, filterUser)
			fmt.Fprintf(e.out, "deleted:\t%d\n", n)
			return err
		})
	},
}

func addDeleteAllFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&filterUser, "user", "", "Only records owned by this user ID.")
	cmd.Flags().BoolVar(&confirmAll, "yes", false, "Confirm deleting for every user when --user is not given.")
}

func init() {
	addFilterFlags(cmdFeedList)
	addFilterFlags(cmdActivitiesList)
	addDeleteAllFlags(cmdFeedDeleteAll)
	addDeleteAllFlags(cmdActivitiesDeleteAll)

	for _, cmd := range []*cobra.Command{cmdFeedCreate, cmdFeedUpdate} {
		cmd.Flags().StringVar(&feedTitle, "title", "", "Title.")
		cmd.Flags().StringVar(&feedSubtitle, "subtitle", "", "Subtitle.")
		cmd.Flags().StringVar(&feedUser, "user", "", "Owning user ID.")
		cmd.Flags().StringVar(&feedType, "type", dbtypes.FeedTypeOther, "Item type.")
		cmd.Flags().StringVar(&feedRarity, "rarity", dbtypes.RarityCommon, "Rarity.")
		cmd.Flags().Int64Var(&feedXP, "xp", 0, "XP earned.")
		cmd.Flags().StringVar(&feedRelatedUser, "related-user", "", "Name of a related user.")
		cmd.Flags().BoolVar(&feedPersonal, "personal", true, "Show only to the owning user?")
	}

	cmdFeed.AddCommand(cmdFeedList, cmdFeedCreate, cmdFeedUpdate, cmdFeedDelete, cmdFeedDeleteAll)
	cmdActivities.AddCommand(cmdActivitiesList, cmdActivitiesDelete, cmdActivitiesDeleteAll)
}
