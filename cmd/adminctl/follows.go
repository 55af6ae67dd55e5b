package main

import (
	"context"
	"fmt"

	"territory-admin/dbtypes"

	"github.com/spf13/cobra"
)

var cmdFollows = &cobra.Command{
	Use:   "follows [command]",
	Short: "Inspect and edit follow relationships",
}

func printEdges(e *env, edges []*dbtypes.FollowRelationship) {
	fmt.Fprintln(e.out, "USER ID\tNAME\tSINCE")
	for _, edge := range edges {
		since := "-"
		if edge.FollowedAt != nil {
			since = formatTime(*edge.FollowedAt)
		}
		fmt.Fprintf(e.out, "%s\t%s\t%s\n", edge.ID, edge.DisplayName, since)
	}
}

var cmdFollowsFollowers = &cobra.Command{
	Use:  "followers USER_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			edges, err := e.db.ListFollowers(ctx, args[0])
			if err != nil {
				return err
			}
			printEdges(e, edges)
			return nil
		})
	},
}

var cmdFollowsFollowing = &cobra.Command{
	Use:  "following USER_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			edges, err := e.db.ListFollowing(ctx, args[0])
			if err != nil {
				return err
			}
			printEdges(e, edges)
			return nil
		})
	},
}

var cmdFollowsFollow = &cobra.Command{
	Use:  "follow USER_ID TARGET_ID",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			user, err := mustGetUser(ctx, e.db, args[0])
			if err != nil {
				return err
			}
			target, err := mustGetUser(ctx, e.db, args[1])
			if err != nil {
				return err
			}
			return e.runner.Follow(ctx, user, target)
		})
	},
}

var cmdFollowsUnfollow = &cobra.Command{
	Use:  "unfollow USER_ID TARGET_ID",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			return e.runner.Unfollow(ctx, args[0], args[1])
		})
	},
}

var cmdFollowsRemoveFollower = &cobra.Command{
	Use:  "remove-follower USER_ID FOLLOWER_ID",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			return e.runner.RemoveFollower(ctx, args[0], args[1])
		})
	},
}

func init() {
	cmdFollows.AddCommand(
		cmdFollowsFollowers,
		cmdFollowsFollowing,
		cmdFollowsFollow,
		cmdFollowsUnfollow,
		cmdFollowsRemoveFollower,
	)
}
