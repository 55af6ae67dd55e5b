package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"territory-admin/aggregate"
	"territory-admin/dblayer"
	"territory-admin/dbtypes"

	"github.com/spf13/cobra"
)

var cmdUsers = &cobra.Command{
	Use:   "users [command]",
	Short: "Manage player accounts",
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func optString(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func optInt(i *int64) string {
	if i == nil {
		return "-"
	}
	return fmt.Sprint(*i)
}

// mustGetUser turns an absent user into an error.
func mustGetUser(ctx context.Context, db *dblayer.DB, id string) (*dbtypes.User, error) {
	u, found, err := db.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("user %q: %w", id, dblayer.ErrNotFound)
	}
	return u, nil
}

var cmdUsersList = &cobra.Command{
	Use:  "list",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			users, err := e.db.ListUsers(ctx)
			if err != nil {
				return err
			}
			aggregate.SortUsers(users)

			fmt.Fprintln(e.out, "ID\tNAME\tLEVEL\tXP\tLAST RANK\tJOINED")
			for _, u := range users {
				fmt.Fprintf(e.out, "%s\t%s\t%d\t%d\t%s\t%s\n", u.ID, u.DisplayName, u.Level, u.XP, optInt(u.PreviousRank), formatTime(u.JoinedAt))
			}
			return nil
		})
	},
}

func printUser(e *env, u *dbtypes.User) {
	fmt.Fprintf(e.out, "id:\t%s\n", u.ID)
	fmt.Fprintf(e.out, "displayName:\t%s\n", u.DisplayName)
	fmt.Fprintf(e.out, "email:\t%s\n", optString(u.Email))
	fmt.Fprintf(e.out, "avatarURL:\t%s\n", optString(u.AvatarURL))
	fmt.Fprintf(e.out, "joinedAt:\t%s\n", formatTime(u.JoinedAt))
	if u.LastUpdated != nil {
		fmt.Fprintf(e.out, "lastUpdated:\t%s\n", formatTime(*u.LastUpdated))
	}
	fmt.Fprintf(e.out, "level:\t%d\n", u.Level)
	fmt.Fprintf(e.out, "xp:\t%d\n", u.XP)
	fmt.Fprintf(e.out, "previousRank:\t%s\n", optInt(u.PreviousRank))
	fmt.Fprintf(e.out, "forceLogoutVersion:\t%s\n", optInt(u.ForceLogoutVersion))
}

var cmdUsersGet = &cobra.Command{
	Use:  "get USER_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			u, err := mustGetUser(ctx, e.db, args[0])
			if err != nil {
				return err
			}
			printUser(e, u)
			return nil
		})
	},
}

var (
	userName   string
	userEmail  string
	userAvatar string
	userLevel  int64
	userXP     int64
)

func addUserFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&userName, "name", "", "Display name.")
	cmd.Flags().StringVar(&userEmail, "email", "", "Email address.")
	cmd.Flags().StringVar(&userAvatar, "avatar-url", "", "Avatar image URL.")
}

var cmdUsersCreate = &cobra.Command{
	Use:  "create",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			var email *string
			if userEmail != "" {
				email = &userEmail
			}
			u := dbtypes.NewUser(userName, email)
			if userAvatar != "" {
				u.AvatarURL = &userAvatar
			}
			if err := u.Validate(); err != nil {
				return err
			}

			id, err := e.db.CreateUser(ctx, u)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, id)
			return nil
		})
	},
}

var cmdUsersUpdate = &cobra.Command{
	Use:  "update USER_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			u, err := mustGetUser(ctx, e.db, args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				u.DisplayName = userName
			}
			if flags.Changed("email") {
				u.Email = &userEmail
			}
			if flags.Changed("avatar-url") {
				u.AvatarURL = &userAvatar
			}
			if flags.Changed("level") {
				u.Level = userLevel
			}
			if flags.Changed("xp") {
				u.XP = userXP
			}
			if u.Level < 1 || u.XP < 0 {
				return errors.New("level must be at least 1 and xp at least 0")
			}
			if err := u.Validate(); err != nil {
				return err
			}
			now := dbtypes.Now()
			u.LastUpdated = &now

			return e.db.UpdateUser(ctx, u)
		})
	},
}

var cmdUsersDelete = &cobra.Command{
	Use:   "delete USER_ID",
	Short: "Delete the account only; owned data is kept (see reset)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			return e.db.DeleteUser(ctx, args[0])
		})
	},
}

var cmdUsersReset = &cobra.Command{
	Use:   "reset USER_ID",
	Short: "Zero a user's progress and delete their feed, activities, and territories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			u, err := mustGetUser(ctx, e.db, args[0])
			if err != nil {
				return err
			}
			counts, err := e.runner.ResetUserData(ctx, u)
			printCounts(e, counts)
			return err
		})
	},
}

var cmdUsersForceLogout = &cobra.Command{
	Use:  "force-logout USER_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			u, err := mustGetUser(ctx, e.db, args[0])
			if err != nil {
				return err
			}
			if err := e.db.ForceLogout(ctx, u); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "forceLogoutVersion:\t%d\n", *u.ForceLogoutVersion)
			return nil
		})
	},
}

var cmdUsersWatch = &cobra.Command{
	Use:   "watch",
	Short: "Print the user count each time the users collection changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(ctx context.Context, e *env) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w, err := e.db.WatchUsers(ctx)
			if err != nil {
				return err
			}
			defer w.Cancel()

			// Watch output is line-at-a-time, so skip the tabwriter.
			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case snap, ok := <-w.Snapshots():
					if !ok {
						return nil
					}
					if snap.Err != nil {
						return snap.Err
					}
					fmt.Fprintf(out, "%s\t%d users\n", formatTime(time.Now()), len(snap.Users))
				}
			}
		})
	},
}

var cmdUsersSummary = &cobra.Command{
	Use:  "summary USER_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			u, err := mustGetUser(ctx, e.db, args[0])
			if err != nil {
				return err
			}
			s, err := aggregate.LoadUserSummary(ctx, e.db, u)
			if err != nil {
				return err
			}

			fmt.Fprintf(e.out, "user:\t%s (%s)\n", u.DisplayName, u.ID)
			fmt.Fprintf(e.out, "level / xp:\t%d / %d\n", u.Level, u.XP)
			fmt.Fprintf(e.out, "activities:\t%d (%d xp, %.0f m)\n", s.Activities, s.ActivityXP, s.DistanceMeters)
			fmt.Fprintf(e.out, "feed items:\t%d (%d xp)\n", s.FeedItems, s.FeedXP)
			fmt.Fprintf(e.out, "territories:\t%d (%d active)\n", s.Territories, s.ActiveTerritories)
			return nil
		})
	},
}

func init() {
	addUserFlags(cmdUsersCreate)
	addUserFlags(cmdUsersUpdate)
	cmdUsersUpdate.Flags().Int64Var(&userLevel, "level", 1, "Level.")
	cmdUsersUpdate.Flags().Int64Var(&userXP, "xp", 0, "XP.")

	cmdUsers.AddCommand(
		cmdUsersList,
		cmdUsersGet,
		cmdUsersCreate,
		cmdUsersUpdate,
		cmdUsersDelete,
		cmdUsersReset,
		cmdUsersForceLogout,
		cmdUsersWatch,
		cmdUsersSummary,
	)
}
