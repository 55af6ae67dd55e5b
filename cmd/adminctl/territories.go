package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"territory-admin/aggregate"
	"territory-admin/dblayer"
	"territory-admin/dbtypes"

	"github.com/spf13/cobra"
)

var cmdTerritories = &cobra.Command{
	Use:   "territories [command]",
	Short: "Manage captured territories and their ownership history",
}

var cmdTerritoriesList = &cobra.Command{
	Use:  "list",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			territories, err := aggregate.LoadTerritoriesWithUsers(ctx, e.db, filterUser)
			if err != nil {
				return err
			}
			aggregate.SortTerritories(territories)
			now := dbtypes.Now()

			fmt.Fprintln(e.out, "ID\tCAPTURED\tOWNER\tPOINTS\tCENTER\tEXPIRES\tEXPIRED")
			for _, t := range territories {
				fmt.Fprintf(e.out, "%s\t%s\t%s\t%d\t%.5f,%.5f\t%s\t%v\n",
					t.Territory.ID,
					formatTime(t.Territory.Timestamp),
					aggregate.DisplayName(t.User),
					len(t.Territory.Boundary),
					t.Territory.CenterLatitude,
					t.Territory.CenterLongitude,
					formatTime(t.Territory.ExpiresAt),
					t.Territory.IsExpired(now))
			}
			fmt.Fprintf(e.out, "\n%d territories\t%d expired\n", len(territories), aggregate.CountExpired(territories, now))
			return nil
		})
	},
}

// parsePoint parses "lat,lon".
func parsePoint(s string) (dbtypes.Coordinate, error) {
	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return dbtypes.Coordinate{}, fmt.Errorf("point %q is not lat,lon", s)
	}
	latf, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return dbtypes.Coordinate{}, fmt.Errorf("while parsing latitude of %q: %w", s, err)
	}
	lonf, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return dbtypes.Coordinate{}, fmt.Errorf("while parsing longitude of %q: %w", s, err)
	}
	return dbtypes.Coordinate{Latitude: latf, Longitude: lonf}, nil
}

var (
	territoryUser   string
	territoryPoints []string
)

var cmdTerritoriesCreate = &cobra.Command{
	Use:  "create",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			boundary := []dbtypes.Coordinate{}
			for _, p := range territoryPoints {
				c, err := parsePoint(p)
				if err != nil {
					return err
				}
				boundary = append(boundary, c)
			}

			t := dbtypes.NewTerritory(territoryUser, boundary)
			if err := t.Validate(); err != nil {
				return err
			}
			id, err := e.db.CreateTerritory(ctx, t)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, id)
			return nil
		})
	},
}

var (
	territoryAddPoints   []string
	territoryRemovePoint []int
	territoryExpiresAt   string
)

var cmdTerritoriesUpdate = &cobra.Command{
	Use:   "update TERRITORY_ID",
	Short: "Edit a territory's boundary or expiry; use transfer to change its owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			t, found, err := e.db.GetTerritory(ctx, args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("territory %q: %w", args[0], dblayer.ErrNotFound)
			}

			add := []dbtypes.Coordinate{}
			for _, p := range territoryAddPoints {
				c, err := parsePoint(p)
				if err != nil {
					return err
				}
				add = append(add, c)
			}
			if err := t.EditBoundary(territoryRemovePoint, add); err != nil {
				return err
			}
			if cmd.Flags().Changed("expires-at") {
				expires, err := time.Parse(time.RFC3339, territoryExpiresAt)
				if err != nil {
					return fmt.Errorf("while parsing --expires-at: %w", err)
				}
				t.ExpiresAt = expires
			}
			if err := t.Validate(); err != nil {
				return err
			}

			if err := e.db.UpdateTerritory(ctx, t); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "points:\t%d\n", len(t.Boundary))
			return nil
		})
	},
}

var cmdTerritoriesDelete = &cobra.Command{
	Use:   "delete TERRITORY_ID",
	Short: "Delete a territory and its ownership history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			return e.runner.DeleteTerritoryWithChildren(ctx, args[0])
		})
	},
}

var cmdTerritoriesDeleteAll = &cobra.Command{
	Use:  "delete-all",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			if filterUser == "" && !confirmAll {
				return errConfirmationRequired
			}
			n, err := e.runner.DeleteTerritories(ctx, filterUser)
			fmt.Fprintf(e.out, "deleted:\t%d\n", n)
			return err
		})
	},
}

var cmdTerritoriesHistory = &cobra.Command{
	Use:  "history TERRITORY_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			changes, err := e.db.ListTerritoryChanges(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(e.out, "CHANGED\tTYPE\tFROM\tTO\tPREV ACTIVITY\tNEW ACTIVITY")
			for _, c := range changes {
				fmt.Fprintf(e.out, "%s\t%s\t%s\t%s\t%s\t%s\n",
					formatTime(c.ChangedAt),
					c.ChangeType,
					optString(c.PreviousUserID),
					optString(c.NewUserID),
					optString(c.PreviousActivityID),
					optString(c.NewActivityID))
			}
			return nil
		})
	},
}

var (
	transferTo         string
	transferChangeType string
)

var cmdTerritoriesTransfer = &cobra.Command{
	Use:  "transfer TERRITORY_ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			t, found, err := e.db.GetTerritory(ctx, args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("territory %q: %w", args[0], dblayer.ErrNotFound)
			}
			if _, err := e.runner.TransferTerritory(ctx, t, transferTo, transferChangeType); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "owner:\t%s\n", t.UserID)
			return nil
		})
	},
}

func init() {
	cmdTerritoriesList.Flags().StringVar(&filterUser, "user", "", "Only territories held by this user ID.")
	addDeleteAllFlags(cmdTerritoriesDeleteAll)

	cmdTerritoriesCreate.Flags().StringVar(&territoryUser, "user", "", "Owning user ID.")
	cmdTerritoriesCreate.Flags().StringArrayVar(&territoryPoints, "point", nil, "Boundary point as lat,lon.  Repeat for each vertex; at least 3.")

	cmdTerritoriesUpdate.Flags().StringArrayVar(&territoryAddPoints, "add-point", nil, "Append a boundary point as lat,lon.  Repeatable.")
	cmdTerritoriesUpdate.Flags().IntSliceVar(&territoryRemovePoint, "remove-point", nil, "Remove the boundary point at this 0-based index.  Repeatable; at least 3 points must remain.")
	cmdTerritoriesUpdate.Flags().StringVar(&territoryExpiresAt, "expires-at", "", "New expiry, RFC 3339.")

	cmdTerritoriesTransfer.Flags().StringVar(&transferTo, "to", "", "New owner's user ID.")
	cmdTerritoriesTransfer.Flags().StringVar(&transferChangeType, "change-type", dbtypes.ChangeTypeAdminTransfer, "changeType recorded in the history.")

	cmdTerritories.AddCommand(
		cmdTerritoriesList,
		cmdTerritoriesCreate,
		cmdTerritoriesUpdate,
		cmdTerritoriesDelete,
		cmdTerritoriesDeleteAll,
		cmdTerritoriesHistory,
		cmdTerritoriesTransfer,
	)
}
