// Package workflow implements the multi-collection operations: cascading
// deletes, per-user reset, the master wipe, weekly ranking closure, and
// paired follow edges.
//
// Steps run one at a time, in order.  Nothing is rolled back.  Re-running a
// workflow that failed partway is safe, since deleting an absent document
// succeeds.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"territory-admin/dblayer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/trace"
)

// Subcollection names that may hang off an activity.  Which of them a given
// activity actually has is not known ahead of time, so all are tried.
var ActivitySubcollections = []string{"territories", "routes", "route", "routePoints"}

var TerritorySubcollections = []string{"territories", dblayer.OwnersSubcollection}

var (
	ErrPairedWrite = errors.New("paired edge write failed; neither side was changed")
	ErrSelfFollow  = errors.New("a user cannot follow themselves")
)

// BulkDeleteError reports where a delete-all loop stopped.  The items before
// Index were deleted; the item at Index and everything after it were not.
type BulkDeleteError struct {
	Collection string
	Index      int
	ID         string
	Err        error
}

func (e *BulkDeleteError) Error() string {
	return fmt.Sprintf("while deleting %s item %d (%s): %v", e.Collection, e.Index, e.ID, e.Err)
}

func (e *BulkDeleteError) Unwrap() error {
	return e.Err
}

type Runner struct {
	db *dblayer.DB

	deleted metric.Int64Counter
}

// New builds a Runner.  Its counters come from the global meter provider, so
// install any metric pipeline first.
func New(db *dblayer.DB) *Runner {
	meter := metric.Must(global.Meter("territory-admin/workflow"))
	return &Runner{
		db: db,
		deleted: meter.NewInt64Counter("workflow.bulk_deleted",
			metric.WithDescription("Top-level documents removed by delete-all loops")),
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("territory-admin/workflow")
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(attrs...)
	return ctx, span
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// deleteChildren empties each named subcollection under parentColl/parentID.
// Failures are logged and skipped; a subcollection that doesn't exist is
// simply empty.
func (r *Runner) deleteChildren(ctx context.Context, parentColl, parentID string, names []string) {
	for _, name := range names {
		ids, err := r.db.ListSubcollectionIDs(ctx, parentColl, parentID, name)
		if err != nil {
			slog.WarnContext(ctx, "Skipping subcollection",
				slog.String("parent", parentColl+"/"+parentID),
				slog.String("subcollection", name),
				slog.Any("err", err))
			continue
		}

		for _, id := range ids {
			if err := r.db.DeleteSubcollectionDoc(ctx, parentColl, parentID, name, id); err != nil {
				slog.WarnContext(ctx, "Abandoning subcollection after failed delete",
					slog.String("parent", parentColl+"/"+parentID),
					slog.String("subcollection", name),
					slog.String("id", id),
					slog.Any("err", err))
				break
			}
		}
	}
}

// DeleteActivityWithChildren empties the activity's subcollections, then
// deletes the activity.  Only the final delete can fail the operation.
func (r *Runner) DeleteActivityWithChildren(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "Runner.DeleteActivityWithChildren", attribute.String("id", id))
	defer span.End()

	if id == "" {
		return fail(span, dblayer.ErrMissingID)
	}

	r.deleteChildren(ctx, dblayer.ActivitiesCollection, id, ActivitySubcollections)

	if err := r.db.DeleteActivity(ctx, id); err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// DeleteTerritoryWithChildren empties the territory's subcollections,
// including its ownership history, then deletes the territory.
func (r *Runner) DeleteTerritoryWithChildren(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "Runner.DeleteTerritoryWithChildren", attribute.String("id", id))
	defer span.End()

	if id == "" {
		return fail(span, dblayer.ErrMissingID)
	}

	r.deleteChildren(ctx, dblayer.TerritoriesCollection, id, TerritorySubcollections)

	if err := r.db.DeleteTerritory(ctx, id); err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// bulkDelete runs del over ids in order and stops at the first failure.  It
// returns how many were deleted.
func (r *Runner) bulkDelete(ctx context.Context, coll string, ids []string, del func(context.Context, string) error) (int, error) {
	for i, id := range ids {
		if err := del(ctx, id); err != nil {
			r.deleted.Add(ctx, int64(i), attribute.String("collection", coll))
			return i, &BulkDeleteError{Collection: coll, Index: i, ID: id, Err: err}
		}
	}
	r.deleted.Add(ctx, int64(len(ids)), attribute.String("collection", coll))
	return len(ids), nil
}

// DeleteTerritories deletes, with children, every territory held by ownerID,
// or every territory when ownerID is empty.
func (r *Runner) DeleteTerritories(ctx context.Context, ownerID string) (int, error) {
	ctx, span := startSpan(ctx, "Runner.DeleteTerritories", attribute.String("owner", ownerID))
	defer span.End()

	territories, err := r.db.ListTerritories(ctx, ownerID)
	if err != nil {
		return 0, fail(span, err)
	}
	ids := make([]string, 0, len(territories))
	for _, t := range territories {
		ids = append(ids, t.ID)
	}

	n, err := r.bulkDelete(ctx, dblayer.TerritoriesCollection, ids, r.DeleteTerritoryWithChildren)
	span.SetAttributes(attribute.Int("deleted", n))
	if err != nil {
		return n, fail(span, err)
	}
	slog.InfoContext(ctx, "Deleted territories", slog.String("owner", ownerID), slog.Int("count", n))
	span.SetStatus(codes.Ok, "")
	return n, nil
}

// DeleteActivities deletes, with children, every session owned by ownerID, or
// every session when ownerID is empty.
func (r *Runner) DeleteActivities(ctx context.Context, ownerID string) (int, error) {
	ctx, span := startSpan(ctx, "Runner.DeleteActivities", attribute.String("owner", ownerID))
	defer span.End()

	activities, err := r.db.ListActivities(ctx, ownerID)
	if err != nil {
		return 0, fail(span, err)
	}
	ids := make([]string, 0, len(activities))
	for _, a := range activities {
		ids = append(ids, a.ID)
	}

	n, err := r.bulkDelete(ctx, dblayer.ActivitiesCollection, ids, r.DeleteActivityWithChildren)
	span.SetAttributes(attribute.Int("deleted", n))
	if err != nil {
		return n, fail(span, err)
	}
	slog.InfoContext(ctx, "Deleted activities", slog.String("owner", ownerID), slog.Int("count", n))
	span.SetStatus(codes.Ok, "")
	return n, nil
}

// DeleteFeedItems deletes every feed item owned by ownerID, or the whole feed
// when ownerID is empty.
func (r *Runner) DeleteFeedItems(ctx context.Context, ownerID string) (int, error) {
	ctx, span := startSpan(ctx, "Runner.DeleteFeedItems", attribute.String("owner", ownerID))
	defer span.End()

	items, err := r.db.ListFeedItems(ctx, ownerID)
	if err != nil {
		return 0, fail(span, err)
	}
	ids := make([]string, 0, len(items))
	for _, f := range items {
		ids = append(ids, f.ID)
	}

	n, err := r.bulkDelete(ctx, dblayer.FeedCollection, ids, r.db.DeleteFeedItem)
	span.SetAttributes(attribute.Int("deleted", n))
	if err != nil {
		return n, fail(span, err)
	}
	slog.InfoContext(ctx, "Deleted feed items", slog.String("owner", ownerID), slog.Int("count", n))
	span.SetStatus(codes.Ok, "")
	return n, nil
}
