package dblayer

import (
	"context"
	"fmt"
	"log/slog"

	"territory-admin/dbtypes"
	"territory-admin/docstore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func decodeUsers(docs []*docstore.Document) []*dbtypes.User {
	users := make([]*dbtypes.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, dbtypes.DecodeUser(doc.ID, doc.Fields))
	}
	return users
}

func (db *DB) ListUsers(ctx context.Context) ([]*dbtypes.User, error) {
	ctx, span := startSpan(ctx, "DB.ListUsers")
	defer span.End()

	docs, err := db.list(ctx, UsersCollection, docstore.All)
	if err != nil {
		return nil, fail(span, err)
	}

	span.SetStatus(codes.Ok, "")
	return decodeUsers(docs), nil
}

// GetUser returns the user, a "found" indicator, and an error.
func (db *DB) GetUser(ctx context.Context, id string) (*dbtypes.User, bool, error) {
	ctx, span := startSpan(ctx, "DB.GetUser", attribute.String("id", id))
	defer span.End()

	doc, found, err := db.get(ctx, UsersCollection, id)
	if err != nil {
		return nil, false, fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	if !found {
		return nil, false, nil
	}
	return dbtypes.DecodeUser(doc.ID, doc.Fields), true, nil
}

// CreateUser stores u under a new ID, which is also written back to u.ID.
func (db *DB) CreateUser(ctx context.Context, u *dbtypes.User) (string, error) {
	ctx, span := startSpan(ctx, "DB.CreateUser")
	defer span.End()

	id, err := db.create(ctx, UsersCollection, u.Fields())
	if err != nil {
		return "", fail(span, err)
	}
	u.ID = id

	slog.InfoContext(ctx, "Created user", slog.String("id", id))
	span.SetStatus(codes.Ok, "")
	return id, nil
}

// UpdateUser merges u into the stored record.  Optional fields that are nil on
// u keep their stored values.
func (db *DB) UpdateUser(ctx context.Context, u *dbtypes.User) error {
	ctx, span := startSpan(ctx, "DB.UpdateUser", attribute.String("id", u.ID))
	defer span.End()

	if err := db.update(ctx, UsersCollection, u.ID, u.Fields()); err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// DeleteUser removes only the account document.  Owned feed items,
// activities, territories, and follow edges are left in place.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "DB.DeleteUser", attribute.String("id", id))
	defer span.End()

	if err := db.delete(ctx, UsersCollection, id); err != nil {
		return fail(span, err)
	}

	slog.InfoContext(ctx, "Deleted user", slog.String("id", id))
	span.SetStatus(codes.Ok, "")
	return nil
}

// ForceLogout bumps the user's forceLogoutVersion so that their clients sign
// out.  The new version is written back to u.
func (db *DB) ForceLogout(ctx context.Context, u *dbtypes.User) error {
	ctx, span := startSpan(ctx, "DB.ForceLogout", attribute.String("id", u.ID))
	defer span.End()

	if u.ID == "" {
		return fail(span, ErrMissingID)
	}

	next := int64(1)
	if u.ForceLogoutVersion != nil {
		next = *u.ForceLogoutVersion + 1
	}
	now := dbtypes.Now()

	fields := map[string]any{
		"forceLogoutVersion": next,
		"lastUpdated":        now,
	}
	if err := db.update(ctx, UsersCollection, u.ID, fields); err != nil {
		return fail(span, fmt.Errorf("while forcing logout: %w", err))
	}
	u.ForceLogoutVersion = &next
	u.LastUpdated = &now

	slog.InfoContext(ctx, "Forced logout", slog.String("id", u.ID), slog.Int64("version", next))
	span.SetStatus(codes.Ok, "")
	return nil
}
