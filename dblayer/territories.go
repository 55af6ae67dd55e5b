package dblayer

import (
	"context"
	"log/slog"

	"territory-admin/dbtypes"
	"territory-admin/docstore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ListTerritories returns the territories held by ownerID, or every territory
// when ownerID is empty.
func (db *DB) ListTerritories(ctx context.Context, ownerID string) ([]*dbtypes.RemoteTerritory, error) {
	ctx, span := startSpan(ctx, "DB.ListTerritories", attribute.String("owner", ownerID))
	defer span.End()

	docs, err := db.list(ctx, TerritoriesCollection, ownedBy(ownerID))
	if err != nil {
		return nil, fail(span, err)
	}

	territories := make([]*dbtypes.RemoteTerritory, 0, len(docs))
	for _, doc := range docs {
		territories = append(territories, dbtypes.DecodeRemoteTerritory(doc.ID, doc.Fields))
	}
	span.SetStatus(codes.Ok, "")
	return territories, nil
}

func (db *DB) GetTerritory(ctx context.Context, id string) (*dbtypes.RemoteTerritory, bool, error) {
	ctx, span := startSpan(ctx, "DB.GetTerritory", attribute.String("id", id))
	defer span.End()

	doc, found, err := db.get(ctx, TerritoriesCollection, id)
	if err != nil {
		return nil, false, fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	if !found {
		return nil, false, nil
	}
	return dbtypes.DecodeRemoteTerritory(doc.ID, doc.Fields), true, nil
}

func (db *DB) CreateTerritory(ctx context.Context, t *dbtypes.RemoteTerritory) (string, error) {
	ctx, span := startSpan(ctx, "DB.CreateTerritory", attribute.String("owner", t.UserID))
	defer span.End()

	id, err := db.create(ctx, TerritoriesCollection, t.Fields())
	if err != nil {
		return "", fail(span, err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Created territory", slog.String("id", id), slog.String("owner", t.UserID))
	span.SetStatus(codes.Ok, "")
	return id, nil
}

func (db *DB) UpdateTerritory(ctx context.Context, t *dbtypes.RemoteTerritory) error {
	ctx, span := startSpan(ctx, "DB.UpdateTerritory", attribute.String("id", t.ID))
	defer span.End()

	if err := db.update(ctx, TerritoriesCollection, t.ID, t.Fields()); err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// DeleteTerritory removes only the territory document, not its history.
func (db *DB) DeleteTerritory(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "DB.DeleteTerritory", attribute.String("id", id))
	defer span.End()

	if err := db.delete(ctx, TerritoriesCollection, id); err != nil {
		return fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ListTerritoryChanges returns the ownership history of a territory, newest
// first.  Entries without a changedAt field are not returned.
func (db *DB) ListTerritoryChanges(ctx context.Context, territoryID string) ([]*dbtypes.TerritoryChange, error) {
	ctx, span := startSpan(ctx, "DB.ListTerritoryChanges", attribute.String("territory", territoryID))
	defer span.End()

	if territoryID == "" {
		return nil, fail(span, ErrMissingID)
	}

	q := docstore.Query{
		OrderBy: &docstore.Order{Field: "changedAt", Descending: true},
	}
	docs, err := db.list(ctx, docstore.Sub(TerritoriesCollection, territoryID, OwnersSubcollection), q)
	if err != nil {
		return nil, fail(span, err)
	}

	changes := make([]*dbtypes.TerritoryChange, 0, len(docs))
	for _, doc := range docs {
		changes = append(changes, dbtypes.DecodeTerritoryChange(doc.ID, doc.Fields))
	}
	span.SetStatus(codes.Ok, "")
	return changes, nil
}

// RecordTerritoryChange appends c to the territory's history.
func (db *DB) RecordTerritoryChange(ctx context.Context, territoryID string, c *dbtypes.TerritoryChange) (string, error) {
	ctx, span := startSpan(ctx, "DB.RecordTerritoryChange", attribute.String("territory", territoryID))
	defer span.End()

	if territoryID == "" {
		return "", fail(span, ErrMissingID)
	}

	id, err := db.create(ctx, docstore.Sub(TerritoriesCollection, territoryID, OwnersSubcollection), c.Fields())
	if err != nil {
		return "", fail(span, err)
	}
	c.ID = id
	span.SetStatus(codes.Ok, "")
	return id, nil
}
