package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore implements Store on top of a Cloud Firestore client.
//
// The server client has no local cache, so every read is authoritative.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{
		client: client,
	}
}

func (f *Firestore) Get(ctx context.Context, coll, id string) (*Document, bool, error) {
	if id == "" {
		return nil, false, ErrEmptyID
	}

	snap, err := f.client.Collection(coll).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("while getting %s/%s: %w", coll, id, err)
	}

	return &Document{ID: snap.Ref.ID, Fields: snap.Data()}, true, nil
}

func (f *Firestore) Query(ctx context.Context, coll string, q Query) ([]*Document, error) {
	fq := f.client.Collection(coll).Query
	if q.Where != nil {
		fq = fq.Where(q.Where.Field, "==", q.Where.Value)
	}
	if q.OrderBy != nil {
		dir := firestore.Asc
		if q.OrderBy.Descending {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy.Field, dir)
	}

	docs := []*Document{}
	iter := fq.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating %s: %w", coll, err)
		}

		docs = append(docs, &Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}

	return docs, nil
}

func (f *Firestore) Add(ctx context.Context, coll string, fields map[string]any) (string, error) {
	ref, _, err := f.client.Collection(coll).Add(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("while adding to %s: %w", coll, err)
	}
	return ref.ID, nil
}

func (f *Firestore) SetMerge(ctx context.Context, coll, id string, fields map[string]any) error {
	if id == "" {
		return ErrEmptyID
	}
	if _, err := f.client.Collection(coll).Doc(id).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("while writing %s/%s: %w", coll, id, err)
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, coll, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if _, err := f.client.Collection(coll).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("while deleting %s/%s: %w", coll, id, err)
	}
	return nil
}

func (f *Firestore) Batch(ctx context.Context, writes []Write) error {
	if err := ValidateWrites(writes); err != nil {
		return err
	}
	// Firestore refuses to commit an empty batch.
	if len(writes) == 0 {
		return nil
	}

	batch := f.client.Batch()
	for _, w := range writes {
		col := f.client.Collection(w.Coll)
		switch {
		case w.Delete:
			batch.Delete(col.Doc(w.ID))
		case w.ID == "":
			batch.Create(col.NewDoc(), w.Fields)
		case w.Merge:
			batch.Set(col.Doc(w.ID), w.Fields, firestore.MergeAll)
		default:
			batch.Set(col.Doc(w.ID), w.Fields)
		}
	}

	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("while committing batch of %d writes: %w", len(writes), err)
	}
	return nil
}

func (f *Firestore) Subscribe(ctx context.Context, coll string) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	it := f.client.Collection(coll).Snapshots(ctx)
	c := make(chan Snapshot)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(c)
		defer it.Stop()

		for {
			qs, err := it.Next()
			if err == nil {
				var docSnaps []*firestore.DocumentSnapshot
				docSnaps, err = qs.Documents.GetAll()
				if err == nil {
					docs := make([]*Document, 0, len(docSnaps))
					for _, snap := range docSnaps {
						docs = append(docs, &Document{ID: snap.Ref.ID, Fields: snap.Data()})
					}

					select {
					case c <- Snapshot{Docs: docs}:
						continue
					case <-ctx.Done():
						return
					}
				}
			}

			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}

			select {
			case c <- Snapshot{Err: fmt.Errorf("while listening to %s: %w", coll, err)}:
			case <-ctx.Done():
			}
			return
		}
	}()

	return NewSubscription(c, cancel, done), nil
}
