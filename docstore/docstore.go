// Package docstore is the boundary between the admin tooling and the document
// database.
//
// Collections are addressed by slash-separated paths.  A top-level collection
// is a single name ("users"); a subcollection is "parent/parentID/name", built
// with Sub.
package docstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrEmptyID          = errors.New("document ID must not be empty")
	ErrInvalidWrite     = errors.New("invalid batch write")
	ErrInvalidDocument  = errors.New("invalid document")
	ErrUnsupportedValue = errors.New("unsupported field value")
)

// Document is one stored record: its ID plus its raw field map.
//
// Field values use the same representation the Firestore client hands back:
// int64, float64, bool, string, []byte, time.Time, []any, map[string]any, or
// nil.
type Document struct {
	ID     string
	Fields map[string]any
}

// Filter restricts a query to documents whose Field equals Value.
type Filter struct {
	Field string
	Value any
}

// Order sorts a query by Field.  As in Firestore, documents lacking the field
// are left out of an ordered query.
type Order struct {
	Field      string
	Descending bool
}

type Query struct {
	Where   *Filter
	OrderBy *Order
}

// All matches every document in a collection.
var All = Query{}

func WhereEquals(field string, value any) Query {
	return Query{Where: &Filter{Field: field, Value: value}}
}

// Write is one operation inside a Batch.
//
// Delete removes the document.  Otherwise Fields is written, merged into the
// existing document if Merge is set.  An empty ID on a non-merge, non-delete
// write creates a document with a store-assigned ID.
type Write struct {
	Coll   string
	ID     string
	Fields map[string]any
	Merge  bool
	Delete bool
}

func (w Write) validate() error {
	if w.Coll == "" {
		return ErrInvalidWrite
	}
	if w.ID == "" && (w.Delete || w.Merge) {
		return ErrEmptyID
	}
	return nil
}

// ValidateWrites checks a batch before any of it is applied.
func ValidateWrites(writes []Write) error {
	for _, w := range writes {
		if err := w.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Store is the set of operations the admin tooling needs from a document
// database.
type Store interface {
	// Get returns the document, or found=false if it does not exist.
	Get(ctx context.Context, coll, id string) (doc *Document, found bool, err error)

	Query(ctx context.Context, coll string, q Query) ([]*Document, error)

	// Add creates a document with a store-assigned ID.
	Add(ctx context.Context, coll string, fields map[string]any) (string, error)

	// SetMerge writes fields into the document, leaving unspecified fields
	// alone.  The document is created if needed.
	SetMerge(ctx context.Context, coll, id string, fields map[string]any) error

	// Delete removes the document.  Deleting an absent document succeeds.
	Delete(ctx context.Context, coll, id string) error

	// Batch applies all writes atomically.
	Batch(ctx context.Context, writes []Write) error

	// Subscribe streams full snapshots of the collection until the
	// subscription is canceled or ctx ends.
	Subscribe(ctx context.Context, coll string) (*Subscription, error)
}

// Sub addresses the subcollection name under parentColl/parentID.
func Sub(parentColl, parentID, name string) string {
	return strings.Join([]string{parentColl, parentID, name}, "/")
}

// Snapshot is one delivery from a Subscription.  Docs is the complete
// collection contents at that moment.  A snapshot with Err set is the last one.
type Snapshot struct {
	Docs []*Document
	Err  error
}

// Subscription is a standing listener on a collection.  C is closed once the
// listener has shut down.
type Subscription struct {
	C <-chan Snapshot

	cancel context.CancelFunc
	done   <-chan struct{}
	once   sync.Once
}

// NewSubscription is for Store implementations.  The producer must close c and
// then done when it stops, and must stop once cancel is called.
func NewSubscription(c <-chan Snapshot, cancel context.CancelFunc, done <-chan struct{}) *Subscription {
	return &Subscription{
		C:      c,
		cancel: cancel,
		done:   done,
	}
}

// Cancel stops the subscription and waits for the producer to exit.  It is safe
// to call more than once, and on a nil Subscription.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.done != nil {
			<-s.done
		}
	})
}
