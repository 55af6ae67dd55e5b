// Package badgerstore is an embedded, file-backed docstore.Store.  It keeps the
// operator tooling usable against a local copy of the game data, and backs the
// tests.
//
// Keys are "d\x00<collection path>\x00<document ID>", so a collection's
// documents share a prefix that no subcollection's documents can match.
// Values are Firestore v1 protobuf documents (see docpb).
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"territory-admin/docstore"
	"territory-admin/docstore/docpb"

	"github.com/dgraph-io/badger"
	"github.com/google/uuid"
)

type Store struct {
	db *badger.DB

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

type watcher struct {
	// Buffered with capacity 1; a pending signal coalesces later ones.
	changed chan struct{}
}

// Open opens (or creates) the store in dir.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir))
	if err != nil {
		return nil, fmt.Errorf("while opening badger kv dir %s: %w", dir, err)
	}

	return &Store{
		db:       db,
		watchers: map[string]map[*watcher]struct{}{},
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func collPrefix(coll string) []byte {
	return []byte("d\x00" + coll + "\x00")
}

func docKey(coll, id string) []byte {
	return append(collPrefix(coll), id...)
}

func checkColl(coll string) error {
	if coll == "" || strings.ContainsRune(coll, 0) {
		return fmt.Errorf("bad collection path %q", coll)
	}
	return nil
}

func getDoc(txn *badger.Txn, coll, id string) (*docstore.Document, bool, error) {
	item, err := txn.Get(docKey(coll, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("while reading %s/%s: %w", coll, id, err)
	}

	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("while copying value of %s/%s: %w", coll, id, err)
	}

	doc, err := docpb.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("while decoding %s/%s: %w", coll, id, err)
	}
	doc.ID = id
	return doc, true, nil
}

func putDoc(txn *badger.Txn, coll string, doc *docstore.Document) error {
	data, err := docpb.Marshal(doc)
	if err != nil {
		return err
	}
	if err := txn.Set(docKey(coll, doc.ID), data); err != nil {
		return fmt.Errorf("while writing %s/%s: %w", coll, doc.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, coll, id string) (*docstore.Document, bool, error) {
	if err := checkColl(coll); err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, docstore.ErrEmptyID
	}

	var doc *docstore.Document
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		doc, found, err = getDoc(txn, coll, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return doc, found, nil
}

func (s *Store) Query(ctx context.Context, coll string, q docstore.Query) ([]*docstore.Document, error) {
	if err := checkColl(coll); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := []*docstore.Document{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := collPrefix(coll)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("while copying value: %w", err)
			}

			doc, err := docpb.Unmarshal(data)
			if err != nil {
				return fmt.Errorf("while decoding document in %s: %w", coll, err)
			}
			doc.ID = string(item.KeyCopy(nil)[len(prefix):])

			if !docstore.Matches(doc, q) {
				continue
			}
			if q.OrderBy != nil {
				if _, ok := docstore.Lookup(doc.Fields, q.OrderBy.Field); !ok {
					continue
				}
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("while querying %s: %w", coll, err)
	}

	if q.OrderBy != nil {
		field, desc := q.OrderBy.Field, q.OrderBy.Descending
		sort.SliceStable(docs, func(i, j int) bool {
			a, _ := docstore.Lookup(docs[i].Fields, field)
			b, _ := docstore.Lookup(docs[j].Fields, field)
			if desc {
				return docstore.CompareValues(a, b) > 0
			}
			return docstore.CompareValues(a, b) < 0
		})
	}

	return docs, nil
}

func (s *Store) Add(ctx context.Context, coll string, fields map[string]any) (string, error) {
	id := newID()
	err := s.Batch(ctx, []docstore.Write{{Coll: coll, ID: id, Fields: fields}})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) SetMerge(ctx context.Context, coll, id string, fields map[string]any) error {
	if id == "" {
		return docstore.ErrEmptyID
	}
	return s.Batch(ctx, []docstore.Write{{Coll: coll, ID: id, Fields: fields, Merge: true}})
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	if id == "" {
		return docstore.ErrEmptyID
	}
	return s.Batch(ctx, []docstore.Write{{Coll: coll, ID: id, Delete: true}})
}

// Batch applies all writes inside one badger transaction.
func (s *Store) Batch(ctx context.Context, writes []docstore.Write) error {
	if err := docstore.ValidateWrites(writes); err != nil {
		return err
	}
	for _, w := range writes {
		if err := checkColl(w.Coll); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, w := range writes {
			if err := applyWrite(txn, w); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("while committing batch of %d writes: %w", len(writes), err)
	}

	touched := map[string]bool{}
	for _, w := range writes {
		touched[w.Coll] = true
	}
	s.notify(touched)

	return nil
}

func applyWrite(txn *badger.Txn, w docstore.Write) error {
	if w.Delete {
		if err := txn.Delete(docKey(w.Coll, w.ID)); err != nil {
			return fmt.Errorf("while deleting %s/%s: %w", w.Coll, w.ID, err)
		}
		return nil
	}

	id := w.ID
	if id == "" {
		id = newID()
	}

	doc := &docstore.Document{ID: id, Fields: copyFields(w.Fields)}
	if w.Merge {
		existing, found, err := getDoc(txn, w.Coll, id)
		if err != nil {
			return err
		}
		if found {
			doc.Fields = mergeFields(existing.Fields, w.Fields)
		}
	}

	return putDoc(txn, w.Coll, doc)
}

// mergeFields merges src into dst the way Firestore's MergeAll does: nested
// maps merge key by key, everything else is replaced.
func mergeFields(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = mergeFields(dm, sm)
				continue
			}
			dst[k] = copyFields(sm)
			continue
		}
		dst[k] = v
	}
	return dst
}

func copyFields(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		if m, ok := v.(map[string]any); ok {
			v = copyFields(m)
		}
		out[k] = v
	}
	return out
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Store) notify(colls map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for coll := range colls {
		for w := range s.watchers[coll] {
			select {
			case w.changed <- struct{}{}:
			default:
			}
		}
	}
}

func (s *Store) addWatcher(coll string, w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchers[coll] == nil {
		s.watchers[coll] = map[*watcher]struct{}{}
	}
	s.watchers[coll][w] = struct{}{}
}

func (s *Store) removeWatcher(coll string, w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.watchers[coll], w)
	if len(s.watchers[coll]) == 0 {
		delete(s.watchers, coll)
	}
}

// Subscribe delivers the current contents of coll right away, then a fresh
// full snapshot after every committed batch that touches coll.
func (s *Store) Subscribe(ctx context.Context, coll string) (*docstore.Subscription, error) {
	if err := checkColl(coll); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	w := &watcher{changed: make(chan struct{}, 1)}
	s.addWatcher(coll, w)
	// Prime the first delivery.
	w.changed <- struct{}{}

	c := make(chan docstore.Snapshot)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(c)
		defer s.removeWatcher(coll, w)

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.changed:
			}

			docs, err := s.Query(ctx, coll, docstore.All)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.ErrorContext(ctx, "Error while refreshing subscription", slog.String("collection", coll), slog.Any("err", err))
				select {
				case c <- docstore.Snapshot{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case c <- docstore.Snapshot{Docs: docs}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return docstore.NewSubscription(c, cancel, done), nil
}
