package dblayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"territory-admin/dbtypes"
	"territory-admin/docstore"
)

var (
	ErrRosterNotStarted = errors.New("user roster has not been started")
	ErrRosterStarted    = errors.New("user roster is already running")
	ErrRosterEnded      = errors.New("user roster subscription ended")
)

// UserSnapshot is the full user list at one moment, or the error that ended
// the watch.
type UserSnapshot struct {
	Users []*dbtypes.User
	Err   error
}

// UserWatch is a standing subscription to the users collection.  The owner
// must call Cancel when done with it.
type UserWatch struct {
	sub  *docstore.Subscription
	c    chan UserSnapshot
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// WatchUsers subscribes to the users collection.  The first snapshot is the
// current contents; each later one replaces it entirely.
func (db *DB) WatchUsers(ctx context.Context) (*UserWatch, error) {
	ctx, span := startSpan(ctx, "DB.WatchUsers")
	defer span.End()

	sub, err := db.store.Subscribe(ctx, UsersCollection)
	if err != nil {
		return nil, fail(span, fmt.Errorf("while subscribing to users: %w", err))
	}

	w := &UserWatch{
		sub:  sub,
		c:    make(chan UserSnapshot),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *UserWatch) run() {
	defer close(w.done)
	defer close(w.c)

	for snap := range w.sub.C {
		out := UserSnapshot{Err: snap.Err}
		if snap.Err == nil {
			out.Users = decodeUsers(snap.Docs)
		}

		select {
		case w.c <- out:
		case <-w.stop:
			return
		}
	}
}

// Snapshots is closed after Cancel, or after a snapshot carrying an error.
func (w *UserWatch) Snapshots() <-chan UserSnapshot {
	return w.c
}

// Cancel ends the watch.  Calling it again, or on a nil watch, does nothing.
func (w *UserWatch) Cancel() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		close(w.stop)
		w.sub.Cancel()
		<-w.done
	})
}

// UserRoster keeps the latest user snapshot in memory for readers that can't
// hold a subscription of their own, like HTTP handlers.
type UserRoster struct {
	db *DB

	// reloadMu serializes Reload against itself and Stop.
	reloadMu sync.Mutex

	mu    sync.Mutex
	base  context.Context
	watch *UserWatch
	fresh chan struct{}
	// delivered is set once the current watch has produced a snapshot.
	delivered bool
	users     []*dbtypes.User
	loaded    bool
	err       error
}

func NewUserRoster(db *DB) *UserRoster {
	return &UserRoster{
		db: db,
	}
}

// Start subscribes.  The subscription lives until ctx ends or Stop is
// called.
func (r *UserRoster) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.base != nil {
		return ErrRosterStarted
	}
	if err := r.subscribeLocked(ctx); err != nil {
		return err
	}
	r.base = ctx
	return nil
}

func (r *UserRoster) subscribeLocked(ctx context.Context) error {
	w, err := r.db.WatchUsers(ctx)
	if err != nil {
		return err
	}
	fresh := make(chan struct{})
	r.watch = w
	r.fresh = fresh
	r.delivered = false
	go r.consume(w, fresh)
	return nil
}

func (r *UserRoster) consume(w *UserWatch, fresh chan struct{}) {
	defer func() {
		r.mu.Lock()
		if r.watch == w && r.err == nil {
			r.err = r.endedErr()
		}
		r.mu.Unlock()

		// Unblock a Reload waiting on a watch that ended without delivering.
		select {
		case <-fresh:
		default:
			close(fresh)
		}
	}()

	first := true
	for snap := range w.Snapshots() {
		r.mu.Lock()
		if r.watch != w {
			r.mu.Unlock()
			return
		}
		if snap.Err != nil {
			r.err = snap.Err
			slog.Error("User roster subscription failed", slog.Any("err", snap.Err))
		} else {
			r.users = snap.Users
			r.loaded = true
			r.err = nil
		}
		r.delivered = true
		r.mu.Unlock()

		if first {
			close(fresh)
			first = false
		}
	}
}

func (r *UserRoster) endedErr() error {
	if r.base != nil && r.base.Err() != nil {
		return fmt.Errorf("%w: %w", ErrRosterEnded, r.base.Err())
	}
	return ErrRosterEnded
}

// Users returns the latest snapshot, and whether one has arrived yet.  The
// returned slice is shared and must not be modified.
func (r *UserRoster) Users() ([]*dbtypes.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users, r.loaded
}

// Ready reports nil once the roster holds a snapshot and its subscription is
// healthy.
func (r *UserRoster) Ready() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	if !r.loaded {
		return errors.New("no user snapshot yet")
	}
	return nil
}

// Reload drops the current subscription, opens a new one, and waits for its
// first snapshot.  An in-flight subscription is never trusted to refresh
// itself.  Once the context given to Start has ended no fresh snapshot can
// arrive, so Reload fails and the roster stops reporting ready.
func (r *UserRoster) Reload(ctx context.Context) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	r.mu.Lock()
	if r.base == nil {
		r.mu.Unlock()
		return ErrRosterNotStarted
	}
	if r.base.Err() != nil {
		r.err = r.endedErr()
		err := r.err
		r.mu.Unlock()
		return err
	}
	old := r.watch
	r.watch = nil
	r.mu.Unlock()

	old.Cancel()

	r.mu.Lock()
	if err := r.subscribeLocked(r.base); err != nil {
		r.err = err
		r.mu.Unlock()
		return fmt.Errorf("while resubscribing: %w", err)
	}
	fresh := r.fresh
	r.mu.Unlock()

	select {
	case <-fresh:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.delivered && r.err == nil {
		r.err = r.endedErr()
	}
	return r.err
}

// Stop cancels the subscription.  The last snapshot stays readable.
func (r *UserRoster) Stop() {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	r.mu.Lock()
	w := r.watch
	r.watch = nil
	r.mu.Unlock()

	w.Cancel()
}
