// Package inmemory provides a map-backed storage.Driver for tests and local
// development.
package inmemory

import (
	"context"
	"sync"

	"github.com/papercomputeco/memoir/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the rows
	mu sync.RWMutex

	// ids records every stored message id for idempotent inserts
	ids map[string]struct{}

	// rows holds each user's rows in insertion order
	rows map[string][]storage.Row

	// inserts counts Insert calls, including no-op ones
	inserts int
}

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		ids:  make(map[string]struct{}),
		rows: make(map[string][]storage.Row),
	}
}

// Insert stores rows, skipping ids that already exist.
func (d *Driver) Insert(_ context.Context, rows []storage.Row) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.inserts++
	for _, r := range rows {
		if r.UserID == "" {
			return storage.ErrMissingUserID
		}
		if _, ok := d.ids[r.MessageID]; ok {
			continue
		}
		d.ids[r.MessageID] = struct{}{}
		d.rows[r.UserID] = append(d.rows[r.UserID], r)
	}
	return nil
}

// History returns the user's rows oldest first.
func (d *Driver) History(_ context.Context, userID string) ([]storage.Row, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]storage.Row, len(d.rows[userID]))
	copy(out, d.rows[userID])
	return out, nil
}

// InsertCalls reports how many times Insert was called.
func (d *Driver) InsertCalls() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inserts
}

func (d *Driver) Ping(context.Context) error { return nil }

func (d *Driver) Close() error { return nil }
