// Package inmemory provides a process-local cache.Driver with expiry.
package inmemory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/memoir/pkg/cache"
)

type entry struct {
	// values are newest first
	values  []string
	expires time.Time
}

// Driver implements cache.Driver using an in-memory map.
type Driver struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	closed  bool
}

// NewDriver creates an empty cache.
func NewDriver() *Driver {
	return &Driver{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// WithClock overrides the clock used for expiry.
func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

func (d *Driver) Range(_ context.Context, key string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, cache.ErrClosed
	}

	e := d.live(key)
	if e == nil {
		return nil, nil
	}
	return slices.Clone(e.values), nil
}

func (d *Driver) Push(_ context.Context, key string, values []string, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return cache.ErrClosed
	}

	e := d.live(key)
	if e == nil {
		e = &entry{}
		d.entries[key] = e
	}
	e.values = append(reversed(values), e.values...)
	e.expires = d.now().Add(ttl)
	return nil
}

func (d *Driver) Overwrite(_ context.Context, key string, values []string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return cache.ErrClosed
	}

	if len(values) == 0 {
		delete(d.entries, key)
		return nil
	}
	d.entries[key] = &entry{values: reversed(values), expires: d.now().Add(ttl)}
	return nil
}

func (d *Driver) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return cache.ErrClosed
	}
	delete(d.entries, key)
	return nil
}

func (d *Driver) Ping(context.Context) error { return nil }

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// live returns the entry for key, evicting it when expired. Callers hold mu.
func (d *Driver) live(key string) *entry {
	e, ok := d.entries[key]
	if !ok {
		return nil
	}
	if !d.now().Before(e.expires) {
		delete(d.entries, key)
		return nil
	}
	return e
}

func reversed(values []string) []string {
	out := slices.Clone(values)
	slices.Reverse(out)
	return out
}
