package crawler

import (
	"context"
	"fmt"
)

// Deduplicator answers whether a URL is already in the catalog. A positive
// answer makes the engine skip the item without creating a record.
type Deduplicator struct {
	store Store
}

// NewDeduplicator constructs a Deduplicator backed by the given store.
func NewDeduplicator(store Store) *Deduplicator {
	return &Deduplicator{store: store}
}

// Exists reports whether a resource with an exactly matching URL is stored.
func (d *Deduplicator) Exists(ctx context.Context, url string) (bool, error) {
	exists, err := d.store.ExistsByURL(ctx, url)
	if err != nil {
		return false, fmt.Errorf("check url %s: %w", url, err)
	}
	return exists, nil
}
