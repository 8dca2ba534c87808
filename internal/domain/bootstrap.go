package domain

import (
	"context"
	"fmt"
)

// Bootstrap seeds the store with catalog when it holds no activities.
// It reports whether anything was inserted; running it against a populated store is a no-op.
func Bootstrap(ctx context.Context, store Store, catalog []Activity) (bool, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count activities: %w", err)
	}
	if count > 0 || len(catalog) == 0 {
		return false, nil
	}

	seed := make([]Activity, 0, len(catalog))
	for _, a := range catalog {
		seed = append(seed, a.Clone())
	}
	if err := store.InsertMany(ctx, seed); err != nil {
		return false, fmt.Errorf("seed activities: %w", err)
	}
	return true, nil
}
