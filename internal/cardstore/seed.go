package cardstore

import (
	"context"
	"fmt"
)

// Seed copies the named documents from src into dst, stopping at the first
// failure. It returns how many documents were written.
func Seed(ctx context.Context, dst Writer, src Store, names []string) (int, error) {
	written := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		data, err := src.Get(ctx, name)
		if err != nil {
			return written, fmt.Errorf("seed %s from %s: %w", name, src.Name(), err)
		}
		if err := dst.Put(ctx, name, data); err != nil {
			return written, fmt.Errorf("seed %s into %s: %w", name, dst.Name(), err)
		}
		written++
	}
	return written, nil
}
