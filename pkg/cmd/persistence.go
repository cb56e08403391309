// Package cmd holds the shared wiring used by the binaries: persistence and
// event bus construction from configuration strings.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/castline/castline/pkg/persistence"
	"github.com/castline/castline/pkg/persistence/file"
	"github.com/castline/castline/pkg/persistence/memory"
	"github.com/castline/castline/pkg/persistence/redis"
)

// NewPersistence selects the storage backend from the database URL scheme:
// redis:// for Redis, file:// (or a bare path) for the JSON file store, and
// memory:// for the in-memory store.
func NewPersistence(ctx context.Context, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "memory":
		return memory.NewPersistence(), nil
	case "redis", "rediss":
		p, err := redis.NewPersistence(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
