package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
)

const snapshotKeyPrefix = "kalitraf:snapshot:"

// SnapshotArchive stores one JSON document per source under a fixed key
// prefix. Documents are overwritten whole on each save; there is no
// history, only the latest accepted state.
type SnapshotArchive struct {
	client *Client
}

func NewSnapshotArchive(client *Client) *SnapshotArchive {
	return &SnapshotArchive{client: client}
}

var _ domain.SnapshotArchive = (*SnapshotArchive)(nil)

// Save writes the snapshot document for one source.
func (a *SnapshotArchive) Save(ctx context.Context, state domain.SourceState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot for %s: %w", state.Center, err)
	}

	if err := a.client.rdb.Set(ctx, snapshotKeyPrefix+state.Center, doc, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot for %s: %w", state.Center, err)
	}
	return nil
}

// LoadAll returns every stored snapshot keyed by source code. A document
// that no longer unmarshals is skipped with a warning rather than failing
// the whole seed.
func (a *SnapshotArchive) LoadAll(ctx context.Context) (map[string]domain.SourceState, error) {
	states := make(map[string]domain.SourceState)

	iter := a.client.rdb.Scan(ctx, 0, snapshotKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		doc, err := a.client.rdb.Get(ctx, key).Result()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", key, err)
		}

		var state domain.SourceState
		if err := json.Unmarshal([]byte(doc), &state); err != nil {
			slog.Warn("Skipping unreadable snapshot document", "key", key, "error", err)
			continue
		}
		states[state.Center] = state
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}

	return states, nil
}
