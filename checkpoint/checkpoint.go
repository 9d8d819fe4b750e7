// Package checkpoint persists the learner's estimate table and the run's score totals.
package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"flappyq/models"
	"flappyq/reinforcement"

	"github.com/google/uuid"
)

var (
	// ErrUnknownSink is returned by Open for an unrecognized sink name.
	ErrUnknownSink = errors.New("unknown checkpoint sink")
	// ErrNoSnapshot is returned by Load when nothing was ever saved.
	ErrNoSnapshot = errors.New("no snapshot saved")
)

const (
	FILE_SINK   = "file"
	SQLITE_SINK = "sqlite"
	REDIS_SINK  = "redis"
)

// Store is a snapshot sink that can also reload the last snapshot, to resume training.
type Store interface {
	reinforcement.SnapshotSink
	Load(context.Context) (map[models.StateKey][]float64, error)
	// RunID identifies the process that wrote the snapshots.
	RunID() uuid.UUID
	Close() error
}

// Open builds the snapshot store named by cfg.Sink.
func Open(ctx context.Context, cfg reinforcement.CheckpointConfig) (Store, error) {
	runID := uuid.New()
	switch cfg.Sink {
	case FILE_SINK, "":
		return NewFileStore(cfg.Path, runID), nil
	case SQLITE_SINK:
		store, err := OpenSQLiteStore(ctx, cfg.Path, runID)
		if err != nil {
			return nil, err
		}
		return store, nil
	case REDIS_SINK:
		store, err := OpenRedisStore(ctx, cfg.Addr, runID)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSink, cfg.Sink)
}
