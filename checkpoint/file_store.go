package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"flappyq/models"

	"github.com/google/uuid"
)

// FileStore writes snapshots as a JSON object of state key to action-value vector,
// replacing the file on every save.
type FileStore struct {
	path  string
	runID uuid.UUID
}

func NewFileStore(path string, runID uuid.UUID) *FileStore {
	return &FileStore{path: path, runID: runID}
}

func (store *FileStore) RunID() uuid.UUID {
	return store.runID
}

// SaveSnapshot writes to a temp file and renames it over the previous snapshot, so a reader
// never sees a partial table.
func (store *FileStore) SaveSnapshot(ctx context.Context, values map[models.StateKey][]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(store.path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(store.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), store.path)
}

func (store *FileStore) Load(ctx context.Context) (map[models.StateKey][]float64, error) {
	return LoadFile(store.path)
}

func (store *FileStore) Close() error {
	return nil
}

// LoadFile reads a snapshot written by a FileStore.
func LoadFile(path string) (map[models.StateKey][]float64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, path)
	}
	if err != nil {
		return nil, err
	}

	values := map[models.StateKey][]float64{}
	if err = json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return values, nil
}
