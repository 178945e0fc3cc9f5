package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantfold/allocator-bot/internal/modules/allocation"
)

// FileStore persists allocations and tasks as JSON documents in a local
// data folder.
type FileStore struct {
	allocationsPath string
	tasksPath       string
	log             zerolog.Logger
	mu              sync.Mutex
}

// NewFileStore creates a file-backed store rooted at dataFolder.
func NewFileStore(dataFolder, allocationFile, taskFile string, log zerolog.Logger) *FileStore {
	return &FileStore{
		allocationsPath: filepath.Join(dataFolder, allocationFile),
		tasksPath:       filepath.Join(dataFolder, taskFile),
		log:             log.With().Str("store", "file").Logger(),
	}
}

// SaveAllocation inserts or overwrites the rows under id.
func (s *FileStore) SaveAllocation(_ context.Context, id string, rows []allocation.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := make(map[string][]allocation.Row)
	if err := s.readDocument(s.allocationsPath, &collection); err != nil {
		return err
	}
	collection[id] = rows

	if err := s.writeDocument(s.allocationsPath, collection); err != nil {
		return err
	}

	s.log.Debug().Str("allocation_id", id).Int("rows", len(rows)).Msg("Saved allocation")
	return nil
}

// LoadAllocations returns the whole allocation collection. A missing file
// is an empty collection.
func (s *FileStore) LoadAllocations(_ context.Context) (map[string][]allocation.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := make(map[string][]allocation.Row)
	if err := s.readDocument(s.allocationsPath, &collection); err != nil {
		return nil, err
	}
	return collection, nil
}

// SaveTask inserts or overwrites the task under id.
func (s *FileStore) SaveTask(_ context.Context, id string, task TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := make(map[string]TaskRecord)
	if err := s.readDocument(s.tasksPath, &collection); err != nil {
		return err
	}
	collection[id] = task

	if err := s.writeDocument(s.tasksPath, collection); err != nil {
		return err
	}

	s.log.Debug().Str("allocation_id", id).Msg("Saved task")
	return nil
}

// LoadTasks returns the whole task collection. A missing file is an empty
// collection.
func (s *FileStore) LoadTasks(_ context.Context) (map[string]TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := make(map[string]TaskRecord)
	if err := s.readDocument(s.tasksPath, &collection); err != nil {
		return nil, err
	}
	return collection, nil
}

func (s *FileStore) readDocument(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // missing document is an empty collection
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) writeDocument(path string, collection interface{}) error {
	data, err := json.MarshalIndent(collection, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
