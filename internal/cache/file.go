// Package cache keeps a local JSON snapshot of a closet so it can be shown
// when the record store cannot be reached.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vbonduro/wardrobe/internal/domain"
)

type snapshot struct {
	Records []domain.ClothingRecord `json:"records"`
}

// FileCache stores one snapshot file. It satisfies closet.Cache.
type FileCache struct {
	path string
	mu   sync.Mutex
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// LoadCachedRecords returns the last saved records. A missing snapshot is an
// empty closet.
func (c *FileCache) LoadCachedRecords(ctx context.Context) ([]domain.ClothingRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.ClothingRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Records == nil {
		snap.Records = []domain.ClothingRecord{}
	}
	return snap.Records, nil
}

// SaveCachedRecords replaces the snapshot. The file is written beside the
// target and renamed so readers never see a partial snapshot.
func (c *FileCache) SaveCachedRecords(ctx context.Context, records []domain.ClothingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(snapshot{Records: records})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Remove deletes the snapshot. A missing file is not an error.
func (c *FileCache) Remove() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}
