package filecache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marketlens/backend/pkg/logger"
)

type Metadata struct {
	CreatedAt time.Time              `json:"created_at"`
	Query     map[string]interface{} `json:"query,omitempty"`
	Rows      int                    `json:"rows"`
}

type Store struct {
	dir string
	ttl time.Duration
}

func NewStore(dir string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	return &Store{dir: dir, ttl: ttl}, nil
}

func (s *Store) Get(key string, out interface{}) bool {
	path := s.payloadPath(key)

	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if s.ttl > 0 && time.Since(info.ModTime()) > s.ttl {
		logger.Debug("Cache entry expired", zap.String("key", key))
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read cache entry", zap.String("key", key), zap.Error(err))
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		logger.Warn("Failed to decode cache entry", zap.String("key", key), zap.Error(err))
		return false
	}

	logger.Debug("Cache hit", zap.String("key", key))
	return true
}

func (s *Store) Set(key string, payload interface{}, meta Metadata) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}

	if err := s.writeAtomic(s.payloadPath(key), data); err != nil {
		logger.Warn("Failed to write cache entry", zap.String("key", key), zap.Error(err))
		return
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		logger.Warn("Failed to encode cache metadata", zap.String("key", key), zap.Error(err))
		return
	}

	if err := s.writeAtomic(s.metaPath(key), metaData); err != nil {
		logger.Warn("Failed to write cache metadata", zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) Meta(key string) (*Metadata, bool) {
	data, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		return nil, false
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		logger.Warn("Failed to decode cache metadata", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return &meta, true
}

func (s *Store) Purge(olderThan time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logger.Warn("Failed to read cache dir", zap.Error(err))
		return 0
	}

	removed := 0
	cutoff := time.Now().Add(-olderThan)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		logger.Info("Purged expired cache entries", zap.Int("removed", removed))
	}

	return removed
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) payloadPath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) metaPath(key string) string {
	return filepath.Join(s.dir, key+".meta.json")
}
