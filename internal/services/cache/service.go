// Package cache manages the disk-backed online cache where completed
// products live until purge. Artifacts are laid out one directory per
// order under the configured root.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
)

// Service implements the online cache over a local filesystem root.
type Service struct {
	root   string
	logger arbor.ILogger
}

var _ interfaces.OnlineCache = (*Service)(nil)

// NewService creates a new cache service rooted at cfg.Cache.Root.
func NewService(cfg *common.Config, logger arbor.ILogger) (*Service, error) {
	root, err := filepath.Abs(cfg.Cache.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid cache root %s: %w", cfg.Cache.Root, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}
	return &Service{
		root:   root,
		logger: logger,
	}, nil
}

// Delete removes the order's artifact directory. A directory that does not
// exist is a successful delete.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	dir, err := s.orderDir(orderID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete cache directory for order %s: %w", orderID, err)
	}
	s.logger.Debug().Str("order_id", orderID).Str("dir", dir).Msg("Deleted order artifacts")
	return nil
}

// List returns the artifact paths stored for the order, relative to the
// cache root.
func (s *Service) List(ctx context.Context, orderID string) ([]string, error) {
	dir, err := s.orderDir(orderID)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, rel)
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts for order %s: %w", orderID, err)
	}
	return paths, nil
}

// Capacity reports the cache volume's disk usage.
func (s *Service) Capacity(ctx context.Context) (*interfaces.CacheCapacity, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.root, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat cache volume: %w", err)
	}

	capacity := int64(stat.Blocks) * int64(stat.Bsize)
	available := int64(stat.Bavail) * int64(stat.Bsize)
	used := capacity - int64(stat.Bfree)*int64(stat.Bsize)

	snapshot := &interfaces.CacheCapacity{
		Capacity:  capacity,
		Used:      used,
		Available: available,
	}
	if capacity > 0 {
		snapshot.PercentFree = float64(available) / float64(capacity) * 100
	}
	return snapshot, nil
}

// VerifyArtifact confirms the artifact exists on the cache volume and
// returns its size. An empty file is treated as missing.
func (s *Service) VerifyArtifact(ctx context.Context, path string) (int64, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.root, path)
	}
	if err := s.guard(full); err != nil {
		return 0, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return 0, fmt.Errorf("artifact %s not found: %w", path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("artifact %s is a directory", path)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("artifact %s is empty", path)
	}
	return info.Size(), nil
}

// orderDir resolves the order's directory and guards against path escape.
func (s *Service) orderDir(orderID string) (string, error) {
	dir := filepath.Join(s.root, orderID)
	if err := s.guard(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *Service) guard(path string) error {
	clean := filepath.Clean(path)
	if clean != s.root && !strings.HasPrefix(clean, s.root+string(filepath.Separator)) {
		return fmt.Errorf("path %s escapes cache root", path)
	}
	return nil
}
