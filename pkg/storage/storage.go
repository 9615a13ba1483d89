package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Engine wires a DiskManager and a BufferPool together over a single data
// directory. It owns no structural knowledge of what the pages contain;
// that belongs to pkg/index.
type Engine struct {
	disk *DiskManager
	pool *BufferPool
}

// Config holds storage engine configuration.
type Config struct {
	DataDir        string
	BufferPoolSize int // number of pages to cache
}

// DefaultConfig returns a Config with a modest default buffer pool.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		DataDir:        dataDir,
		BufferPoolSize: 1000, // ~4MB resident
	}
}

// NewEngine creates the data directory if needed, opens the backing file,
// and constructs the buffer pool over it.
func NewEngine(config *Config) (*Engine, error) {
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	disk, err := NewDiskManager(filepath.Join(config.DataDir, "data.db"))
	if err != nil {
		return nil, fmt.Errorf("open disk manager: %w", err)
	}

	return &Engine{
		disk: disk,
		pool: NewBufferPool(config.BufferPoolSize, disk),
	}, nil
}

// Pool returns the underlying buffer pool, the only channel through which
// callers may touch pages.
func (e *Engine) Pool() *BufferPool { return e.pool }

// Disk returns the underlying disk manager, primarily for Stats().
func (e *Engine) Disk() *DiskManager { return e.disk }

// Close flushes every dirty page and closes the backing file.
func (e *Engine) Close() error {
	if err := e.pool.FlushAllPages(); err != nil {
		return fmt.Errorf("flush on close: %w", err)
	}
	return e.disk.Close()
}

// Stats reports combined buffer pool and disk manager telemetry.
func (e *Engine) Stats() map[string]any {
	return map[string]any{
		"buffer_pool": e.pool.Stats(),
		"disk":        e.disk.Stats(),
	}
}
