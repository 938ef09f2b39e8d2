package status

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/smartgov/exgratia/internal/models"
)

// CachedSource keeps the parsed rows of a CSV file in memory and drops them
// whenever the file is written, created, renamed or removed.
type CachedSource struct {
	csv     *CSVSource
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	records []models.ApplicationRecord
	loaded  bool
	gen     uint64

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

var _ Source = (*CachedSource)(nil)

// NewCachedSource creates a cache over the CSV file at path. Call Start to begin watching.
func NewCachedSource(path string) (*CachedSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &CachedSource{
		csv:     NewCSVSource(path),
		watcher: w,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start watches the directory holding the file, so replacing the file is noticed too.
func (c *CachedSource) Start(ctx context.Context) error {
	dir := filepath.Dir(c.csv.Path())
	if err := c.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	slog.Info("CachedSource watching status file", "path", c.csv.Path())
	go c.run(ctx)
	return nil
}

// Close stops the watcher goroutine and releases the watcher.
func (c *CachedSource) Close() error {
	var err error
	c.once.Do(func() {
		close(c.stopCh)
		err = c.watcher.Close()
	})
	return err
}

// Done is closed once the watch loop has exited.
func (c *CachedSource) Done() <-chan struct{} {
	return c.doneCh
}

func (c *CachedSource) run(ctx context.Context) {
	defer close(c.doneCh)
	target := filepath.Clean(c.csv.Path())

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("CachedSource invalidated", "path", event.Name, "op", event.Op.String())
			c.Invalidate()
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("CachedSource watcher error", "error", err)
		}
	}
}

// Invalidate drops the cached rows; the next Records call re-reads the file.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	c.records = nil
	c.loaded = false
	c.gen++
	c.mu.Unlock()
}

// Records returns the cached rows, loading the file on first use or after invalidation.
// A failed load is not cached.
func (c *CachedSource) Records(ctx context.Context) ([]models.ApplicationRecord, error) {
	c.mu.RLock()
	if c.loaded {
		records := c.records
		c.mu.RUnlock()
		return records, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	records, err := c.csv.Records(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// An invalidation during the read means the rows may already be stale.
	if c.gen == gen {
		c.records = records
		c.loaded = true
	}
	c.mu.Unlock()
	return records, nil
}
