// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

type watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	timerMu sync.Mutex
	timer   *time.Timer
}

// Watch reloads the catalog whenever its file changes, until ctx is done or
// Close is called. The parent directory is watched so that editors which
// replace the file by rename are picked up. An invalid file is logged and the
// previous list stays in effect.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration) error {
	if c.path == "" {
		return fmt.Errorf("catalog has no backing file")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.watcher != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(c.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}

	w := &watcher{
		fs:       fsw,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	c.watcher = w
	go c.watchLoop(ctx, w)

	c.logger.Info("watching database catalog", zap.String("file", c.path))
	return nil
}

func (c *Catalog) watchLoop(ctx context.Context, w *watcher) {
	defer close(w.doneCh)
	target := filepath.Clean(c.path)

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule(c.reloadFromWatch)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			c.logger.Error("catalog watcher error", zap.Error(err))

		case <-w.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (c *Catalog) reloadFromWatch() {
	if err := c.Reload(); err != nil {
		c.logger.Error("catalog reload failed, keeping previous databases",
			zap.String("file", c.path),
			zap.Error(err))
	}
}

func (w *watcher) schedule(fn func()) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, fn)
}

// Close stops the watcher, if any.
func (c *Catalog) Close() error {
	c.watchMu.Lock()
	w := c.watcher
	c.watcher = nil
	c.watchMu.Unlock()
	if w == nil {
		return nil
	}

	w.stopOnce.Do(func() { close(w.stopCh) })
	err := w.fs.Close()
	<-w.doneCh

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()
	return err
}
