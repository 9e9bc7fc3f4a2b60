package server

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"gardi.app/cli/internal/application/services"
)

// reloadDebounce coalesces the burst of write events a spreadsheet save
// produces into one reload.
const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the workbench when its backing workbook files change.
type Watcher struct {
	wb      *services.Workbench
	watcher *fsnotify.Watcher
}

// NewWatcher watches the given files for changes.
func NewWatcher(wb *services.Workbench, paths ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}
	return &Watcher{wb: wb, watcher: fsw}, nil
}

// Run blocks until the context is cancelled, reloading on each debounced
// change. Reload failures are logged, not fatal: the previous timetable
// stays live.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	trigger := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.Debug("workbook changed", "path", ev.Name, "op", ev.Op)
				trigger()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("file watcher error", "err", err)
		case <-reload:
			if err := w.wb.Reload(); err != nil {
				log.Error("workbook reload failed", "err", err)
				continue
			}
			log.Info("workbooks reloaded")
		}
	}
}
