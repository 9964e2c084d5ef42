package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opencode-ai/pocketcode/internal/bus"
	"github.com/opencode-ai/pocketcode/internal/logging"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads the server list when the persisted files change outside this
// process (another instance, manual edits). It blocks until ctx is done.
func (r *Registry) Watch(ctx context.Context) error {
	dir := filepath.Join(r.store.BasePath(), "servers")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Ignore our own tmp-file churn.
			if strings.HasSuffix(ev.Name, ".tmp") {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			r.mu.Lock()
			err := r.loadLocked(ctx)
			r.mu.Unlock()
			if err != nil {
				logging.Warn().Err(err).Msg("failed to reload server list")
				continue
			}
			logging.Debug().Msg("server list reloaded from disk")
			r.bus.Publish(bus.TopicRegistry, "")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn().Err(err).Msg("server list watcher error")
		}
	}
}
