// Package allowlist answers whether a principal is eligible for an emergency
// bypass grant. Eligibility is operator-managed through a TOML file; the file
// is reloaded on change so revoking eligibility does not need a restart.
package allowlist

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

type fileFormat struct {
	Principals []string `toml:"principals"`
}

// Allowlist is a hot-reloading view over the eligibility file. An empty or
// missing file means nobody is eligible.
type Allowlist struct {
	path   string
	logger *slog.Logger

	mu         sync.RWMutex
	principals map[string]struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func New(path string, logger *slog.Logger) (*Allowlist, error) {
	a := &Allowlist{
		path:       path,
		logger:     logger,
		principals: map[string]struct{}{},
	}
	if err := a.reload(); err != nil {
		return nil, err
	}
	return a, nil
}

// IsOnEmergencyAllowlist reports whether the principal may receive a bypass.
func (a *Allowlist) IsOnEmergencyAllowlist(_ context.Context, principalID string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.principals[principalID]
	return ok, nil
}

func (a *Allowlist) reload() error {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			a.mu.Lock()
			a.principals = map[string]struct{}{}
			a.mu.Unlock()
			return nil
		}
		return err
	}

	var parsed fileFormat
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return err
	}

	principals := make(map[string]struct{}, len(parsed.Principals))
	for _, p := range parsed.Principals {
		principals[p] = struct{}{}
	}

	a.mu.Lock()
	a.principals = principals
	a.mu.Unlock()
	return nil
}

// Watch reloads the file whenever it changes. Watching the parent directory
// rather than the file itself survives the rename-replace that editors and
// config management tools do.
func (a *Allowlist) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(a.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	a.watcher = watcher
	a.done = make(chan struct{})
	go a.processEvents()
	return nil
}

func (a *Allowlist) processEvents() {
	defer close(a.done)

	for {
		select {
		case event, ok := <-a.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(a.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if err := a.reload(); err != nil {
				// Keep serving the last good list on a bad edit.
				a.logger.Warn("allowlist reload failed", "path", a.path, "error", err)
				continue
			}
			a.logger.Info("allowlist reloaded", "path", a.path, "principals", a.size())

		case err, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
			a.logger.Warn("allowlist watcher error", "error", err)
		}
	}
}

func (a *Allowlist) size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.principals)
}

func (a *Allowlist) Close() error {
	if a.watcher == nil {
		return nil
	}
	err := a.watcher.Close()
	<-a.done
	return err
}
