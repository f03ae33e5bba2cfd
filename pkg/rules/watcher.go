package rules

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// PackWatcher monitors a rule pack file and swaps the engine's rule
// list when the pack changes. The built-in rules always stay in front
// of the pack rules; a pack that fails to parse leaves the previous
// rule list in place.
type PackWatcher struct {
	watcher   *fsnotify.Watcher
	engine    *Engine
	packPath  string
	logger    zerolog.Logger
	done      chan struct{}
	debounce  *time.Timer
	debounceM sync.Mutex
	stopOnce  sync.Once
}

// NewPackWatcher creates a watcher for the given pack file.
func NewPackWatcher(engine *Engine, packPath string, logger zerolog.Logger) (*PackWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &PackWatcher{
		watcher:  watcher,
		engine:   engine,
		packPath: packPath,
		logger:   logger.With().Str("component", "rulepack_watcher").Logger(),
		done:     make(chan struct{}),
	}, nil
}

// Start performs an initial load and begins watching the pack's
// directory. Watching the directory rather than the file survives
// editors that replace the file on save.
func (w *PackWatcher) Start() error {
	if err := w.reload(); err != nil {
		w.logger.Warn().Err(err).Str("path", w.packPath).Msg("Initial rule pack load failed, using built-in rules")
	}

	if err := w.watcher.Add(filepath.Dir(w.packPath)); err != nil {
		return fmt.Errorf("failed to watch rule pack directory: %w", err)
	}

	go w.loop()
	return nil
}

func (w *PackWatcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.packPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Rule pack watcher error")
		case <-w.done:
			return
		}
	}
}

// scheduleReload debounces bursts of write events from a single save.
func (w *PackWatcher) scheduleReload() {
	w.debounceM.Lock()
	defer w.debounceM.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(200*time.Millisecond, func() {
		if err := w.reload(); err != nil {
			w.logger.Warn().Err(err).Msg("Rule pack reload failed, keeping previous rules")
			return
		}
		w.logger.Info().Str("path", w.packPath).Msg("Rule pack reloaded")
	})
}

func (w *PackWatcher) reload() error {
	pack, err := LoadPack(w.packPath)
	if err != nil {
		return err
	}
	w.engine.Swap(append(DefaultRules(), pack...))
	return nil
}

// Stop shuts down the watcher.
func (w *PackWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}
