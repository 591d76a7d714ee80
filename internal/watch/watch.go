// Package watch re-runs the resize step whenever files inside a source
// directory change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ironsheep/resize-images/internal/config"
	"github.com/ironsheep/resize-images/internal/manifest"
	"github.com/ironsheep/resize-images/internal/matcher"
	"github.com/ironsheep/resize-images/internal/runner"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits after the last relevant event
// before starting a build.
const DefaultDebounce = 500 * time.Millisecond

// Builder runs one build over a document root. *runner.Runner implements it.
type Builder interface {
	Run(ctx context.Context, docsDir string) (*runner.Summary, error)
}

// Watcher monitors a document root and rebuilds on change.
type Watcher struct {
	docsDir    string
	sourceName string
	extensions []string
	builder    Builder
	logger     *zap.Logger
	debounce   time.Duration
}

// New creates a Watcher for docsDir. Only changes beneath a directory named
// cfg.SourceDir trigger a build. A debounce of zero means DefaultDebounce.
func New(docsDir string, cfg *config.Config, builder Builder, debounce time.Duration, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		docsDir:    docsDir,
		sourceName: cfg.SourceDir,
		extensions: cfg.Extensions,
		builder:    builder,
		logger:     logger,
		debounce:   debounce,
	}
}

// Run performs an initial build, then rebuilds after every burst of relevant
// changes until ctx is cancelled. Build failures are logged and watching
// continues. Run returns nil on cancellation and an error only when the
// watcher could not be set up.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if _, err := w.addTree(fsw, w.docsDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.docsDir, err)
	}

	w.build(ctx)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.handle(fsw, event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.build(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// handle reports whether event should schedule a build. Newly created
// directories are added to the watch list.
func (w *Watcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	rebuild := w.relevant(event.Name)

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			found, err := w.addTree(fsw, event.Name)
			if err != nil {
				w.logger.Warn("failed to watch new directory",
					zap.String("dir", event.Name), zap.Error(err))
			}
			rebuild = rebuild || found
		}
	}

	if rebuild {
		w.logger.Debug("change detected",
			zap.String("path", event.Name),
			zap.Stringer("op", event.Op))
	}
	return rebuild
}

func (w *Watcher) build(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.builder.Run(ctx, w.docsDir); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("build failed", zap.String("docs_dir", w.docsDir), zap.Error(err))
	}
}

// addTree watches root and every directory below it, skipping hidden ones. It
// reports whether the tree already holds anything relevant, which happens when
// a directory appears with content before it could be watched.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) (bool, error) {
	found := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if w.relevant(path) {
			found = true
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
	return found, err
}

// relevant reports whether a change at path can affect the output of a build.
// The path must lie in or be a source directory, and be either a directory or
// a file with a configured image extension. The manifest and its temporary
// files never count.
func (w *Watcher) relevant(path string) bool {
	rel, err := filepath.Rel(w.docsDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}

	base := filepath.Base(path)
	if base == manifest.FileName || manifest.IsTempFile(base) {
		return false
	}

	inSource := false
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == w.sourceName {
			inSource = true
			break
		}
	}
	if !inSource {
		return false
	}

	if matcher.HasExtension(base, w.extensions) {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
