package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mobilizeio/partitioned/schema"
)

// Watch reloads reg from path whenever the file changes, until ctx is
// done. A file that fails to load is logged and the registry keeps its
// current entries. The parent directory is watched so that editors that
// replace the file by renaming are followed.
func Watch(ctx context.Context, path string, reg *schema.Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	path = filepath.Clean(path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watching %s: %w", path, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := Reload(path, reg); err != nil {
				logger.ErrorContext(ctx, "config: reload failed", "path", path, "error", err)
				continue
			}
			logger.InfoContext(ctx, "config: registry reloaded", "path", path, "tables", reg.Tables())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "config: watcher error", "path", path, "error", err)
		}
	}
}

// Reload loads path and swaps the entries of reg.
func Reload(path string, reg *schema.Registry) error {
	f, err := Load(path)
	if err != nil {
		return err
	}
	entries, err := f.Entries()
	if err != nil {
		return err
	}
	return reg.Replace(entries...)
}
