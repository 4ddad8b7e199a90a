package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounce coalesces the bursts of write events editors and atomic-save
// tools produce for a single logical change.
const debounce = 300 * time.Millisecond

// Watch reloads the config file on change and calls apply with each
// successfully loaded config. It blocks until ctx is cancelled. A config
// that fails to load is logged and skipped; the previous one stays live.
func Watch(ctx context.Context, path string, log zerolog.Logger, apply func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return err
	}

	var pending *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Atomic saves replace the file; re-arm the watch.
			if ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Create) {
				_ = w.Add(path)
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher error")
		case <-fire:
			cfg, err := Load(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("config reload failed, keeping previous config")
				continue
			}
			log.Info().Str("path", path).Msg("config reloaded")
			apply(cfg)
		}
	}
}
