package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher signals when a configuration file changes on disk. It only
// reports that a change happened; callers decide when to Reload and swap.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan string
	done    chan struct{}
}

// NewWatcher watches the user config, the project config (when present),
// and the presets file. Paths that do not exist yet are skipped.
func NewWatcher() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	w := &Watcher{
		fsw:     fsw,
		changes: make(chan string, 1),
		done:    make(chan struct{}),
	}

	for _, path := range []string{GetUserConfigPath(), GetProjectConfigPath(), GetPresetsPath()} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// Watch the directory: editors replace files on save, which drops
		// a direct file watch.
		if err := fsw.Add(filepath.Dir(path)); err != nil {
			log.Printf("[config] warning: cannot watch %s: %v", path, err)
		}
	}

	go w.loop()
	return w, nil
}

// Changes delivers the path of each changed configuration file. The
// channel holds one pending notification; bursts collapse into it.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	watched := map[string]bool{
		GetUserConfigPath(): true,
		GetPresetsPath():    true,
	}
	if p := GetProjectConfigPath(); p != "" {
		watched[p] = true
	}

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !watched[event.Name] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.changes <- event.Name:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[config] warning: watcher error: %v", err)
		}
	}
}
