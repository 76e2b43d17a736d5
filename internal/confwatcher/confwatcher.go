// Package confwatcher contains a configuration watcher.
package confwatcher

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	minInterval = 1 * time.Second
)

// ConfWatcher is a configuration file watcher.
type ConfWatcher struct {
	FilePath string

	inner       *fsnotify.Watcher
	watchedPath string

	// out
	signal chan struct{}
	done   chan struct{}
}

// Initialize initializes a ConfWatcher.
func (w *ConfWatcher) Initialize() error {
	_, err := os.Stat(w.FilePath)
	if err != nil {
		return err
	}

	w.inner, err = fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	absolutePath, _ := filepath.Abs(w.FilePath)
	w.watchedPath, _ = filepath.EvalSymlinks(absolutePath)

	// watch the parent directory, since editors usually replace the file
	// with a rename.
	err = w.inner.Add(filepath.Dir(w.watchedPath))
	if err != nil {
		w.inner.Close() //nolint:errcheck
		return err
	}

	w.signal = make(chan struct{})
	w.done = make(chan struct{})

	go w.run()

	return nil
}

// Close closes a ConfWatcher.
func (w *ConfWatcher) Close() {
	go func() {
		for range w.signal {
		}
	}()
	w.inner.Close() //nolint:errcheck
	<-w.done
}

func (w *ConfWatcher) run() {
	defer close(w.done)
	defer close(w.signal)

	var lastCalled time.Time

	for {
		select {
		case event, ok := <-w.inner.Events:
			if !ok {
				return
			}

			if time.Since(lastCalled) < minInterval {
				continue
			}

			currentPath, _ := filepath.EvalSymlinks(w.watchedPath)
			eventPath, _ := filepath.Abs(event.Name)
			eventPath, _ = filepath.EvalSymlinks(eventPath)

			if currentPath == "" || currentPath != eventPath {
				continue
			}

			if (event.Op&fsnotify.Write) == fsnotify.Write ||
				(event.Op&fsnotify.Create) == fsnotify.Create {
				// wait some additional time to allow the writer to complete its job
				time.Sleep(10 * time.Millisecond)
				lastCalled = time.Now()
				w.signal <- struct{}{}
			}

		case _, ok := <-w.inner.Errors:
			if !ok {
				return
			}
		}
	}
}

// Watch returns a channel that is called after the configuration file has changed.
func (w *ConfWatcher) Watch() chan struct{} {
	return w.signal
}
