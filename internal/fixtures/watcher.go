package fixtures

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"adoptsim/internal/logging"
	"adoptsim/internal/store"
)

// Watcher flags retrieval collections dirty when their fixture files change
// on disk. It does not reindex by itself; the owner polls DirtyCollections
// (or receives the callback) and decides when to rebuild.
type Watcher struct {
	fsw     *fsnotify.Watcher
	onDirty func(collection string)

	mu    sync.Mutex
	dirty map[string]bool
	done  chan struct{}
}

// Watch starts watching the fixture directory. onDirty may be nil.
func Watch(dir string, onDirty func(collection string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	// Metrics docs live in a subdirectory; watch it when present.
	if err := fsw.Add(filepath.Join(dir, metricsDir)); err != nil {
		logging.Fixtures("metrics dir not watched: %v", err)
	}

	w := &Watcher{
		fsw:     fsw,
		onDirty: onDirty,
		dirty:   make(map[string]bool),
		done:    make(chan struct{}),
	}
	go w.loop()
	logging.Fixtures("watching %s for fixture changes", dir)
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if col := collectionFor(event.Name); col != "" {
				w.markDirty(col)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Fixtures("watcher error: %v", err)
		}
	}
}

// collectionFor maps a changed path to the collection it backs.
func collectionFor(path string) string {
	base := filepath.Base(path)
	switch base {
	case profilesFile:
		return store.CollectionProfiles
	case eventsFile:
		return store.CollectionEvents
	case playbooksFile:
		return store.CollectionPlaybooks
	}
	if strings.HasSuffix(base, ".md") {
		return store.CollectionMetrics
	}
	return ""
}

func (w *Watcher) markDirty(collection string) {
	w.mu.Lock()
	w.dirty[collection] = true
	w.mu.Unlock()
	logging.Fixtures("collection %s marked dirty", collection)
	if w.onDirty != nil {
		w.onDirty(collection)
	}
}

// DirtyCollections returns and clears the set of collections whose fixtures
// changed since the last call.
func (w *Watcher) DirtyCollections() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.dirty))
	for col := range w.dirty {
		out = append(out, col)
	}
	w.dirty = make(map[string]bool)
	return out
}

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
