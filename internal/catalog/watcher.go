package catalog

import "sync"

// Watcher tracks, per registered key, whether the watched table changed
// since the key was registered. Keys must be comparable.
type Watcher struct {
	mu    sync.Mutex
	flags map[any]bool
}

func newWatcher() *Watcher {
	return &Watcher{flags: make(map[any]bool)}
}

// Register adds key with a cleared flag. Registering an existing key
// clears its flag.
func (w *Watcher) Register(key any) {
	w.mu.Lock()
	w.flags[key] = false
	w.mu.Unlock()
}

// Unregister removes key.
func (w *Watcher) Unregister(key any) {
	w.mu.Lock()
	delete(w.flags, key)
	w.mu.Unlock()
}

// IsRegistered reports whether key is registered.
func (w *Watcher) IsRegistered(key any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.flags[key]
	return ok
}

// IsUpdated reports whether the table changed since key was registered.
// Reading does not clear the flag. Unknown keys report false.
func (w *Watcher) IsUpdated(key any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flags[key]
}

// MarkChanged sets the flag of every registered key.
func (w *Watcher) MarkChanged() {
	w.mu.Lock()
	for k := range w.flags {
		w.flags[k] = true
	}
	w.mu.Unlock()
}
