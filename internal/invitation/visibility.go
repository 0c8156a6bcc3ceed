package invitation

import "sync"

// Visibility tracks whether the UI is in the foreground, as reported by the UI itself.
// It starts out visible.
type Visibility struct {
	mu        sync.Mutex
	visible   bool
	next      int
	listeners map[int]func(visible bool)
}

func NewVisibility() *Visibility {
	return &Visibility{visible: true, listeners: make(map[int]func(bool))}
}

// Visible reports the last reported state.
func (v *Visibility) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// Set records a new state. Listeners run only when the state actually changes.
func (v *Visibility) Set(visible bool) {
	v.mu.Lock()
	if v.visible == visible {
		v.mu.Unlock()
		return
	}
	v.visible = visible
	fns := make([]func(bool), 0, len(v.listeners))
	for _, fn := range v.listeners {
		fns = append(fns, fn)
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(visible)
	}
}

// Subscribe registers fn for state changes and returns a function removing it.
func (v *Visibility) Subscribe(fn func(visible bool)) (unsubscribe func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.next
	v.next++
	v.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.listeners, id)
			v.mu.Unlock()
		})
	}
}

// Listeners returns how many listeners are registered.
func (v *Visibility) Listeners() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.listeners)
}
