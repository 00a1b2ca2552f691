package midi

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-phrase/debug"
)

// PortEventType tells whether a port appeared or went away
type PortEventType int

const (
	PortAdded PortEventType = iota
	PortRemoved
)

func (t PortEventType) String() string {
	if t == PortRemoved {
		return "removed"
	}
	return "added"
}

// PortEvent is emitted when the driver's port list changes
type PortEvent struct {
	Type  PortEventType
	Input bool
	Name  string
}

// Watcher polls an opener for hot-plugged ports
type Watcher struct {
	opener   Opener
	mu       sync.RWMutex
	outs     map[string]bool
	ins      map[string]bool
	events   chan PortEvent
	pollRate time.Duration
}

// NewWatcher creates a watcher polling once a second
func NewWatcher(opener Opener) *Watcher {
	return &Watcher{
		opener:   opener,
		outs:     make(map[string]bool),
		ins:      make(map[string]bool),
		events:   make(chan PortEvent, 16),
		pollRate: time.Second,
	}
}

// Events returns the channel of port changes; it is closed when Run returns
func (w *Watcher) Events() <-chan PortEvent {
	return w.events
}

// Outputs returns the outputs seen on the last scan, sorted
func (w *Watcher) Outputs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedKeys(w.outs)
}

// Inputs returns the inputs seen on the last scan, sorted
func (w *Watcher) Inputs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedKeys(w.ins)
}

// Run polls until ctx is done (blocking - run in goroutine)
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()
	defer close(w.events)

	w.scan()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *Watcher) scan() {
	outs, err := w.opener.OutNames()
	if err != nil {
		// a hung driver skips this scan
		debug.Log("port", "scan outputs: %v", err)
		return
	}
	ins, err := w.opener.InNames()
	if err != nil {
		debug.Log("port", "scan inputs: %v", err)
		return
	}

	w.mu.Lock()
	var evs []PortEvent
	evs = append(evs, diff(w.outs, outs, false)...)
	evs = append(evs, diff(w.ins, ins, true)...)
	w.mu.Unlock()

	for _, ev := range evs {
		select {
		case w.events <- ev:
		default:
			debug.Log("port", "dropped %s event for %q", ev.Type, ev.Name)
		}
	}
}

// diff updates known to names and reports what changed
func diff(known map[string]bool, names []string, input bool) []PortEvent {
	var evs []PortEvent
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
		if !known[n] {
			known[n] = true
			evs = append(evs, PortEvent{Type: PortAdded, Input: input, Name: n})
		}
	}
	for _, n := range sortedKeys(known) {
		if !seen[n] {
			delete(known, n)
			evs = append(evs, PortEvent{Type: PortRemoved, Input: input, Name: n})
		}
	}
	return evs
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
