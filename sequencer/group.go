package sequencer

import (
	"sort"
	"sync"

	"go-phrase/errs"
)

// TrackGroup holds the tracks an engine plays and the order they update in
type TrackGroup struct {
	mu       sync.Mutex
	tracks   map[string]*Track
	order    []*Track // insertion order
	priority []*Track
}

// NewTrackGroup creates an empty group
func NewTrackGroup() *TrackGroup {
	return &TrackGroup{tracks: make(map[string]*Track)}
}

// Add inserts t and every sync child reachable from it. A track with the
// same name is replaced.
func (g *TrackGroup) Add(t *Track) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addLocked(t)
	g.rebuild()
}

func (g *TrackGroup) addLocked(t *Track) {
	if old, ok := g.tracks[t.Name]; ok {
		if old == t {
			return
		}
		g.removeLocked(old)
	}
	g.tracks[t.Name] = t
	g.order = append(g.order, t)
	for _, c := range t.Children() {
		g.addLocked(c)
	}
}

// Remove drops the named track; its children become roots
func (g *TrackGroup) Remove(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.tracks[name]; ok {
		g.removeLocked(t)
		g.rebuild()
	}
}

func (g *TrackGroup) removeLocked(t *Track) {
	delete(g.tracks, t.Name)
	for i, o := range g.order {
		if o == t {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	unsync(t)
	for _, c := range t.Children() {
		unsync(c)
	}
}

// unsync detaches t from its parent
func unsync(t *Track) {
	t.mu.Lock()
	p := t.parent
	t.parent = nil
	t.mu.Unlock()
	if p == nil {
		return
	}
	p.mu.Lock()
	for i, c := range p.children {
		if c == t {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}

// Sync makes child start whenever parent starts a sequence. A nil parent
// detaches child. Cycles are rejected.
func (g *TrackGroup) Sync(child, parent *Track) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for p := parent; p != nil; p = p.Parent() {
		if p == child {
			return errs.New(errs.SyncCycle, "sync of %q to %q would form a cycle", child.Name, parent.Name)
		}
	}
	unsync(child)
	if parent != nil {
		child.mu.Lock()
		child.parent = parent
		child.mu.Unlock()
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
		if _, ok := g.tracks[parent.Name]; !ok {
			g.addLocked(parent)
		}
	}
	if _, ok := g.tracks[child.Name]; !ok {
		g.addLocked(child)
	}
	g.rebuild()
	return nil
}

// rebuild flattens the sync forest: later roots first, each followed by
// its children depth first in insertion order
func (g *TrackGroup) rebuild() {
	g.priority = g.priority[:0]
	seen := make(map[*Track]bool, len(g.order))
	var visit func(t *Track)
	visit = func(t *Track) {
		if seen[t] {
			return
		}
		if _, ok := g.tracks[t.Name]; !ok {
			return
		}
		seen[t] = true
		g.priority = append(g.priority, t)
		for _, c := range t.Children() {
			visit(c)
		}
	}
	for i := len(g.order) - 1; i >= 0; i-- {
		t := g.order[i]
		if p := t.Parent(); p != nil {
			if _, ok := g.tracks[p.Name]; ok {
				continue
			}
		}
		visit(t)
	}
}

// Priority returns the update order
func (g *TrackGroup) Priority() []*Track {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Track(nil), g.priority...)
}

// Get returns the named track
func (g *TrackGroup) Get(name string) (*Track, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tracks[name]
	return t, ok
}

// Sorted returns the tracks ordered by name
func (g *TrackGroup) Sorted() []*Track {
	g.mu.Lock()
	out := make([]*Track, 0, len(g.tracks))
	for _, t := range g.tracks {
		out = append(out, t)
	}
	g.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of tracks
func (g *TrackGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tracks)
}

// StopAll stops every track
func (g *TrackGroup) StopAll() {
	for _, t := range g.Priority() {
		t.Stop()
	}
}

// AllStopped reports whether no track is playing
func (g *TrackGroup) AllStopped() bool {
	for _, t := range g.Priority() {
		if t.Playing() {
			return false
		}
	}
	return true
}

// ClearAll stops every track and empties its queue
func (g *TrackGroup) ClearAll() {
	for _, t := range g.Priority() {
		t.Stop()
		t.Clear()
	}
}

// StartRoots rewinds every track and starts those with items and no sync
// parent; children follow their parents
func (g *TrackGroup) StartRoots() {
	for _, t := range g.Priority() {
		t.Rewind()
		if t.Parent() == nil && len(t.Items()) > 0 {
			t.Start()
		}
	}
}
