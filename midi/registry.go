package midi

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go-phrase/debug"
	"go-phrase/errs"
)

// Opener abstracts the MIDI driver
type Opener interface {
	OutNames() ([]string, error)
	InNames() ([]string, error)
	OpenOut(name string) (Sink, error)
	OpenIn(name string, recv func(msg []byte)) (stop func(), err error)
}

// RetryInterval is how long a failed output lookup is remembered before
// the driver is scanned again
const RetryInterval = 2 * time.Second

// Registry opens ports on demand and caches them by resolved name
type Registry struct {
	opener Opener

	mu         sync.RWMutex
	outs       map[string]*OutPort
	ins        map[string]*InPort
	misses     map[string]time.Time
	defaultOut string
	defaultIn  string

	now func() time.Time
}

// NewRegistry creates a registry over opener
func NewRegistry(opener Opener) *Registry {
	return &Registry{
		opener: opener,
		outs:   make(map[string]*OutPort),
		ins:    make(map[string]*InPort),
		misses: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Resolve matches want against names: exact first, then a case-insensitive
// substring. The empty string matches the first name.
func Resolve(names []string, want string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	if want == "" {
		return names[0], true
	}
	for _, n := range names {
		if n == want {
			return n, true
		}
	}
	lw := strings.ToLower(want)
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), lw) {
			return n, true
		}
	}
	return "", false
}

// SetDefaultOut sets the port used for events without a port name
func (r *Registry) SetDefaultOut(name string) {
	r.mu.Lock()
	r.defaultOut = name
	r.mu.Unlock()
}

// SetDefaultIn sets the input port opened by DefaultIn
func (r *Registry) SetDefaultIn(name string) {
	r.mu.Lock()
	r.defaultIn = name
	r.mu.Unlock()
}

// OutNames lists available outputs
func (r *Registry) OutNames() ([]string, error) {
	if r.opener == nil {
		return nil, nil
	}
	return r.opener.OutNames()
}

// InNames lists available inputs
func (r *Registry) InNames() ([]string, error) {
	if r.opener == nil {
		return nil, nil
	}
	return r.opener.InNames()
}

// Out returns the output port matching name, opening it if needed.
// An empty name means the default output. Returns nil when nothing matches.
func (r *Registry) Out(name string) *OutPort {
	r.mu.RLock()
	if name == "" {
		name = r.defaultOut
	}
	if p, ok := r.outs[name]; ok {
		r.mu.RUnlock()
		return p
	}
	missed, ok := r.misses[name]
	r.mu.RUnlock()
	if ok && r.now().Sub(missed) < RetryInterval {
		return nil
	}

	p, err := r.openOut(name)
	if err != nil {
		debug.Log("port", "%v", err)
		r.mu.Lock()
		r.misses[name] = r.now()
		r.mu.Unlock()
		return nil
	}
	r.mu.Lock()
	delete(r.misses, name)
	r.mu.Unlock()
	return p
}

// Rescan forgets failed lookups so the next Out scans the driver again.
// Call it when a port appears.
func (r *Registry) Rescan() {
	r.mu.Lock()
	r.misses = make(map[string]time.Time)
	r.mu.Unlock()
}

func (r *Registry) openOut(want string) (*OutPort, error) {
	if r.opener == nil {
		return nil, errs.New(errs.PortNotFound, "no MIDI driver for output %q", want)
	}
	names, err := r.opener.OutNames()
	if err != nil {
		return nil, errs.Wrap(err, errs.PortNotFound, "list outputs")
	}
	resolved, ok := Resolve(names, want)
	if !ok {
		return nil, errs.New(errs.PortNotFound, "no output matches %q", want)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another caller may have opened it meanwhile
	if p, ok := r.outs[resolved]; ok {
		r.outs[want] = p
		return p, nil
	}
	sink, err := r.opener.OpenOut(resolved)
	if err != nil {
		return nil, errs.Wrap(err, errs.PortNotFound, "open output "+resolved)
	}
	p := NewOutPort(resolved, sink)
	r.outs[resolved] = p
	if want != resolved {
		r.outs[want] = p
	}
	debug.Log("port", "opened output %q for %q", resolved, want)
	return p, nil
}

// In returns the input port matching name, opening it if needed.
// Returns nil when nothing matches.
func (r *Registry) In(name string) *InPort {
	r.mu.RLock()
	if name == "" {
		name = r.defaultIn
	}
	if p, ok := r.ins[name]; ok {
		r.mu.RUnlock()
		return p
	}
	r.mu.RUnlock()

	p, err := r.openIn(name)
	if err != nil {
		debug.Log("port", "%v", err)
		return nil
	}
	return p
}

func (r *Registry) openIn(want string) (*InPort, error) {
	if r.opener == nil {
		return nil, errs.New(errs.PortNotFound, "no MIDI driver for input %q", want)
	}
	names, err := r.opener.InNames()
	if err != nil {
		return nil, errs.Wrap(err, errs.PortNotFound, "list inputs")
	}
	resolved, ok := Resolve(names, want)
	if !ok {
		return nil, errs.New(errs.PortNotFound, "no input matches %q", want)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.ins[resolved]; ok {
		r.ins[want] = p
		return p, nil
	}
	p := newInPort(resolved)
	stop, err := r.opener.OpenIn(resolved, p.Receive)
	if err != nil {
		return nil, errs.Wrap(err, errs.PortNotFound, "open input "+resolved)
	}
	p.stop = stop
	r.ins[resolved] = p
	if want != resolved {
		r.ins[want] = p
	}
	debug.Log("port", "opened input %q for %q", resolved, want)
	return p, nil
}

// Outs returns every open output port, sorted by name
func (r *Registry) Outs() []*OutPort {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[*OutPort]bool)
	var out []*OutPort
	for _, p := range r.outs {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Ins returns every open input port, sorted by name
func (r *Registry) Ins() []*InPort {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[*InPort]bool)
	var in []*InPort
	for _, p := range r.ins {
		if !seen[p] {
			seen[p] = true
			in = append(in, p)
		}
	}
	sort.Slice(in, func(i, j int) bool { return in[i].name < in[j].name })
	return in
}

// Close closes every cached port
func (r *Registry) Close() error {
	outs := r.Outs()
	ins := r.Ins()

	var first error
	for _, p := range outs {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, p := range ins {
		p.Close()
	}

	r.mu.Lock()
	r.outs = make(map[string]*OutPort)
	r.ins = make(map[string]*InPort)
	r.mu.Unlock()
	return first
}
