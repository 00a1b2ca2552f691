package sequencer

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go-phrase/config"
	"go-phrase/debug"
	"go-phrase/midi"
)

// Resolution is the engine loop period
const Resolution = 10 * time.Millisecond

// DefaultTrackName is the track Play uses for bare values
const DefaultTrackName = "default"

// PlayOptions configure the default track for Engine.Play
type PlayOptions struct {
	Channel    int
	Instrument int // -1 for none
	Loop       bool
	LoopType   LoopType
	Port       string
	Transpose  int
}

// DefaultPlayOptions plays once on channel 0 without a program change
func DefaultPlayOptions() PlayOptions {
	return PlayOptions{Instrument: -1}
}

// Engine renders tracks to MIDI ports in real time. Time is measured in
// sequence seconds: wall time scaled by bpm/120.
type Engine struct {
	reg   *midi.Registry
	group *TrackGroup
	def   *Track

	mu      sync.Mutex
	bpm     float64
	clock   float64 // advances always; ports follow it
	now     float64 // play position, reset on play
	playing bool
	queue   midi.Queue
	metro   metronome
	ports   map[string]*midi.OutPort
	forward string

	triggerPlay atomic.Bool
	triggerStop atomic.Bool
	started     atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}

	// Notify the monitor of updates
	updates chan struct{}
	fails   *debug.ThrottledLogger
}

// NewEngine creates an engine over a port registry
func NewEngine(reg *midi.Registry) *Engine {
	o := config.Current()
	e := &Engine{
		reg:     reg,
		group:   NewTrackGroup(),
		def:     NewTrack(DefaultTrackName, 0),
		bpm:     o.BPM,
		ports:   make(map[string]*midi.OutPort),
		forward: o.ForwardOutput,
		done:    make(chan struct{}),
		updates: make(chan struct{}, 1),
		fails:   debug.Throttled("engine", time.Second),
	}
	if reg != nil {
		reg.SetDefaultOut(o.DefaultOutput)
		reg.SetDefaultIn(o.DefaultInput)
	}
	e.group.Add(e.def)
	return e
}

// Group returns the engine's tracks
func (e *Engine) Group() *TrackGroup { return e.group }

// DefaultTrack returns the track used by Play for bare values
func (e *Engine) DefaultTrack() *Track { return e.def }

// Registry returns the port registry
func (e *Engine) Registry() *midi.Registry { return e.reg }

// Updates signals after every loop iteration; slow readers miss ticks
func (e *Engine) Updates() <-chan struct{} { return e.updates }

// Start runs the I/O loop until ctx is done or Shutdown is called.
// Calling it again is a no-op.
func (e *Engine) Start(ctx context.Context) {
	if e.started.Swap(true) {
		debug.Log("engine", "already running")
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)

	if e.reg != nil && config.Current().DefaultInput != "" {
		if in := e.reg.In(""); in != nil && e.forward != "" {
			in.SetForward(e.reg.Out(e.forward))
		}
	}
	go e.loop(ctx)
}

func (e *Engine) loop(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(e.done)

	ticker := time.NewTicker(Resolution)
	defer ticker.Stop()

	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.step(now.Sub(prev).Seconds())
			prev = now
		}
	}
}

// Shutdown stops the loop, silences every port and closes them
func (e *Engine) Shutdown() error {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
	e.Panic()
	if e.reg == nil {
		return nil
	}
	return e.reg.Close()
}

// step runs one loop iteration for a wall-clock delta in seconds
func (e *Engine) step(real float64) {
	e.mu.Lock()
	dt := real * e.bpm / 120
	prevClock := e.clock
	e.clock += dt

	if e.triggerPlay.Swap(false) {
		e.playing = true
		e.now = 0
		e.queue.Clear()
		e.clearPorts()
		e.metro.reset(prevClock)
		debug.Log("engine", "play")
	}
	if e.triggerStop.Swap(false) {
		e.playing = false
		e.queue.KeepNoteOffs()
		e.clearPorts()
		debug.Log("engine", "stop")
	}

	if e.reg != nil {
		for _, in := range e.reg.Ins() {
			in.Drain(e.now)
		}
	}

	if e.playing {
		e.now += dt
		o := config.Current()
		if o.Metronome {
			for _, ev := range e.metro.tick(e.clock, o) {
				e.queue.Push(ev)
			}
		} else {
			e.metro.tick(e.clock, o)
		}
		for _, t := range e.group.Priority() {
			for _, ev := range e.updateTrack(t, dt) {
				ev.Time += e.clock
				e.queue.Push(ev)
			}
		}
	}

	due := e.queue.PopBefore(e.clock + 1e-9)
	e.mu.Unlock()

	// port lookups may scan the driver, so they run unlocked
	for _, ev := range due {
		if p := e.port(ev.Port, prevClock); p != nil {
			p.Push(ev.Time, ev.Msg)
		}
	}

	e.mu.Lock()
	ports := e.portList()
	e.mu.Unlock()
	for _, p := range ports {
		p.Process(dt)
	}

	select {
	case e.updates <- struct{}{}:
	default:
	}
}

// updateTrack isolates failures: a track that errors or panics is stopped
// and the loop carries on
func (e *Engine) updateTrack(t *Track, dt float64) (evs []midi.Event) {
	defer func() {
		if r := recover(); r != nil {
			t.Stop()
			e.fails.Warn("track %s panicked: %v", t.Name, r)
			evs = nil
		}
	}()
	evs, err := t.Update(dt)
	if err != nil {
		t.Stop()
		e.fails.Warn("track %s stopped: %v", t.Name, err)
	}
	return evs
}

// port resolves a port by name for the engine, syncing a newly seen
// port's clock to the start of this iteration. Failed lookups are
// remembered by the registry.
func (e *Engine) port(name string, at float64) *midi.OutPort {
	e.mu.Lock()
	p, ok := e.ports[name]
	e.mu.Unlock()
	if ok {
		return p
	}
	if e.reg == nil {
		return nil
	}
	p = e.reg.Out(name)
	if p == nil {
		e.fails.Warn("no output port for %q", name)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	known := false
	for _, q := range e.ports {
		if q == p {
			known = true
			break
		}
	}
	if !known {
		p.SetClock(at)
	}
	e.ports[name] = p
	return p
}

func (e *Engine) portList() []*midi.OutPort {
	seen := make(map[*midi.OutPort]bool, len(e.ports))
	out := make([]*midi.OutPort, 0, len(e.ports))
	for _, p := range e.ports {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) clearPorts() {
	for _, p := range e.portList() {
		p.Clear()
	}
}

// Play enters the playing state. With an item, a *Track is added and
// started; anything else replaces the default track's queue.
func (e *Engine) Play(item any, opts PlayOptions) error {
	switch x := item.(type) {
	case nil:
	case *Track:
		e.group.Add(x)
		x.Start()
	default:
		t := e.def
		t.Stop()
		t.Clear()
		if err := t.Enqueue(x); err != nil {
			return err
		}
		t.SetChannel(opts.Channel)
		t.SetInstrument(opts.Instrument)
		t.SetLoop(opts.Loop, opts.LoopType)
		t.SetPort(opts.Port)
		t.SetTranspose(opts.Transpose)
		t.Start()
	}
	e.mu.Lock()
	if !e.playing || e.triggerStop.Load() {
		e.triggerStop.Store(false)
		e.triggerPlay.Store(true)
	}
	e.mu.Unlock()
	return nil
}

// Stop leaves the playing state and stops every track
func (e *Engine) Stop() {
	e.triggerPlay.Store(false)
	e.triggerStop.Store(true)
	e.group.StopAll()
}

// Panic sends a Note-Off for every key still sounding on any port
func (e *Engine) Panic() int {
	var ports []*midi.OutPort
	if e.reg != nil {
		ports = e.reg.Outs()
	}
	n := 0
	for _, p := range ports {
		n += p.AllNotesOff()
	}
	debug.Log("engine", "panic: %d note-offs", n)
	return n
}

// SetBPM changes the tempo; non-positive values are ignored
func (e *Engine) SetBPM(bpm float64) {
	if bpm <= 0 {
		return
	}
	e.mu.Lock()
	e.bpm = bpm
	e.mu.Unlock()
	config.Update(func(o *config.Options) { o.BPM = bpm })
}

func (e *Engine) BPM() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bpm
}

// Playing reports whether the engine is in the playing state
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing || e.triggerPlay.Load()
}

// Time returns the play position in sequence seconds
func (e *Engine) Time() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

// Inputs returns every message recorded from input ports
func (e *Engine) Inputs() []midi.Received {
	if e.reg == nil {
		return nil
	}
	var out []midi.Received
	for _, in := range e.reg.Ins() {
		out = append(out, in.Recorded()...)
	}
	return out
}
