package midi

import (
	"sync"
	"time"

	"go-phrase/debug"
)

// Sink is the raw byte transport behind a port
type Sink interface {
	Send(msg []byte) error
	Close() error
}

// OutPort owns a queue of pending events and the note state of its sink.
// Times are in the engine's sequence clock.
type OutPort struct {
	name string
	sink Sink

	mu        sync.Mutex
	queue     Queue
	now       float64
	transpose int
	state     [numPitches]uint16 // bit per channel, by sent key
	held      [16][numPitches]uint8 // sent key+1 per channel and source key
	sent      int

	warn *debug.ThrottledLogger
}

// NewOutPort wraps a sink
func NewOutPort(name string, sink Sink) *OutPort {
	return &OutPort{
		name: name,
		sink: sink,
		warn: debug.Throttled("port", time.Second),
	}
}

// Name returns the resolved port name
func (p *OutPort) Name() string { return p.name }

// SetClock moves the port clock without releasing anything
func (p *OutPort) SetClock(t float64) {
	p.mu.Lock()
	p.now = t
	p.mu.Unlock()
}

// Clock returns the port's current time
func (p *OutPort) Clock() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

// SetTranspose sets the semitone offset applied to note messages
func (p *OutPort) SetTranspose(n int) {
	p.mu.Lock()
	p.transpose = n
	p.mu.Unlock()
}

// Push schedules msg at time t, sending immediately when t is not in the future
func (p *OutPort) Push(t float64, msg []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t <= p.now {
		p.sendLocked(msg)
		return
	}
	p.queue.Push(Event{Time: t, Msg: msg, Port: p.name})
}

// Send emits msg now
func (p *OutPort) Send(msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendLocked(msg)
}

func (p *OutPort) sendLocked(msg []byte) error {
	if len(msg) == 0 {
		return nil
	}
	st := Status(msg)
	if (st == NoteOn || st == NoteOff || st == PolyAftertouch) && len(msg) >= 3 {
		out := make([]byte, len(msg))
		copy(out, msg)
		ch, key := Channel(msg), msg[1]&0x7f
		sent := data(int(key) + p.transpose)
		// an off or aftertouch follows the key its note was sent as
		if !IsNoteOn(msg) && p.held[ch][key] != 0 {
			sent = p.held[ch][key] - 1
		}
		out[1] = sent
		msg = out

		bit := uint16(1) << ch
		if IsNoteOn(msg) {
			p.state[sent] |= bit
			p.held[ch][key] = sent + 1
		} else if IsNoteOff(msg) {
			p.state[sent] &^= bit
			p.held[ch][key] = 0
		}
	}
	p.sent++
	if p.sink == nil {
		return nil
	}
	if err := p.sink.Send(msg); err != nil {
		p.warn.Warn("send to %s failed: %v", p.name, err)
		return err
	}
	return nil
}

// Process advances the port clock by dt and releases due events.
// Returns the number of events sent.
func (p *OutPort) Process(dt float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now += dt
	n := 0
	for {
		e, ok := p.queue.Peek()
		if !ok || e.Time > p.now {
			break
		}
		p.queue.Pop()
		p.sendLocked(e.Msg)
		n++
	}
	return n
}

// Pending returns the number of queued events
func (p *OutPort) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Sent returns the number of messages emitted so far
func (p *OutPort) Sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Clear drops pending events. Note-Offs are kept so held notes still end.
func (p *OutPort) Clear() {
	p.mu.Lock()
	p.queue.KeepNoteOffs()
	p.mu.Unlock()
}

// Active reports whether key is sounding on channel ch
func (p *OutPort) Active(ch, key int) bool {
	if key < 0 || key >= numPitches || ch < 0 || ch > 15 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state[key]&(1<<uint(ch)) != 0
}

// ActiveCount returns the number of sounding (channel, key) pairs
func (p *OutPort) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, bits := range p.state {
		for ; bits != 0; bits &= bits - 1 {
			n++
		}
	}
	return n
}

// AllNotesOff sends a Note-Off for every key still marked active
func (p *OutPort) AllNotesOff() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for key := range p.state {
		bits := p.state[key]
		for ch := 0; ch < 16; ch++ {
			if bits&(1<<uint(ch)) == 0 {
				continue
			}
			// state is stored post-transpose, so bypass it here
			msg := NoteOffMsg(ch, key)
			p.state[key] &^= 1 << uint(ch)
			p.sent++
			if p.sink != nil {
				if err := p.sink.Send(msg); err != nil {
					p.warn.Warn("note-off to %s failed: %v", p.name, err)
				}
			}
			n++
		}
	}
	p.held = [16][numPitches]uint8{}
	if n > 0 {
		debug.Log("port", "%s: all notes off (%d)", p.name, n)
	}
	return n
}

// Close flushes pending Note-Offs, silences held notes and releases the sink
func (p *OutPort) Close() error {
	p.mu.Lock()
	p.queue.KeepNoteOffs()
	for {
		e, ok := p.queue.Pop()
		if !ok {
			break
		}
		p.sendLocked(e.Msg)
	}
	p.mu.Unlock()

	p.AllNotesOff()
	if p.sink == nil {
		return nil
	}
	return p.sink.Close()
}
