package midi

import (
	"sync"

	"go-phrase/debug"
)

// Received is an incoming message stamped with the engine clock
type Received struct {
	Time float64
	Msg  []byte
}

// InPort buffers incoming messages until the engine drains them
type InPort struct {
	name string
	in   chan []byte
	stop func()

	mu       sync.Mutex
	recorded []Received
	forward  *OutPort
}

const inputBuffer = 256

func newInPort(name string) *InPort {
	return &InPort{name: name, in: make(chan []byte, inputBuffer)}
}

// Name returns the resolved port name
func (p *InPort) Name() string { return p.name }

// Receive is called from the driver callback. Drops when the buffer is full.
func (p *InPort) Receive(msg []byte) {
	cp := make([]byte, len(msg))
	copy(cp, msg)
	select {
	case p.in <- cp:
	default:
		debug.LogEvery(32, "input", "%s: buffer full, dropped %s", p.name, Describe(cp))
	}
}

// SetForward echoes every drained message to out (nil disables)
func (p *InPort) SetForward(out *OutPort) {
	p.mu.Lock()
	p.forward = out
	p.mu.Unlock()
}

// Drain stamps pending messages with now, records and forwards them
func (p *InPort) Drain(now float64) []Received {
	var got []Received
	for {
		select {
		case msg := <-p.in:
			got = append(got, Received{Time: now, Msg: msg})
			continue
		default:
		}
		break
	}
	if len(got) == 0 {
		return nil
	}

	p.mu.Lock()
	p.recorded = append(p.recorded, got...)
	fwd := p.forward
	p.mu.Unlock()

	if fwd != nil {
		for _, r := range got {
			fwd.Send(r.Msg)
		}
	}
	return got
}

// Recorded returns a copy of everything drained so far
func (p *InPort) Recorded() []Received {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Received(nil), p.recorded...)
}

// ClearRecorded forgets the recording
func (p *InPort) ClearRecorded() {
	p.mu.Lock()
	p.recorded = nil
	p.mu.Unlock()
}

// Close stops the driver listener
func (p *InPort) Close() error {
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	return nil
}
