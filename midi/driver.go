package midi

import (
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-phrase/errs"
)

// ScanTimeout bounds port enumeration; CoreMIDI can hang.
const ScanTimeout = 3 * time.Second

// Driver opens ports through gomidi's registered driver (rtmidi)
type Driver struct{}

type scan struct {
	ins  []drivers.In
	outs []drivers.Out
}

func scanPorts() (scan, error) {
	ch := make(chan scan, 1)
	go func() {
		ch <- scan{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()
	select {
	case r := <-ch:
		return r, nil
	case <-time.After(ScanTimeout):
		// Fix on macOS: sudo killall coreaudiod midiserver
		return scan{}, errs.New(errs.PortNotFound, "MIDI port scan timed out after %s", ScanTimeout)
	}
}

func (Driver) OutNames() ([]string, error) {
	r, err := scanPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(r.outs))
	for i, p := range r.outs {
		names[i] = p.String()
	}
	return names, nil
}

func (Driver) InNames() ([]string, error) {
	r, err := scanPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(r.ins))
	for i, p := range r.ins {
		names[i] = p.String()
	}
	return names, nil
}

type gomidiSink struct {
	port drivers.Out
	send func(gomidi.Message) error
}

func (s *gomidiSink) Send(msg []byte) error { return s.send(gomidi.Message(msg)) }
func (s *gomidiSink) Close() error          { return s.port.Close() }

func (Driver) OpenOut(name string) (Sink, error) {
	r, err := scanPorts()
	if err != nil {
		return nil, err
	}
	for _, port := range r.outs {
		if port.String() != name {
			continue
		}
		send, err := gomidi.SendTo(port)
		if err != nil {
			return nil, err
		}
		return &gomidiSink{port: port, send: send}, nil
	}
	return nil, errs.New(errs.PortNotFound, "output %q disappeared", name)
}

func (Driver) OpenIn(name string, recv func(msg []byte)) (func(), error) {
	r, err := scanPorts()
	if err != nil {
		return nil, err
	}
	for _, port := range r.ins {
		if port.String() != name {
			continue
		}
		return gomidi.ListenTo(port, func(msg gomidi.Message, timestampms int32) {
			recv(msg.Bytes())
		})
	}
	return nil, errs.New(errs.PortNotFound, "input %q disappeared", name)
}

// CloseDriver releases the gomidi driver
func CloseDriver() {
	gomidi.CloseDriver()
}
