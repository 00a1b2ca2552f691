package errs

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Error kinds raised across the module. Use Is to test for one.
const (
	InvalidPitch       ftag.Kind = "invalid_pitch"
	InvalidModifier    ftag.Kind = "invalid_modifier"
	InvalidGroup       ftag.Kind = "invalid_group"
	EmptyScale         ftag.Kind = "empty_scale"
	PortNotFound       ftag.Kind = "port_not_found"
	GeneratorExhausted ftag.Kind = "generator_exhausted"
	TransformType      ftag.Kind = "transform_type"
	InvalidSong        ftag.Kind = "invalid_song"
	SyncCycle          ftag.Kind = "sync_cycle"
)

// New builds an error tagged with kind.
func New(kind ftag.Kind, format string, args ...any) error {
	return fault.Wrap(fault.New(fmt.Sprintf(format, args...)), ftag.With(kind))
}

// Wrap tags err with kind and adds context.
func Wrap(err error, kind ftag.Kind, context string) error {
	if err == nil {
		return nil
	}
	return fault.Wrap(err, ftag.With(kind), fmsg.With(context))
}

// Is reports whether err carries kind.
func Is(err error, kind ftag.Kind) bool {
	if err == nil {
		return false
	}
	return ftag.Get(err) == kind
}
