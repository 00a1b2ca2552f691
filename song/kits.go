package song

import (
	"sort"
	"strings"

	"go-phrase/errs"
	"go-phrase/music"
)

// Kit maps drum slot names to MIDI notes
type Kit struct {
	Name  string
	Notes map[string]int
}

// Slot names shared by every kit
var slots = []string{
	"kick", "snare", "chh", "ohh", "ltom", "mtom", "htom", "crash",
	"ride", "clap", "rim", "cowbell", "clave", "maracas", "lconga", "hconga",
}

func kit(name string, notes ...int) Kit {
	k := Kit{Name: name, Notes: make(map[string]int, len(slots))}
	for i, s := range slots {
		k.Notes[s] = notes[i]
	}
	return k
}

// Kits contains the known drum machine mappings
var Kits = map[string]Kit{
	"gm":   kit("General MIDI", 36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 64, 63),
	"rd8":  kit("Behringer RD-8", 36, 40, 42, 46, 45, 48, 50, 49, 51, 39, 37, 56, 75, 70, 64, 63), // snare on 40
	"tr8s": kit("Roland TR-8S", 36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 62, 63),
	"er1":  kit("Korg ER-1", 36, 38, 42, 46, 40, 41, 43, 49, 45, 39, 37, 56, 75, 70, 64, 63),
}

// DefaultKit is used when a track names none
const DefaultKit = "gm"

// KitNames returns the kit names, sorted
func KitNames() []string {
	names := make([]string, 0, len(Kits))
	for n := range Kits {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetKit returns a kit by name, defaulting to GM
func GetKit(name string) Kit {
	if k, ok := Kits[strings.ToLower(name)]; ok {
		return k
	}
	return Kits[DefaultKit]
}

// Drums overlays one step pattern per slot ("x..." strings, see
// music.Pattern). Slots are rendered in a fixed order so the result does not
// depend on map iteration.
func (k Kit) Drums(lanes map[string]string) (*music.Sequence, error) {
	names := make([]string, 0, len(lanes))
	for n := range lanes {
		names = append(names, n)
	}
	sort.Strings(names)

	out := music.NewSequence()
	for _, n := range names {
		note, ok := k.Notes[strings.ToLower(n)]
		if !ok {
			return nil, errs.New(errs.InvalidSong, "kit %s has no slot %q", k.Name, n)
		}
		out.Merge(music.Pattern(lanes[n], note))
	}
	return out, nil
}
