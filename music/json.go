package music

import (
	"encoding/json"

	"go-phrase/config"
)

type sequenceJSON struct {
	Notes    [][]float64 `json:"notes"`
	Rests    [][]float64 `json:"rests"`
	Dur      float64     `json:"dur"`
	Head     float64     `json:"head"`
	Symbolic string      `json:"symbolic"`
}

// MarshalJSON writes notes as [onset, pitch, dur in note units, vel, prob?].
// Modulation is not serialised.
func (s *Sequence) MarshalJSON() ([]byte, error) {
	unit := config.Current().NoteDur
	out := sequenceJSON{
		Notes:    make([][]float64, 0, len(s.Notes)),
		Rests:    make([][]float64, 0, len(s.Rests)),
		Dur:      s.Dur,
		Head:     s.Head,
		Symbolic: s.Symbolic,
	}
	for _, n := range s.Notes {
		row := []float64{n.At, float64(n.Pitch), n.Dur / unit, float64(n.Vel)}
		if n.Prob != 1 {
			row = append(row, n.Prob)
		}
		out.Notes = append(out.Notes, row)
	}
	for _, r := range s.Rests {
		out.Rests = append(out.Rests, []float64{r.At, r.Dur})
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the notes and the duration. Everything else takes
// the value a freshly built sequence would have.
func (s *Sequence) UnmarshalJSON(data []byte) error {
	var in sequenceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	unit := config.Current().NoteDur
	*s = Sequence{}
	for _, row := range in.Notes {
		if len(row) < 3 {
			continue
		}
		n := NewNote(int(row[1]), row[2]*unit)
		if len(row) > 3 {
			n = n.WithVel(int(row[3]))
		}
		if len(row) > 4 {
			n = n.WithProb(row[4])
		}
		s.addNote(row[0], n)
	}
	s.Dur = in.Dur
	s.sort()
	s.fit()
	s.Head = s.Dur
	return nil
}
