package pitch

import (
	"fmt"
	"math"
)

// Chromatic note names in order, starting at C.
var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

const referenceA4Hz = 440.0

// MusicalUnit expresses a frequency in musical terms: the nearest 12-TET note
// and the signed deviation from it in cents. The zero value is the "no pitch"
// sentinel used for unvoiced input.
type MusicalUnit struct {
	NoteName       string  `json:"note"`
	Octave         int     `json:"octave"`
	CentsDeviation float64 `json:"cents"`
}

// Pitched reports whether the unit represents an actual pitch.
func (u MusicalUnit) Pitched() bool {
	return u.NoteName != ""
}

// Label returns the display form, e.g. "A4".
func (u MusicalUnit) Label() string {
	if !u.Pitched() {
		return ""
	}
	return fmt.Sprintf("%s%d", u.NoteName, u.Octave)
}

// FrequencyToNote converts a frequency to its musical unit using 12-tone
// equal temperament referenced to A4 = 440 Hz. Non-positive input
// short-circuits to the sentinel unit.
func FrequencyToNote(frequencyHz float64) MusicalUnit {
	if frequencyHz <= 0 {
		return MusicalUnit{}
	}

	semitones := 12 * math.Log2(frequencyHz/referenceA4Hz)
	rounded := math.Round(semitones)
	cents := 100 * (semitones - rounded)

	// A4 sits 9 semitones above C4.
	noteIndex := int(math.Mod(rounded+9, 12))
	if noteIndex < 0 {
		noteIndex += 12
	}
	octave := 4 + int(math.Floor((rounded+9)/12))

	return MusicalUnit{
		NoteName:       noteNames[noteIndex],
		Octave:         octave,
		CentsDeviation: cents,
	}
}

// NoteFrequency returns the 12-TET frequency of a note by its semitone offset
// from A4, e.g. 0 for A4, 3 for C5, -9 for C4.
func NoteFrequency(semitonesFromA4 int) float64 {
	return referenceA4Hz * math.Pow(2, float64(semitonesFromA4)/12)
}
