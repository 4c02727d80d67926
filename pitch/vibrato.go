package pitch

// Vibrato Detection
//
// Vibrato is a periodic oscillation of pitch around a center frequency,
// typically 4-8 Hz at a fraction of a semitone for trained singers. The
// detector works over the most recent slice of the pitch history:
//
// 1. Rate: count strict local maxima and minima of the frequency sequence;
//    the cycle count is max(peaks-1, valleys-1) over the window's time span.
// 2. Depth: the log ratio between the highest and lowest frequency, in
//    semitones.
// 3. Regularity: how tightly the frequency stays inside a 5%-of-mean
//    envelope, expressed as 1 minus the normalized standard deviation.
// 4. Presence: rate inside the configured band and depth above the floor.
// 5. Quality: distance of rate, depth and regularity from their ideals,
//    averaged and mapped to an ordinal grade.
//
// The detector is a pure function of its input window; it holds no state
// between calls and performs no I/O.

import "math"

// VibratoQuality is the ordinal grade of a detected vibrato.
type VibratoQuality int

const (
	VibratoNone VibratoQuality = iota
	VibratoPoor
	VibratoFair
	VibratoGood
	VibratoExcellent
)

func (q VibratoQuality) String() string {
	switch q {
	case VibratoPoor:
		return "poor"
	case VibratoFair:
		return "fair"
	case VibratoGood:
		return "good"
	case VibratoExcellent:
		return "excellent"
	default:
		return "none"
	}
}

// VibratoResult characterizes pitch oscillation over one history window.
// When IsPresent is false all numeric fields are zero.
type VibratoResult struct {
	IsPresent      bool    `json:"isPresent"`
	RateHz         float64 `json:"rate"`
	DepthSemitones float64 `json:"depth"`
	Regularity     float64 `json:"regularity"`
	Quality        string  `json:"quality"`
}

func noVibrato() VibratoResult {
	return VibratoResult{Quality: VibratoNone.String()}
}

// DetectVibrato analyzes the given pitch samples for periodic oscillation.
// Callers pass the most recent VibratoWindowSize samples of the history.
func DetectVibrato(samples []PitchSample, cfg Config) VibratoResult {
	if len(samples) < cfg.VibratoWindowSize {
		return noVibrato()
	}

	rate := oscillationRate(samples)
	depth := oscillationDepth(samples)
	regularity := oscillationRegularity(samples, cfg.VibratoRegularityEnvelope)

	present := rate >= cfg.VibratoMinRateHz && rate <= cfg.VibratoMaxRateHz &&
		depth >= cfg.VibratoMinDepthSemitones
	if !present {
		return noVibrato()
	}

	return VibratoResult{
		IsPresent:      true,
		RateHz:         rate,
		DepthSemitones: depth,
		Regularity:     regularity,
		Quality:        gradeVibrato(rate, depth, regularity, cfg).String(),
	}
}

// oscillationRate derives the oscillation frequency from strict local maxima
// and minima. Fewer than two of each is insufficient evidence and yields 0.
func oscillationRate(samples []PitchSample) float64 {
	var peaks, valleys int
	for i := 1; i < len(samples)-1; i++ {
		prev := samples[i-1].FrequencyHz
		curr := samples[i].FrequencyHz
		next := samples[i+1].FrequencyHz
		if curr > prev && curr > next {
			peaks++
		} else if curr < prev && curr < next {
			valleys++
		}
	}
	if peaks < 2 || valleys < 2 {
		return 0
	}

	cycles := peaks - 1
	if valleys-1 > cycles {
		cycles = valleys - 1
	}

	span := samples[len(samples)-1].TimeSeconds - samples[0].TimeSeconds
	if span <= 0 {
		return 0
	}
	return float64(cycles) / span
}

// oscillationDepth returns the peak-to-peak pitch excursion in semitones.
func oscillationDepth(samples []PitchSample) float64 {
	minFreq := samples[0].FrequencyHz
	maxFreq := samples[0].FrequencyHz
	for _, s := range samples[1:] {
		if s.FrequencyHz < minFreq {
			minFreq = s.FrequencyHz
		}
		if s.FrequencyHz > maxFreq {
			maxFreq = s.FrequencyHz
		}
	}
	if minFreq <= 0 {
		return 0
	}
	return 12 * math.Log2(maxFreq/minFreq)
}

// oscillationRegularity compares frequency variability against an envelope
// proportional to the mean; variability beyond the envelope floors at 0.
func oscillationRegularity(samples []PitchSample, envelope float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s.FrequencyHz
	}
	mean := sum / float64(len(samples))
	if mean <= 0 || envelope <= 0 {
		return 0
	}

	var variance float64
	for _, s := range samples {
		delta := s.FrequencyHz - mean
		variance += delta * delta
	}
	stddev := math.Sqrt(variance / float64(len(samples)))

	regularity := 1 - stddev/(mean*envelope)
	if regularity < 0 {
		return 0
	}
	return regularity
}

func gradeVibrato(rate, depth, regularity float64, cfg Config) VibratoQuality {
	rateScore := 1 - math.Abs(rate-cfg.VibratoIdealRateHz)/cfg.VibratoIdealRateHz
	depthScore := 1 - math.Abs(depth-cfg.VibratoIdealDepthSemitones)/cfg.VibratoIdealDepthSemitones
	score := (clamp01(rateScore) + clamp01(depthScore) + clamp01(regularity)) / 3

	switch {
	case score >= 0.8 && regularity >= 0.7:
		return VibratoExcellent
	case score >= 0.6:
		return VibratoGood
	case score >= 0.4:
		return VibratoFair
	default:
		return VibratoPoor
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
