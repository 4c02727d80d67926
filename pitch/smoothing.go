package pitch

// Confidence gating and smoothing. An estimate only counts as new information
// when it passes the validity gate; everything else leaves the displayed
// frequency untouched instead of dragging it toward zero.

// EstimateValid reports whether an estimate may enter the pitch history:
// the frequency must sit in the plausible vocal range, the window must be
// audible, and the confidence must clear the floor.
func EstimateValid(e PitchEstimate, rms float64, cfg Config) bool {
	if e.FrequencyHz < cfg.MinVoiceFreqHz || e.FrequencyHz > cfg.MaxVoiceFreqHz {
		return false
	}
	if rms < cfg.MinRMSAmplitude {
		return false
	}
	return e.Confidence >= cfg.MinConfidence
}

// LocalConfidence blends a volume-derived term with a frequency-plausibility
// term for locally estimated pitch. Both terms are multiplied and the result
// clamped to [0,1]; the plausibility term has full weight inside the vocal
// range and tapers over one octave outside it.
func LocalConfidence(frequencyHz, rms float64, cfg Config) float64 {
	if frequencyHz <= 0 {
		return 0
	}

	volume := rms / cfg.FullVolumeRMS
	if volume > 1 {
		volume = 1
	}

	plausibility := 1.0
	switch {
	case frequencyHz < cfg.MinVoiceFreqHz:
		plausibility = 1 - (cfg.MinVoiceFreqHz-frequencyHz)/cfg.MinVoiceFreqHz*2
	case frequencyHz > cfg.MaxVoiceFreqHz:
		plausibility = 1 - (frequencyHz-cfg.MaxVoiceFreqHz)/cfg.MaxVoiceFreqHz
	}
	if plausibility < 0 {
		plausibility = 0
	}

	confidence := volume * plausibility
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// SmoothedFrequency returns the moving average of the last k samples in the
// history. History only ever contains gated, valid samples, so the average
// reduces jitter without mixing in unvoiced readings.
func SmoothedFrequency(history *PitchHistory, k int) float64 {
	recent := history.Recent(k)
	if len(recent) == 0 {
		return 0
	}
	var sum float64
	for _, s := range recent {
		sum += s.FrequencyHz
	}
	return sum / float64(len(recent))
}
