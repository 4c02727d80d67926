package pitch

// Local Pitch Estimation (YIN)
//
// This file implements the deterministic fallback estimator: a normalized
// autocorrelation pitch tracker in the YIN family. It runs entirely in the
// time domain and works as follows:
//
// 1. Difference function: for each candidate lag tau, accumulate the squared
//    difference between the signal and a tau-shifted copy of itself. A
//    periodic signal dips toward zero at lags matching its period.
// 2. Cumulative mean normalization: divide each value by the running mean of
//    all values up to that lag. This removes the bias toward tiny lags that
//    plain autocorrelation suffers from.
// 3. Absolute threshold: scan lags in ascending order and stop at the first
//    dip below the threshold, then walk forward while the dip keeps deepening.
// 4. Parabolic interpolation: refine the integer lag with a quadratic fit over
//    its neighbors for sub-sample period resolution.
//
// The function is pure: no I/O, no shared state, and it completes in a small
// fraction of the analysis cadence so it can always back up the remote
// estimator without becoming a bottleneck itself.

import "math"

// LocalEstimate runs the YIN estimator over one window and returns an
// estimate with local provenance. An unvoiced or aperiodic window yields
// frequency 0 with confidence 0.
func LocalEstimate(w AudioWindow, cfg Config) PitchEstimate {
	unvoiced := PitchEstimate{Provenance: ProvenanceLocal}

	n := len(w.Samples)
	half := n / 2
	if half < 2 {
		return unvoiced
	}

	rate := float64(w.SampleRate)
	minLag := int(rate / cfg.YinMaxFreqHz)
	maxLag := int(rate / cfg.YinMinFreqHz)
	if minLag < 2 {
		minLag = 2
	}
	if maxLag >= half {
		maxLag = half - 1
	}
	if maxLag <= minLag {
		return unvoiced
	}

	diff := differenceFunction(w.Samples, maxLag)
	cmnd := cumulativeMeanNormalized(diff)

	tau := absoluteThreshold(cmnd, minLag, maxLag, cfg.YinThreshold)
	if tau < 0 {
		return unvoiced
	}

	period := parabolicRefine(cmnd, tau)
	if period <= 0 {
		return unvoiced
	}

	confidence := 1.0 - cmnd[tau]
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return PitchEstimate{
		FrequencyHz: rate / period,
		Confidence:  confidence,
		Provenance:  ProvenanceLocal,
	}
}

// differenceFunction computes d(tau) over the overlapping half-window region.
func differenceFunction(samples []float64, maxLag int) []float64 {
	half := len(samples) / 2
	diff := make([]float64, maxLag+1)
	for tau := 1; tau <= maxLag; tau++ {
		var sum float64
		for i := 0; i < half; i++ {
			delta := samples[i] - samples[i+tau]
			sum += delta * delta
		}
		diff[tau] = sum
	}
	return diff
}

// cumulativeMeanNormalized converts d(tau) into d'(tau) with d'(0) = 1.
func cumulativeMeanNormalized(diff []float64) []float64 {
	cmnd := make([]float64, len(diff))
	cmnd[0] = 1
	var runningSum float64
	for tau := 1; tau < len(diff); tau++ {
		runningSum += diff[tau]
		if runningSum == 0 {
			cmnd[tau] = 1
			continue
		}
		cmnd[tau] = diff[tau] * float64(tau) / runningSum
	}
	return cmnd
}

// absoluteThreshold returns the first lag whose normalized difference falls
// below the threshold, extended to the bottom of that dip. Returns -1 when no
// lag qualifies.
func absoluteThreshold(cmnd []float64, minLag, maxLag int, threshold float64) int {
	for tau := minLag; tau <= maxLag; tau++ {
		if cmnd[tau] >= threshold {
			continue
		}
		for tau+1 <= maxLag && cmnd[tau+1] < cmnd[tau] {
			tau++
		}
		return tau
	}
	return -1
}

// parabolicRefine fits a parabola through the dip at tau and its neighbors to
// obtain a sub-sample period. A degenerate (flat) quadratic falls back to the
// integer lag.
func parabolicRefine(cmnd []float64, tau int) float64 {
	if tau <= 0 || tau >= len(cmnd)-1 {
		return float64(tau)
	}

	left := cmnd[tau-1]
	center := cmnd[tau]
	right := cmnd[tau+1]

	denom := left - 2*center + right
	if math.Abs(denom) < 1e-12 {
		return float64(tau)
	}

	shift := (left - right) / (2 * denom)
	if shift < -1 || shift > 1 {
		return float64(tau)
	}
	return float64(tau) + shift
}
