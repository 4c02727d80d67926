package pitch

// Config collects every named tunable of the analysis engine. The vibrato
// ideals and the YIN threshold are empirically chosen values carried over from
// the trained system; they are configuration, not constants, so a deployment
// can adjust them without touching the pipeline.
type Config struct {
	// Windowing and cadence
	WindowSizeSamples  int     // samples per analysis window
	MaxBufferedSeconds float64 // retained audio, oldest dropped beyond this
	CadenceMs          int     // analysis tick interval

	// Remote estimator
	RemoteTimeoutMs int

	// Local (YIN) estimator
	YinThreshold float64 // absolute threshold on the normalized difference
	YinMinFreqHz float64 // lower bound of the lag search
	YinMaxFreqHz float64 // upper bound of the lag search

	// Validity gate and smoothing
	MinVoiceFreqHz  float64 // plausible vocal range, lower bound
	MaxVoiceFreqHz  float64 // plausible vocal range, upper bound
	MinRMSAmplitude float64 // audibility floor
	MinConfidence   float64 // confidence floor for valid estimates
	FullVolumeRMS   float64 // RMS at which the volume confidence term saturates
	SmoothingWindow int     // moving average length, in valid samples

	// History
	HistorySize int // bounded ring of smoothed pitch samples

	// Vibrato detection
	VibratoWindowSize          int
	VibratoMinRateHz           float64
	VibratoMaxRateHz           float64
	VibratoMinDepthSemitones   float64
	VibratoIdealRateHz         float64
	VibratoIdealDepthSemitones float64
	VibratoRegularityEnvelope  float64 // std-dev envelope as a fraction of the mean
}

// DefaultConfig returns the tuning used by the live trainer.
func DefaultConfig() Config {
	return Config{
		WindowSizeSamples:  4096,
		MaxBufferedSeconds: 0.4,
		CadenceMs:          250,

		RemoteTimeoutMs: 500,

		YinThreshold: 0.1,
		YinMinFreqHz: 70.0,
		YinMaxFreqHz: 1100.0,

		MinVoiceFreqHz:  80.0,
		MaxVoiceFreqHz:  1000.0,
		MinRMSAmplitude: 0.01,
		MinConfidence:   0.5,
		FullVolumeRMS:   0.1,
		SmoothingWindow: 5,

		HistorySize: 100,

		VibratoWindowSize:          10,
		VibratoMinRateHz:           4.0,
		VibratoMaxRateHz:           8.0,
		VibratoMinDepthSemitones:   0.2,
		VibratoIdealRateHz:         6.0,
		VibratoIdealDepthSemitones: 0.5,
		VibratoRegularityEnvelope:  0.05,
	}
}
