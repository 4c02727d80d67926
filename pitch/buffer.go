package pitch

import (
	"fmt"
	"math"
	"time"
)

// AudioWindow is one chunk of normalized samples ready for estimation.
type AudioWindow struct {
	Samples    []float64
	SampleRate int
	CapturedAt time.Time
}

// RMS returns the root-mean-square amplitude of the window.
func (w AudioWindow) RMS() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range w.Samples {
		sumSquares += s * s
	}
	return math.Sqrt(sumSquares / float64(len(w.Samples)))
}

// Duration returns the window length in seconds.
func (w AudioWindow) Duration() float64 {
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// SampleBuffer accumulates a raw sample stream and hands out fixed-size
// analysis windows on a cadence. It retains only the most recent audio and
// reads are sliding: emitting a window does not consume samples, so
// consecutive windows overlap for continuity.
type SampleBuffer struct {
	samples    []float64
	sampleRate int
	maxSamples int

	appended     int64 // total samples ever appended
	lastEmitted  int64 // appended count at the previous window emission
	lastCaptured time.Time
}

// NewSampleBuffer creates a buffer for the given sample rate, retaining at
// most maxSeconds of audio. A non-positive sample rate is a collaborator bug.
func NewSampleBuffer(sampleRate int, maxSeconds float64) *SampleBuffer {
	if sampleRate <= 0 {
		panic(fmt.Sprintf("pitch: invalid sample rate %d", sampleRate))
	}
	maxSamples := int(float64(sampleRate) * maxSeconds)
	if maxSamples < 1 {
		maxSamples = sampleRate
	}
	return &SampleBuffer{
		sampleRate: sampleRate,
		maxSamples: maxSamples,
	}
}

// Append adds raw samples to the buffer, dropping the oldest audio once the
// retention cap is exceeded.
func (b *SampleBuffer) Append(samples []float64, capturedAt time.Time) {
	if len(samples) == 0 {
		return
	}
	b.samples = append(b.samples, samples...)
	b.appended += int64(len(samples))
	b.lastCaptured = capturedAt
	if excess := len(b.samples) - b.maxSamples; excess > 0 {
		b.samples = append(b.samples[:0], b.samples[excess:]...)
	}
}

// SampleRate returns the stream's sample rate.
func (b *SampleBuffer) SampleRate() int {
	return b.sampleRate
}

// Len returns the number of currently buffered samples.
func (b *SampleBuffer) Len() int {
	return len(b.samples)
}

// Window returns the most recent size samples as an analysis window. It
// returns ok=false when fewer than size samples are buffered or when no fresh
// audio arrived since the previous emission; both are normal startup and
// transient conditions, not errors.
func (b *SampleBuffer) Window(size int) (AudioWindow, bool) {
	if size <= 0 {
		panic(fmt.Sprintf("pitch: invalid window size %d", size))
	}
	if len(b.samples) < size || b.appended == b.lastEmitted {
		return AudioWindow{}, false
	}

	// Copy so the window stays immutable while the buffer keeps appending.
	window := make([]float64, size)
	copy(window, b.samples[len(b.samples)-size:])
	b.lastEmitted = b.appended

	return AudioWindow{
		Samples:    window,
		SampleRate: b.sampleRate,
		CapturedAt: b.lastCaptured,
	}, true
}
