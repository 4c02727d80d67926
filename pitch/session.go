package pitch

// Analysis Session and Estimator Orchestration
//
// A Session owns everything a single recording needs: the sample buffer, the
// bounded pitch history, and the in-flight state of the remote estimator.
// Nothing here is process-wide; two sessions never share mutable state.
//
// Per analysis window the orchestrator runs a race with a deterministic
// fallback:
//
//   - the local YIN estimate is always computed, concurrently with any
//     remote call, and never waits on the network
//   - a usable remote estimate (voiced, confidence above the floor) wins
//     and the local one is discarded
//   - on remote timeout, transport error or an unusable response the local
//     estimate is emitted instead; this is a normal path, not an error
//   - when both come back unvoiced the result carries no provenance
//
// Results are applied in window-capture order: a slow resolution that lands
// after a newer window has already been emitted is dropped, so the displayed
// pitch never flickers backwards. At most one remote call is outstanding at a
// time; ticks that arrive while one is pending run on the local estimator
// alone. Closing the session abandons any outstanding call without blocking.

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RemoteEstimator is the contract of the external neural pitch service. The
// implementation must honor ctx cancellation and its deadline.
type RemoteEstimator interface {
	EstimatePitch(ctx context.Context, samples []float64, sampleRate int) (PitchEstimate, error)
}

// AnalysisResult is the unified per-window output crossing the engine
// boundary. It is the only thing callers ever see; individual estimator
// failures are absorbed before this point.
type AnalysisResult struct {
	FrequencyHz  float64       `json:"frequency"`
	Note         string        `json:"note"`
	Cents        float64       `json:"cents"`
	Confidence   float64       `json:"confidence"`
	Provenance   Provenance    `json:"provenance"`
	Vibrato      VibratoResult `json:"vibrato"`
	AmplitudeRMS float64       `json:"amplitude"`
	CapturedAt   time.Time     `json:"capturedAt"`
}

// SessionStats summarizes a session for storage and coaching feedback.
type SessionStats struct {
	WindowsAnalyzed int     `json:"windowsAnalyzed"`
	VoicedResults   int     `json:"voicedResults"`
	RemoteResults   int     `json:"remoteResults"`
	LocalResults    int     `json:"localResults"`
	VibratoResults  int     `json:"vibratoResults"`
	MeanFrequencyHz float64 `json:"meanFrequency"`
	MinFrequencyHz  float64 `json:"minFrequency"`
	MaxFrequencyHz  float64 `json:"maxFrequency"`
}

type remoteOutcome struct {
	estimate PitchEstimate
	err      error
}

// Session drives the full analysis pipeline for one recording.
type Session struct {
	cfg      Config
	remote   RemoteEstimator
	onResult func(AnalysisResult)

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	buffer     *SampleBuffer
	history    *PitchHistory
	startedAt  time.Time
	currentHz  float64
	nextSeq    uint64
	nextEmit   uint64
	remoteBusy bool
	closed     bool
	stats      SessionStats
	freqSum    float64
}

// NewSession creates a session. remote may be nil, in which case the engine
// runs entirely on the local estimator. onResult may be nil.
func NewSession(cfg Config, remote RemoteEstimator, onResult func(AnalysisResult)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:      cfg,
		remote:   remote,
		onResult: onResult,
		ctx:      ctx,
		cancel:   cancel,
		history:  NewPitchHistory(cfg.HistorySize),
	}
}

// SubmitSamples feeds raw normalized samples into the session buffer. The
// recording collaborator calls this whenever audio is available; windows are
// cut later, on the analysis cadence. A non-positive or changing sample rate
// is a collaborator bug and fails fast.
func (s *Session) SubmitSamples(samples []float64, sampleRate int, capturedAt time.Time) {
	if sampleRate <= 0 {
		panic(fmt.Sprintf("pitch: invalid sample rate %d", sampleRate))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.buffer == nil {
		s.buffer = NewSampleBuffer(sampleRate, s.cfg.MaxBufferedSeconds)
		s.startedAt = capturedAt
	} else if s.buffer.SampleRate() != sampleRate {
		panic(fmt.Sprintf("pitch: sample rate changed from %d to %d mid-session", s.buffer.SampleRate(), sampleRate))
	}
	s.buffer.Append(samples, capturedAt)
}

// Tick runs one analysis step. The cadence itself lives with the caller (a
// timer in production, direct calls in tests) so the pipeline stays testable
// without any scheduling. A tick without enough fresh audio is a no-op.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.closed || s.buffer == nil {
		s.mu.Unlock()
		return
	}
	window, ok := s.buffer.Window(s.cfg.WindowSizeSamples)
	if !ok {
		s.mu.Unlock()
		return
	}

	seq := s.nextSeq
	s.nextSeq++

	var remoteCh chan remoteOutcome
	if s.remote != nil && !s.remoteBusy {
		s.remoteBusy = true
		remoteCh = make(chan remoteOutcome, 1)
		go s.callRemote(window, remoteCh)
	}
	s.mu.Unlock()

	go s.resolve(window, seq, remoteCh)
}

// callRemote submits the window to the remote estimator under the configured
// deadline. Exactly one outcome is always delivered.
func (s *Session) callRemote(w AudioWindow, out chan<- remoteOutcome) {
	ctx, cancel := context.WithTimeout(s.ctx, time.Duration(s.cfg.RemoteTimeoutMs)*time.Millisecond)
	defer cancel()

	estimate, err := s.remote.EstimatePitch(ctx, w.Samples, w.SampleRate)

	s.mu.Lock()
	s.remoteBusy = false
	s.mu.Unlock()

	out <- remoteOutcome{estimate: estimate, err: err}
}

// resolve combines the concurrent local and remote estimates into one
// authoritative result for the window.
func (s *Session) resolve(w AudioWindow, seq uint64, remoteCh <-chan remoteOutcome) {
	authoritative := LocalEstimate(w, s.cfg)

	if remoteCh != nil {
		select {
		case outcome := <-remoteCh:
			if outcome.err == nil && s.remoteUsable(outcome.estimate) {
				authoritative = outcome.estimate
				authoritative.Provenance = ProvenanceRemote
			}
		case <-s.ctx.Done():
			return
		}
	}

	result, ok := s.emit(w, seq, authoritative)
	if ok && s.onResult != nil {
		s.onResult(result)
	}
}

func (s *Session) remoteUsable(e PitchEstimate) bool {
	return e.FrequencyHz > 0 && e.Confidence >= s.cfg.MinConfidence
}

// emit applies the result in capture order, updating history, smoothing and
// statistics. It reports ok=false for stale results and after Close.
func (s *Session) emit(w AudioWindow, seq uint64, estimate PitchEstimate) (AnalysisResult, bool) {
	rms := w.RMS()

	if estimate.Provenance == ProvenanceLocal && estimate.FrequencyHz > 0 {
		estimate.Confidence = LocalConfidence(estimate.FrequencyHz, rms, s.cfg)
	}
	if estimate.FrequencyHz <= 0 {
		estimate = PitchEstimate{Provenance: ProvenanceNone}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || seq < s.nextEmit {
		return AnalysisResult{}, false
	}
	s.nextEmit = seq + 1
	s.stats.WindowsAnalyzed++

	result := AnalysisResult{
		Provenance:   estimate.Provenance,
		Vibrato:      noVibrato(),
		AmplitudeRMS: rms,
		CapturedAt:   w.CapturedAt,
	}

	if !EstimateValid(estimate, rms, s.cfg) {
		// No new information: history and the displayed frequency stay put.
		return result, true
	}

	s.history.Append(PitchSample{
		FrequencyHz: estimate.FrequencyHz,
		TimeSeconds: w.CapturedAt.Sub(s.startedAt).Seconds(),
		Amplitude:   rms,
		Confidence:  estimate.Confidence,
	})
	smoothed := SmoothedFrequency(s.history, s.cfg.SmoothingWindow)
	s.currentHz = smoothed

	unit := FrequencyToNote(smoothed)
	result.FrequencyHz = smoothed
	result.Note = unit.Label()
	result.Cents = unit.CentsDeviation
	result.Confidence = estimate.Confidence
	result.Vibrato = DetectVibrato(s.history.Recent(s.cfg.VibratoWindowSize), s.cfg)

	s.recordVoiced(estimate, result)
	return result, true
}

func (s *Session) recordVoiced(estimate PitchEstimate, result AnalysisResult) {
	s.stats.VoicedResults++
	switch estimate.Provenance {
	case ProvenanceRemote:
		s.stats.RemoteResults++
	case ProvenanceLocal:
		s.stats.LocalResults++
	}
	if result.Vibrato.IsPresent {
		s.stats.VibratoResults++
	}

	s.freqSum += result.FrequencyHz
	if s.stats.MinFrequencyHz == 0 || result.FrequencyHz < s.stats.MinFrequencyHz {
		s.stats.MinFrequencyHz = result.FrequencyHz
	}
	if result.FrequencyHz > s.stats.MaxFrequencyHz {
		s.stats.MaxFrequencyHz = result.FrequencyHz
	}
}

// CurrentFrequency returns the smoothed display frequency, 0 before any valid
// estimate.
func (s *Session) CurrentFrequency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentHz
}

// RecentSamples returns up to n recent history samples for display graphs.
func (s *Session) RecentSamples(n int) []PitchSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Recent(n)
}

// Stats returns a snapshot of the session statistics.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	if stats.VoicedResults > 0 {
		stats.MeanFrequencyHz = s.freqSum / float64(stats.VoicedResults)
	}
	return stats
}

// Close ends the session: the history is cleared and any outstanding remote
// call is abandoned. Close never blocks on in-flight work, and nothing is
// emitted afterward.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.history.Clear()
	s.mu.Unlock()

	s.cancel()
}
