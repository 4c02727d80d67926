package pitch

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSessionLocalOnlyPipeline(t *testing.T) {
	t.Parallel()

	session, results := newTestSession(DefaultConfig(), nil)
	defer session.Close()

	feedSine(session, 440)
	session.Tick()

	result := waitResult(t, results)
	if result.Provenance != ProvenanceLocal {
		t.Fatalf("provenance %s, want local with no remote estimator", result.Provenance)
	}
	if math.Abs(result.FrequencyHz-440) > 2 {
		t.Errorf("frequency %.2f Hz, want about 440", result.FrequencyHz)
	}
	if result.Note != "A4" {
		t.Errorf("note %q, want A4", result.Note)
	}
	if result.Confidence < 0.5 {
		t.Errorf("confidence %.3f, want at least the validity floor", result.Confidence)
	}
	if result.Vibrato.IsPresent {
		t.Error("single window reported vibrato")
	}
	if got := session.CurrentFrequency(); math.Abs(got-440) > 2 {
		t.Errorf("CurrentFrequency = %.2f, want about 440", got)
	}

	stats := session.Stats()
	if stats.WindowsAnalyzed != 1 || stats.VoicedResults != 1 || stats.LocalResults != 1 {
		t.Errorf("stats = %+v, want 1 window, 1 voiced, 1 local", stats)
	}
}

func TestSessionRemoteEstimateIsAuthoritative(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{estimate: PitchEstimate{FrequencyHz: 330, Confidence: 0.95}}
	session, results := newTestSession(DefaultConfig(), remote)
	defer session.Close()

	// The window itself is a 440 Hz tone; a usable remote answer must win
	// over whatever the local estimator hears.
	feedSine(session, 440)
	session.Tick()

	result := waitResult(t, results)
	if result.Provenance != ProvenanceRemote {
		t.Fatalf("provenance %s, want remote", result.Provenance)
	}
	if math.Abs(result.FrequencyHz-330) > 0.01 {
		t.Errorf("frequency %.2f Hz, want the remote 330", result.FrequencyHz)
	}
	if result.Note != "E4" {
		t.Errorf("note %q, want E4", result.Note)
	}
	if result.Confidence != 0.95 {
		t.Errorf("confidence %.3f, want the remote 0.95", result.Confidence)
	}
}

func TestSessionFallsBackOnRemoteError(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{err: context.DeadlineExceeded}
	session, results := newTestSession(DefaultConfig(), remote)
	defer session.Close()

	feedSine(session, 440)
	session.Tick()

	result := waitResult(t, results)
	if result.Provenance != ProvenanceLocal {
		t.Fatalf("provenance %s, want local fallback on remote error", result.Provenance)
	}
	if math.Abs(result.FrequencyHz-440) > 2 {
		t.Errorf("frequency %.2f Hz, want the local 440", result.FrequencyHz)
	}
}

func TestSessionFallsBackOnRemoteTimeout(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RemoteTimeoutMs = 30

	remote := &fakeRemote{blockUntilCancel: true}
	session, results := newTestSession(cfg, remote)
	defer session.Close()

	feedSine(session, 440)
	session.Tick()

	result := waitResult(t, results)
	if result.Provenance != ProvenanceLocal {
		t.Fatalf("provenance %s, want local fallback on timeout", result.Provenance)
	}
}

func TestSessionFallsBackOnLowConfidenceRemote(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{estimate: PitchEstimate{FrequencyHz: 300, Confidence: 0.2}}
	session, results := newTestSession(DefaultConfig(), remote)
	defer session.Close()

	feedSine(session, 440)
	session.Tick()

	result := waitResult(t, results)
	if result.Provenance != ProvenanceLocal {
		t.Fatalf("provenance %s, want local when the remote confidence is under the floor", result.Provenance)
	}
	if math.Abs(result.FrequencyHz-440) > 2 {
		t.Errorf("frequency %.2f Hz, want the local 440", result.FrequencyHz)
	}
}

func TestSessionUnvoicedWindowHasNoProvenance(t *testing.T) {
	t.Parallel()

	session, results := newTestSession(DefaultConfig(), nil)
	defer session.Close()

	session.SubmitSamples(make([]float64, 8192), 44100, time.Now())
	session.Tick()

	result := waitResult(t, results)
	if result.Provenance != ProvenanceNone {
		t.Fatalf("provenance %s for silence, want none", result.Provenance)
	}
	if result.FrequencyHz != 0 || result.Note != "" {
		t.Errorf("silence produced frequency %.2f note %q", result.FrequencyHz, result.Note)
	}
	if got := session.CurrentFrequency(); got != 0 {
		t.Errorf("CurrentFrequency = %.2f after silence only, want 0", got)
	}

	stats := session.Stats()
	if stats.WindowsAnalyzed != 1 || stats.VoicedResults != 0 {
		t.Errorf("stats = %+v, want 1 window and no voiced results", stats)
	}
}

func TestSessionInvalidEstimateKeepsDisplayedPitch(t *testing.T) {
	t.Parallel()

	session, results := newTestSession(DefaultConfig(), nil)
	defer session.Close()

	feedSine(session, 440)
	session.Tick()
	first := waitResult(t, results)
	if first.FrequencyHz == 0 {
		t.Fatal("expected a voiced first result")
	}

	// A silent window is emitted but must not drag the displayed pitch down.
	session.SubmitSamples(make([]float64, 8192), 44100, time.Now())
	session.Tick()
	second := waitResult(t, results)
	if second.Provenance != ProvenanceNone {
		t.Fatalf("provenance %s for the silent window, want none", second.Provenance)
	}
	if got := session.CurrentFrequency(); math.Abs(got-first.FrequencyHz) > 1e-9 {
		t.Errorf("CurrentFrequency moved to %.2f on an invalid window, want %.2f", got, first.FrequencyHz)
	}
}

func TestSessionSingleOutstandingRemoteCall(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RemoteTimeoutMs = 2000

	remote := &fakeRemote{blockUntilCancel: true}
	session, results := newTestSession(cfg, remote)
	defer session.Close()

	feedSine(session, 440)
	session.Tick()
	feedSine(session, 440)
	session.Tick()

	// The second tick must not queue another remote call; it resolves on the
	// local estimator while the first call is still pending.
	result := waitResult(t, results)
	if result.Provenance != ProvenanceLocal {
		t.Fatalf("provenance %s, want local while the remote is busy", result.Provenance)
	}
	if got := remote.callCount(); got != 1 {
		t.Errorf("remote called %d times for two ticks, want 1", got)
	}
}

func TestSessionStaleResultIsDropped(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	remote := &fakeRemote{
		estimate: PitchEstimate{FrequencyHz: 330, Confidence: 0.95},
		delay:    50 * time.Millisecond,
	}
	session, results := newTestSession(cfg, remote)
	defer session.Close()

	// First window waits on the slow remote; the second resolves locally and
	// is emitted first. The remote answer for the older window arrives late
	// and must be discarded, never shown out of order.
	feedSine(session, 440)
	session.Tick()
	feedSine(session, 440)
	session.Tick()

	result := waitResult(t, results)
	if result.Provenance != ProvenanceLocal {
		t.Fatalf("first emitted result has provenance %s, want the fast local one", result.Provenance)
	}

	select {
	case late := <-results:
		t.Fatalf("stale window emitted after a newer one: %+v", late)
	case <-time.After(200 * time.Millisecond):
	}

	stats := session.Stats()
	if stats.WindowsAnalyzed != 1 {
		t.Errorf("WindowsAnalyzed = %d, want 1 (the stale window never counts)", stats.WindowsAnalyzed)
	}
}

func TestSessionSmoothingAndStatsAcrossWindows(t *testing.T) {
	t.Parallel()

	remote := &scriptedRemote{estimates: []PitchEstimate{
		{FrequencyHz: 400, Confidence: 0.9},
		{FrequencyHz: 500, Confidence: 0.9},
	}}
	session, results := newTestSession(DefaultConfig(), remote)
	defer session.Close()

	feedSine(session, 440)
	session.Tick()
	first := waitResult(t, results)
	if math.Abs(first.FrequencyHz-400) > 0.01 {
		t.Fatalf("first frequency %.2f, want 400", first.FrequencyHz)
	}

	feedSine(session, 440)
	session.Tick()
	second := waitResult(t, results)
	if math.Abs(second.FrequencyHz-450) > 0.01 {
		t.Errorf("second frequency %.2f, want the 400/500 average 450", second.FrequencyHz)
	}
	if second.Note != "A4" {
		t.Errorf("second note %q, want A4", second.Note)
	}
	if second.Cents <= 0 {
		t.Errorf("second cents %.2f, want positive (450 Hz is sharp of A4)", second.Cents)
	}

	stats := session.Stats()
	if stats.VoicedResults != 2 || stats.RemoteResults != 2 {
		t.Errorf("stats = %+v, want 2 voiced remote results", stats)
	}
	if math.Abs(stats.MinFrequencyHz-400) > 0.01 || math.Abs(stats.MaxFrequencyHz-450) > 0.01 {
		t.Errorf("frequency range [%.2f, %.2f], want [400, 450]", stats.MinFrequencyHz, stats.MaxFrequencyHz)
	}
	if math.Abs(stats.MeanFrequencyHz-425) > 0.01 {
		t.Errorf("mean frequency %.2f, want 425", stats.MeanFrequencyHz)
	}
}

func TestSessionCloseStopsEmission(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RemoteTimeoutMs = 2000

	remote := &fakeRemote{blockUntilCancel: true}
	session, results := newTestSession(cfg, remote)

	feedSine(session, 440)
	session.Tick()
	session.Close()

	// Close must not block on the in-flight call, and nothing is delivered
	// after it.
	select {
	case result := <-results:
		t.Fatalf("result emitted after Close: %+v", result)
	case <-time.After(200 * time.Millisecond):
	}

	if got := session.RecentSamples(10); len(got) != 0 {
		t.Errorf("history holds %d samples after Close, want 0", len(got))
	}
}

func TestSessionTickWithoutAudioIsNoop(t *testing.T) {
	t.Parallel()

	session, results := newTestSession(DefaultConfig(), nil)
	defer session.Close()

	session.Tick()
	select {
	case result := <-results:
		t.Fatalf("tick without audio emitted %+v", result)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionRejectsSampleRateChange(t *testing.T) {
	t.Parallel()

	session, _ := newTestSession(DefaultConfig(), nil)
	defer session.Close()

	session.SubmitSamples(make([]float64, 100), 44100, time.Now())
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on mid-session sample rate change")
		}
	}()
	session.SubmitSamples(make([]float64, 100), 48000, time.Now())
}

// fakeRemote is a scriptable stand-in for the inference service.
type fakeRemote struct {
	estimate         PitchEstimate
	err              error
	delay            time.Duration
	blockUntilCancel bool
	calls            int32
}

func (f *fakeRemote) EstimatePitch(ctx context.Context, samples []float64, sampleRate int) (PitchEstimate, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.blockUntilCancel {
		<-ctx.Done()
		return PitchEstimate{}, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return PitchEstimate{}, ctx.Err()
		}
	}
	return f.estimate, f.err
}

func (f *fakeRemote) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

// scriptedRemote returns a fixed sequence of estimates, one per call.
type scriptedRemote struct {
	mu        sync.Mutex
	estimates []PitchEstimate
	next      int
}

func (s *scriptedRemote) EstimatePitch(ctx context.Context, samples []float64, sampleRate int) (PitchEstimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.estimates) {
		return PitchEstimate{}, nil
	}
	estimate := s.estimates[s.next]
	s.next++
	return estimate, nil
}

func newTestSession(cfg Config, remote RemoteEstimator) (*Session, chan AnalysisResult) {
	results := make(chan AnalysisResult, 16)
	session := NewSession(cfg, remote, func(r AnalysisResult) {
		results <- r
	})
	return session, results
}

func feedSine(s *Session, freq float64) {
	window := sineWindow(freq, 0.5, 44100, 8192)
	s.SubmitSamples(window.Samples, 44100, time.Now())
}

func waitResult(t *testing.T, results <-chan AnalysisResult) AnalysisResult {
	t.Helper()
	select {
	case result := <-results:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an analysis result")
		return AnalysisResult{}
	}
}
