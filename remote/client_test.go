package remote

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vocal-trainer/pitch"
	"vocal-trainer/wav"
)

func TestEstimatePitchRequestContract(t *testing.T) {
	t.Parallel()

	samples := []float64{0, 0.25, 0.5, 0.25, 0, -0.25, -0.5, -0.25}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" {
			t.Errorf("request path %q, want /analyze", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %q, want application/json", ct)
		}

		var req struct {
			AudioBase64 string `json:"audio_base64"`
			SampleRate  int    `json:"sample_rate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req.SampleRate != 44100 {
			t.Errorf("sample_rate %d, want 44100", req.SampleRate)
		}
		decoded, err := wav.DecodeBase64PCM(req.AudioBase64)
		if err != nil {
			t.Errorf("audio payload does not decode: %v", err)
		}
		if len(decoded) != len(samples) {
			t.Errorf("decoded %d samples, want %d", len(decoded), len(samples))
		}

		writeAnalyzeResponse(w, []float64{440, 441}, []float64{0.9, 0.8})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0.5)
	estimate, err := client.EstimatePitch(context.Background(), samples, 44100)
	if err != nil {
		t.Fatalf("EstimatePitch returned error: %v", err)
	}
	if estimate.Provenance != pitch.ProvenanceRemote {
		t.Errorf("provenance %s, want remote", estimate.Provenance)
	}
	if math.Abs(estimate.FrequencyHz-440.5) > 1e-9 {
		t.Errorf("frequency %.3f, want the frame average 440.5", estimate.FrequencyHz)
	}
	if math.Abs(estimate.Confidence-0.85) > 1e-9 {
		t.Errorf("confidence %.3f, want the frame average 0.85", estimate.Confidence)
	}
}

func TestEstimatePitchFiltersLowConfidenceFrames(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The 100 Hz frame is an octave glitch with low confidence and the
		// zero-pitch frame is unvoiced; only the two 330 Hz frames count.
		writeAnalyzeResponse(w,
			[]float64{330, 100, 0, 332},
			[]float64{0.9, 0.3, 0.95, 0.7},
		)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0.5)
	estimate, err := client.EstimatePitch(context.Background(), []float64{0, 0.1}, 44100)
	if err != nil {
		t.Fatalf("EstimatePitch returned error: %v", err)
	}
	if math.Abs(estimate.FrequencyHz-331) > 1e-9 {
		t.Errorf("frequency %.3f, want 331 from the confident frames only", estimate.FrequencyHz)
	}
	if math.Abs(estimate.Confidence-0.8) > 1e-9 {
		t.Errorf("confidence %.3f, want 0.8", estimate.Confidence)
	}
}

func TestEstimatePitchNoConfidentFramesIsUnvoiced(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAnalyzeResponse(w, []float64{200, 210}, []float64{0.1, 0.2})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0.5)
	estimate, err := client.EstimatePitch(context.Background(), []float64{0, 0.1}, 44100)
	if err != nil {
		t.Fatalf("an all-quiet response is not an error, got: %v", err)
	}
	if !estimate.Unvoiced() {
		t.Errorf("estimate %.2f Hz, want unvoiced", estimate.FrequencyHz)
	}
	if estimate.Provenance != pitch.ProvenanceRemote {
		t.Errorf("provenance %s, want remote", estimate.Provenance)
	}
}

func TestEstimatePitchServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0.5)
	if _, err := client.EstimatePitch(context.Background(), []float64{0, 0.1}, 44100); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}

func TestEstimatePitchMismatchedArrays(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAnalyzeResponse(w, []float64{440, 441}, []float64{0.9})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0.5)
	if _, err := client.EstimatePitch(context.Background(), []float64{0, 0.1}, 44100); err == nil {
		t.Fatal("expected error on mismatched pitch/confidence arrays")
	}
}

func TestEstimatePitchHonorsContextDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		writeAnalyzeResponse(w, []float64{440}, []float64{0.9})
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, 0.5)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.EstimatePitch(ctx, []float64{0, 0.1}, 44100)
	if err == nil {
		t.Fatal("expected deadline error from a stalled service")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("call took %v, deadline was not honored", elapsed)
	}
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("request path %q, want /health", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	if err := NewClient(healthy.URL, 0.5).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck against a healthy service: %v", err)
	}

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	if err := NewClient(unhealthy.URL, 0.5).HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck passed against an unhealthy service")
	}
}

func writeAnalyzeResponse(w http.ResponseWriter, pitches, confidences []float64) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"pitches":     pitches,
		"confidences": confidences,
	})
}
