package remote

// Client for the neural pitch estimation service (a CREPE-style model served
// over HTTP). The service analyzes one window per request and returns framed
// pitch/confidence arrays; the client collapses them into a single estimate
// by averaging the frames that clear the confidence floor, the same way the
// live listener consumed the service.
//
// The call either succeeds within its deadline or fails; there is no degraded
// response. Falling back to the local estimator is the caller's job.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vocal-trainer/pitch"
	"vocal-trainer/wav"
)

// Client communicates with the pitch inference service.
type Client struct {
	serviceURL    string
	minConfidence float64
	client        *http.Client
}

type analyzeRequest struct {
	AudioBase64 string `json:"audio_base64"`
	SampleRate  int    `json:"sample_rate"`
}

type analyzeResponse struct {
	Pitches     []float64 `json:"pitches"`
	Confidences []float64 `json:"confidences"`
}

// NewClient creates a client for the given service URL. minConfidence filters
// which response frames count toward the averaged estimate.
func NewClient(serviceURL string, minConfidence float64) *Client {
	if serviceURL == "" {
		serviceURL = "http://localhost:5001"
	}
	return &Client{
		serviceURL:    serviceURL,
		minConfidence: minConfidence,
		client: &http.Client{
			// Per-call deadlines come from the request context; this is a
			// hard ceiling against a missing deadline.
			Timeout: 10 * time.Second,
		},
	}
}

// HealthCheck verifies the inference service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serviceURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pitch service not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pitch service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// EstimatePitch submits one analysis window and returns the averaged
// estimate. It implements pitch.RemoteEstimator.
func (c *Client) EstimatePitch(ctx context.Context, samples []float64, sampleRate int) (pitch.PitchEstimate, error) {
	payload, err := json.Marshal(analyzeRequest{
		AudioBase64: wav.EncodeBase64PCM(samples),
		SampleRate:  sampleRate,
	})
	if err != nil {
		return pitch.PitchEstimate{}, fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return pitch.PitchEstimate{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return pitch.PitchEstimate{}, fmt.Errorf("pitch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return pitch.PitchEstimate{}, fmt.Errorf("pitch service returned status %d: %s", resp.StatusCode, string(body))
	}

	var analyzed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&analyzed); err != nil {
		return pitch.PitchEstimate{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(analyzed.Pitches) != len(analyzed.Confidences) {
		return pitch.PitchEstimate{}, fmt.Errorf("mismatched response arrays: %d pitches, %d confidences",
			len(analyzed.Pitches), len(analyzed.Confidences))
	}

	return c.collapse(analyzed), nil
}

// collapse averages the frames above the confidence floor. A response with no
// confident frames is a valid unvoiced estimate, not an error.
func (c *Client) collapse(analyzed analyzeResponse) pitch.PitchEstimate {
	var freqSum, confSum float64
	var n int
	for i, conf := range analyzed.Confidences {
		if conf < c.minConfidence || analyzed.Pitches[i] <= 0 {
			continue
		}
		freqSum += analyzed.Pitches[i]
		confSum += conf
		n++
	}
	if n == 0 {
		return pitch.PitchEstimate{Provenance: pitch.ProvenanceRemote}
	}
	return pitch.PitchEstimate{
		FrequencyHz: freqSum / float64(n),
		Confidence:  confSum / float64(n),
		Provenance:  pitch.ProvenanceRemote,
	}
}
