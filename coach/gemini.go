package coach

import (
	"context"
	"fmt"
	"os"
	"strings"

	"vocal-trainer/models"

	"google.golang.org/genai"
)

type GeminiCoach struct {
	client *genai.Client
	ctx    context.Context
}

const coachSystemPrompt = `You are a supportive vocal coach reviewing a singer's practice session.
You receive pitch-analysis statistics: how much of the session was voiced, the
frequency range covered, and how often a healthy vibrato was detected.

Give concrete, encouraging feedback:
- Comment on pitch range and stability.
- If vibrato appeared rarely, suggest one exercise to develop it.
- If much of the session was unvoiced, suggest breath or posture work.

Keep responses under 120 words and avoid jargon the singer may not know.`

func NewGeminiCoach() (*GeminiCoach, error) {
	ctx := context.Background()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiCoach{
		client: client,
		ctx:    ctx,
	}, nil
}

// FeedbackForSession turns a stored session summary into coaching feedback.
func (g *GeminiCoach) FeedbackForSession(record models.SessionRecord) (string, error) {
	summary := sessionPrompt(record)

	systemInstruction := genai.NewContentFromText(coachSystemPrompt, genai.RoleModel)
	userContent := genai.NewContentFromText(summary, genai.RoleUser)

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       genai.Ptr(float32(0.7)),
		TopP:              genai.Ptr(float32(0.8)),
		MaxOutputTokens:   int32(200),
	}

	resp, err := g.client.Models.GenerateContent(
		g.ctx,
		"gemini-2.5-flash",
		[]*genai.Content{userContent},
		config,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate feedback: %w", err)
	}

	text := strings.ReplaceAll(resp.Text(), "*", "")
	if text == "" {
		return "Keep practicing! Not enough data came through to review this session.", nil
	}
	return text, nil
}

func sessionPrompt(record models.SessionRecord) string {
	voicedRatio := 0.0
	if record.WindowsAnalyzed > 0 {
		voicedRatio = float64(record.VoicedResults) / float64(record.WindowsAnalyzed)
	}
	vibratoRatio := 0.0
	if record.VoicedResults > 0 {
		vibratoRatio = float64(record.VibratoResults) / float64(record.VoicedResults)
	}

	return fmt.Sprintf(
		"Practice session of %.0f seconds. %d analysis windows, %.0f%% voiced. "+
			"Pitch range %.0f-%.0f Hz, average %.0f Hz. "+
			"Vibrato present in %.0f%% of voiced windows.",
		record.DurationSeconds,
		record.WindowsAnalyzed,
		voicedRatio*100,
		record.MinFrequencyHz,
		record.MaxFrequencyHz,
		record.MeanFrequencyHz,
		vibratoRatio*100,
	)
}

func (g *GeminiCoach) Close() error {
	// The client manages its resources automatically.
	return nil
}
