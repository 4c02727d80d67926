package models

import "time"

// StreamChunk is the audio payload emitted by the recording client over the
// socket: base64-encoded 16-bit little-endian mono PCM plus capture metadata.
type StreamChunk struct {
	Audio       string `json:"audio"`
	SampleRate  int    `json:"sampleRate"`
	TimestampMs int64  `json:"timestampMs"`
}

// SessionRecord is a stored summary of one completed analysis session.
type SessionRecord struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt"`
	DurationSeconds float64   `json:"duration"`
	WindowsAnalyzed int       `json:"windowsAnalyzed"`
	VoicedResults   int       `json:"voicedResults"`
	RemoteResults   int       `json:"remoteResults"`
	LocalResults    int       `json:"localResults"`
	VibratoResults  int       `json:"vibratoResults"`
	MeanFrequencyHz float64   `json:"meanFrequency"`
	MinFrequencyHz  float64   `json:"minFrequency"`
	MaxFrequencyHz  float64   `json:"maxFrequency"`
	Feedback        string    `json:"feedback,omitempty"`
}

// NoteLabel is one labeled analysis result within a session, the unit the
// training dashboards consume.
type NoteLabel struct {
	SessionID      string  `json:"sessionId"`
	TimeSeconds    float64 `json:"time"`
	FrequencyHz    float64 `json:"frequency"`
	Note           string  `json:"note"`
	Cents          float64 `json:"cents"`
	Confidence     float64 `json:"confidence"`
	Provenance     string  `json:"provenance"`
	VibratoRateHz  float64 `json:"vibratoRate"`
	VibratoDepth   float64 `json:"vibratoDepth"`
	VibratoQuality string  `json:"vibratoQuality"`
}
