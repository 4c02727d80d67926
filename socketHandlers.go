package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"vocal-trainer/db"
	"vocal-trainer/models"
	"vocal-trainer/pitch"
	"vocal-trainer/results"
	"vocal-trainer/utils"
	"vocal-trainer/wav"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

// socketController owns the live analysis sessions, one per connected client.
// The socket events mirror the recording lifecycle: startSession opens a
// pitch.Session and its cadence ticker, audioChunk feeds samples, stopSession
// (or disconnect) tears everything down and persists the summary.
type socketController struct {
	cfg      pitch.Config
	remote   pitch.RemoteEstimator
	dbClient db.Client

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	id        string
	session   *pitch.Session
	ticker    *time.Ticker
	done      chan struct{}
	startedAt time.Time

	mu     sync.Mutex
	labels []models.NoteLabel
}

func newSocketController(cfg pitch.Config, remote pitch.RemoteEstimator, dbClient db.Client) *socketController {
	return &socketController{
		cfg:      cfg,
		remote:   remote,
		dbClient: dbClient,
		sessions: make(map[string]*liveSession),
	}
}

func (c *socketController) handleStartSession(socket socketio.Conn) {
	logger := utils.GetLogger()
	ctx := context.Background()

	// A fresh start replaces any session this client already has.
	c.teardown(socket.ID(), false)

	live := &liveSession{
		id:        fmt.Sprintf("session_%08x", utils.GenerateUniqueID()),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}

	live.session = pitch.NewSession(c.cfg, c.remote, func(result pitch.AnalysisResult) {
		socket.Emit("analysisResult", result)
		live.recordLabel(result)
	})

	live.ticker = time.NewTicker(time.Duration(c.cfg.CadenceMs) * time.Millisecond)
	go func() {
		for {
			select {
			case <-live.ticker.C:
				live.session.Tick()
			case <-live.done:
				return
			}
		}
	}()

	c.mu.Lock()
	c.sessions[socket.ID()] = live
	c.mu.Unlock()

	logger.InfoContext(ctx, "analysis session started",
		slog.String("socketID", socket.ID()),
		slog.String("sessionID", live.id),
	)
	socket.Emit("sessionStarted", map[string]string{"id": live.id})
}

func (c *socketController) handleAudioChunk(socket socketio.Conn, payload string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	c.mu.Lock()
	live := c.sessions[socket.ID()]
	c.mu.Unlock()
	if live == nil {
		socket.Emit("analysisError", map[string]string{"message": "no active session"})
		return
	}

	var chunk models.StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to parse audio chunk", slog.Any("error", err))
		socket.Emit("analysisError", map[string]string{"message": "invalid audio payload"})
		return
	}
	if chunk.SampleRate <= 0 {
		logger.ErrorContext(ctx, "audio chunk with invalid sample rate",
			slog.String("socketID", socket.ID()),
			slog.Int("sampleRate", chunk.SampleRate),
		)
		socket.Emit("analysisError", map[string]string{"message": "invalid sample rate"})
		return
	}

	samples, err := wav.DecodeBase64PCM(chunk.Audio)
	if err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to decode audio chunk", slog.Any("error", err))
		socket.Emit("analysisError", map[string]string{"message": "unable to decode audio"})
		return
	}

	capturedAt := time.Now()
	if chunk.TimestampMs > 0 {
		capturedAt = time.UnixMilli(chunk.TimestampMs)
	}
	live.session.SubmitSamples(samples, chunk.SampleRate, capturedAt)
}

func (c *socketController) handleStopSession(socket socketio.Conn) {
	record := c.teardown(socket.ID(), true)
	if record != nil {
		socket.Emit("sessionSummary", record)
	}
}

func (c *socketController) handleDisconnect(socketID string) {
	c.teardown(socketID, true)
}

// teardown stops a client's session. When persist is set the summary and
// labels are stored; either way the engine session is closed and removed.
func (c *socketController) teardown(socketID string, persist bool) *models.SessionRecord {
	c.mu.Lock()
	live := c.sessions[socketID]
	delete(c.sessions, socketID)
	c.mu.Unlock()
	if live == nil {
		return nil
	}

	live.ticker.Stop()
	close(live.done)

	stats := live.session.Stats()
	live.session.Close()
	if !persist {
		return nil
	}

	endedAt := time.Now()
	record := &models.SessionRecord{
		ID:              live.id,
		StartedAt:       live.startedAt,
		EndedAt:         endedAt,
		DurationSeconds: endedAt.Sub(live.startedAt).Seconds(),
		WindowsAnalyzed: stats.WindowsAnalyzed,
		VoicedResults:   stats.VoicedResults,
		RemoteResults:   stats.RemoteResults,
		LocalResults:    stats.LocalResults,
		VibratoResults:  stats.VibratoResults,
		MeanFrequencyHz: stats.MeanFrequencyHz,
		MinFrequencyHz:  stats.MinFrequencyHz,
		MaxFrequencyHz:  stats.MaxFrequencyHz,
	}

	logger := utils.GetLogger()
	ctx := context.Background()

	if err := c.dbClient.StoreSession(record); err != nil {
		logger.ErrorContext(ctx, "failed to store session", slog.Any("error", xerrors.New(err)))
	}
	live.mu.Lock()
	labels := live.labels
	live.labels = nil
	live.mu.Unlock()
	if err := c.dbClient.StoreLabels(labels); err != nil {
		logger.ErrorContext(ctx, "failed to store labels", slog.Any("error", xerrors.New(err)))
	}
	if err := results.SaveSession(record); err != nil {
		log.Printf("[Socket] Failed to archive session %s: %v\n", record.ID, err)
	}

	logger.InfoContext(ctx, "analysis session stopped",
		slog.String("sessionID", record.ID),
		slog.Int("windows", record.WindowsAnalyzed),
		slog.Int("voiced", record.VoicedResults),
		slog.Float64("duration", record.DurationSeconds),
	)
	return record
}

// recordLabel keeps a voiced result for the labeling database.
func (l *liveSession) recordLabel(result pitch.AnalysisResult) {
	if result.FrequencyHz <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.labels = append(l.labels, models.NoteLabel{
		SessionID:      l.id,
		TimeSeconds:    result.CapturedAt.Sub(l.startedAt).Seconds(),
		FrequencyHz:    result.FrequencyHz,
		Note:           result.Note,
		Cents:          result.Cents,
		Confidence:     result.Confidence,
		Provenance:     result.Provenance.String(),
		VibratoRateHz:  result.Vibrato.RateHz,
		VibratoDepth:   result.Vibrato.DepthSemitones,
		VibratoQuality: result.Vibrato.Quality,
	})
}
