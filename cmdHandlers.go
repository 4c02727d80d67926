package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vocal-trainer/coach"
	"vocal-trainer/db"
	"vocal-trainer/pitch"
	"vocal-trainer/remote"
	"vocal-trainer/results"
	"vocal-trainer/tts"
	"vocal-trainer/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

type apiError struct {
	Message string `json:"message"`
}

type coachRequest struct {
	SessionID string `json:"sessionId"`
}

type coachResponse struct {
	SessionID string `json:"sessionId"`
	Feedback  string `json:"feedback"`
}

type speechRequest struct {
	Text string `json:"text"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

// engineConfigFromEnv overlays the engine defaults with environment tunables.
func engineConfigFromEnv() pitch.Config {
	cfg := pitch.DefaultConfig()
	cfg.WindowSizeSamples = envInt("WINDOW_SIZE_SAMPLES", cfg.WindowSizeSamples)
	cfg.CadenceMs = envInt("CADENCE_MS", cfg.CadenceMs)
	cfg.RemoteTimeoutMs = envInt("REMOTE_TIMEOUT_MS", cfg.RemoteTimeoutMs)
	cfg.MinConfidence = envFloat("MIN_CONFIDENCE", cfg.MinConfidence)
	cfg.YinThreshold = envFloat("YIN_THRESHOLD", cfg.YinThreshold)
	cfg.VibratoWindowSize = envInt("VIBRATO_WINDOW_SIZE", cfg.VibratoWindowSize)
	cfg.VibratoMinRateHz = envFloat("VIBRATO_MIN_RATE_HZ", cfg.VibratoMinRateHz)
	cfg.VibratoMaxRateHz = envFloat("VIBRATO_MAX_RATE_HZ", cfg.VibratoMaxRateHz)
	cfg.VibratoMinDepthSemitones = envFloat("VIBRATO_MIN_DEPTH", cfg.VibratoMinDepthSemitones)
	return cfg
}

func envInt(key string, fallback int) int {
	value, err := strconv.Atoi(utils.GetEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return value
}

func envFloat(key string, fallback float64) float64 {
	value, err := strconv.ParseFloat(utils.GetEnv(key, strconv.FormatFloat(fallback, 'f', -1, 64)), 64)
	if err != nil {
		return fallback
	}
	return value
}

func newSessionsHandler(dbClient db.Client) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				limit = parsed
			}
		}

		records, err := dbClient.GetSessions(limit)
		if err != nil {
			logger.ErrorContext(ctx, "failed to load sessions", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load sessions")
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func newLabelsHandler(dbClient db.Client) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			writeJSONError(w, http.StatusBadRequest, "session query parameter is required")
			return
		}

		labels, err := dbClient.GetLabels(sessionID)
		if err != nil {
			logger.ErrorContext(ctx, "failed to load labels", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load labels")
			return
		}
		writeJSON(w, http.StatusOK, labels)
	}
}

func newCoachHandler(dbClient db.Client) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req coachRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
			writeJSONError(w, http.StatusBadRequest, "sessionId is required")
			return
		}

		record, found, err := dbClient.GetSession(req.SessionID)
		if err != nil {
			logger.ErrorContext(ctx, "failed to load session", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load session")
			return
		}
		if !found {
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}

		geminiCoach, err := coach.NewGeminiCoach()
		if err != nil {
			logger.ErrorContext(ctx, "coach unavailable", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusServiceUnavailable, "coach unavailable")
			return
		}

		feedback, err := geminiCoach.FeedbackForSession(record)
		if err != nil {
			logger.ErrorContext(ctx, "failed to generate feedback", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusBadGateway, "failed to generate feedback")
			return
		}

		record.Feedback = feedback
		if err := dbClient.StoreSession(&record); err != nil {
			logger.ErrorContext(ctx, "failed to store feedback", slog.Any("error", xerrors.New(err)))
		}

		writeJSON(w, http.StatusOK, coachResponse{SessionID: record.ID, Feedback: feedback})
	}
}

func newSpeechHandler() http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			writeJSONError(w, http.StatusBadRequest, "text is required")
			return
		}

		ttsClient, err := tts.NewGoogleTTSClient()
		if err != nil {
			logger.ErrorContext(ctx, "TTS unavailable", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusServiceUnavailable, "TTS unavailable")
			return
		}

		audio, err := ttsClient.SynthesizeText(ctx, req.Text)
		if err != nil {
			logger.ErrorContext(ctx, "failed to synthesize speech", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusBadGateway, "failed to synthesize speech")
			return
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(audio); err != nil {
			log.Printf("failed to write speech response: %v", err)
		}
	}
}

func newArchiveHandler() http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		records, err := results.LoadSessions()
		if err != nil {
			logger.ErrorContext(ctx, "failed to load session archive", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load session archive")
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func serve(protocol, port string) {
	protocol = strings.ToLower(protocol)
	allowOriginFunc := func(r *http.Request) bool {
		return true
	}

	cfg := engineConfigFromEnv()

	var remoteEstimator pitch.RemoteEstimator
	if strings.EqualFold(utils.GetEnv("USE_REMOTE_PITCH", "true"), "true") {
		serviceURL := utils.GetEnv("PITCH_SERVICE_URL", "http://localhost:5001")
		client := remote.NewClient(serviceURL, cfg.MinConfidence)

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.HealthCheck(healthCtx); err != nil {
			log.Printf("WARNING: pitch service not reachable (%v); sessions will run on the local estimator until it comes up\n", err)
		} else {
			log.Printf("Pitch service available at %s\n", serviceURL)
		}
		cancel()

		remoteEstimator = client
	} else {
		log.Println("Remote pitch estimation disabled; running local-only")
	}

	dbClient, err := db.NewDBClient()
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer dbClient.Close()

	if total, err := dbClient.TotalSessions(); err == nil {
		log.Printf("Database ready, %d sessions stored\n", total)
	}

	controller := newSocketController(cfg, remoteEstimator, dbClient)

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		return nil
	})

	server.OnEvent("/", "startSession", func(socket socketio.Conn) {
		controller.handleStartSession(socket)
	})

	server.OnEvent("/", "audioChunk", func(socket socketio.Conn, msg string) {
		controller.handleAudioChunk(socket, msg)
	})

	server.OnEvent("/", "stopSession", func(socket socketio.Conn) {
		controller.handleStopSession(socket)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("socket error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
		controller.handleDisconnect(s.ID())
	})

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", server)
	mux.HandleFunc("/api/sessions", newSessionsHandler(dbClient))
	mux.HandleFunc("/api/labels", newLabelsHandler(dbClient))
	mux.HandleFunc("/api/archive", newArchiveHandler())
	mux.HandleFunc("/api/coach", newCoachHandler(dbClient))
	mux.HandleFunc("/api/coach/speech", newSpeechHandler())
	mux.Handle("/", http.FileServer(http.Dir("static")))

	serveHTTP(server, protocol == "https", port, mux)
}

func serveHTTP(socketServer *socketio.Server, serveHTTPS bool, port string, handler http.Handler) {
	if handler == nil {
		handler = socketServer
	}
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		certKey := utils.GetEnv("CERT_KEY", "")
		certFile := utils.GetEnv("CERT_FILE", "")
		if certKey == "" || certFile == "" {
			log.Fatal("Missing cert")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(certFile, certKey); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
