// Command analyze-wav runs the full pitch analysis pipeline over a PCM WAV
// file, printing one line per emitted result and a session summary at the
// end. It is the offline counterpart of the live socket server, useful for
// tuning the engine against recorded material.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"vocal-trainer/pitch"
	"vocal-trainer/remote"
	"vocal-trainer/wav"

	"github.com/joho/godotenv"
)

func main() {
	file := flag.String("file", "", "Path to a 16-bit PCM WAV file")
	serviceURL := flag.String("service", "", "Pitch service URL (empty = local estimator only)")
	flag.Parse()

	if *file == "" {
		fmt.Println("usage: analyze-wav -file recording.wav [-service http://localhost:5001]")
		os.Exit(1)
	}
	_ = godotenv.Load()

	info, err := wav.ReadWavInfo(*file)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *file, err)
	}
	samples, err := info.MonoSamples()
	if err != nil {
		log.Fatalf("failed to decode %s: %v", *file, err)
	}

	cfg := pitch.DefaultConfig()

	var remoteEstimator pitch.RemoteEstimator
	if *serviceURL != "" {
		client := remote.NewClient(*serviceURL, cfg.MinConfidence)
		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.HealthCheck(healthCtx); err != nil {
			log.Printf("pitch service not reachable (%v); continuing local-only", err)
		} else {
			remoteEstimator = client
		}
		cancel()
	}

	session := pitch.NewSession(cfg, remoteEstimator, printResult)
	defer session.Close()

	// Replay the file at cadence-sized steps, as if it were streaming in.
	chunkSize := info.SampleRate * cfg.CadenceMs / 1000
	start := time.Now()
	for offset := 0; offset < len(samples); offset += chunkSize {
		end := offset + chunkSize
		if end > len(samples) {
			end = len(samples)
		}
		capturedAt := start.Add(time.Duration(offset) * time.Second / time.Duration(info.SampleRate))
		session.SubmitSamples(samples[offset:end], info.SampleRate, capturedAt)
		session.Tick()
	}

	// Let in-flight window resolutions drain before summarizing.
	time.Sleep(time.Duration(cfg.RemoteTimeoutMs+100) * time.Millisecond)

	stats := session.Stats()
	fmt.Printf("\n%d windows analyzed, %d voiced (%d remote, %d local), vibrato in %d\n",
		stats.WindowsAnalyzed, stats.VoicedResults, stats.RemoteResults, stats.LocalResults, stats.VibratoResults)
	if stats.VoicedResults > 0 {
		fmt.Printf("pitch range %.1f-%.1f Hz, mean %.1f Hz\n",
			stats.MinFrequencyHz, stats.MaxFrequencyHz, stats.MeanFrequencyHz)
	}
}

func printResult(result pitch.AnalysisResult) {
	if result.FrequencyHz <= 0 {
		fmt.Printf("%s  (unvoiced)\n", result.CapturedAt.Format("15:04:05.000"))
		return
	}

	line := fmt.Sprintf("%s  %-4s %7.2f Hz  %+6.1f cents  conf %.2f  [%s]",
		result.CapturedAt.Format("15:04:05.000"),
		result.Note,
		result.FrequencyHz,
		result.Cents,
		result.Confidence,
		result.Provenance,
	)
	if result.Vibrato.IsPresent {
		line += fmt.Sprintf("  vibrato %.1f Hz / %.2f st (%s)",
			result.Vibrato.RateHz, result.Vibrato.DepthSemitones, result.Vibrato.Quality)
	}
	fmt.Println(line)
}
