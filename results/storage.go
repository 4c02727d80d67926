package results

// JSON-file archive of completed session summaries. This sits beside the
// database on purpose: the archive is a flat, greppable record the labeling
// dashboards can consume directly, and it survives database resets.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vocal-trainer/models"
	"vocal-trainer/utils"
)

var (
	sessionsFile = "sessions.json"
	mu           sync.RWMutex
)

func archivePath() string {
	dir := utils.GetEnv("SESSION_ARCHIVE_DIR", "storage")
	return filepath.Join(dir, sessionsFile)
}

// loadSessionsInternal loads all archived sessions (without lock).
func loadSessionsInternal() ([]models.SessionRecord, error) {
	filePath := archivePath()

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return []models.SessionRecord{}, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading sessions file: %w", err)
	}
	if len(data) == 0 {
		return []models.SessionRecord{}, nil
	}

	var records []models.SessionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error unmarshaling sessions: %w", err)
	}
	return records, nil
}

// LoadSessions loads all archived session summaries.
func LoadSessions() ([]models.SessionRecord, error) {
	mu.RLock()
	defer mu.RUnlock()
	return loadSessionsInternal()
}

// SaveSession appends a session summary to the archive.
func SaveSession(record *models.SessionRecord) error {
	mu.Lock()
	defer mu.Unlock()

	records, err := loadSessionsInternal()
	if err != nil {
		return err
	}

	if record.EndedAt.IsZero() {
		record.EndedAt = time.Now()
	}
	records = append(records, *record)

	filePath := archivePath()
	dir := filepath.Dir(filePath)
	if dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling sessions: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("error writing sessions file: %w", err)
	}
	return nil
}
