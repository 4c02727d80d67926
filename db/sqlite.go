package db

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"vocal-trainer/models"
	"vocal-trainer/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

func createTables(db *sql.DB) error {
	createSessionsTable := `
    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY,
        started_at DATETIME NOT NULL,
        ended_at DATETIME NOT NULL,
        duration_seconds REAL NOT NULL DEFAULT 0,
        windows_analyzed INTEGER NOT NULL DEFAULT 0,
        voiced_results INTEGER NOT NULL DEFAULT 0,
        remote_results INTEGER NOT NULL DEFAULT 0,
        local_results INTEGER NOT NULL DEFAULT 0,
        vibrato_results INTEGER NOT NULL DEFAULT 0,
        mean_frequency REAL NOT NULL DEFAULT 0,
        min_frequency REAL NOT NULL DEFAULT 0,
        max_frequency REAL NOT NULL DEFAULT 0,
        feedback TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
    `

	createLabelsTable := `
    CREATE TABLE IF NOT EXISTS note_labels (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        time_seconds REAL NOT NULL,
        frequency REAL NOT NULL,
        note TEXT,
        cents REAL NOT NULL DEFAULT 0,
        confidence REAL NOT NULL DEFAULT 0,
        provenance TEXT NOT NULL DEFAULT 'none',
        vibrato_rate REAL NOT NULL DEFAULT 0,
        vibrato_depth REAL NOT NULL DEFAULT 0,
        vibrato_quality TEXT NOT NULL DEFAULT 'none'
    );
    CREATE INDEX IF NOT EXISTS idx_labels_session ON note_labels(session_id);
    `

	if _, err := db.Exec(createSessionsTable); err != nil {
		return fmt.Errorf("error creating sessions table: %w", err)
	}
	if _, err := db.Exec(createLabelsTable); err != nil {
		return fmt.Errorf("error creating note_labels table: %w", err)
	}
	return nil
}

func (c *SQLiteClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SQLiteClient) StoreSession(record *models.SessionRecord) error {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO sessions (
			id, started_at, ended_at, duration_seconds, windows_analyzed,
			voiced_results, remote_results, local_results, vibrato_results,
			mean_frequency, min_frequency, max_frequency, feedback
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.StartedAt,
		record.EndedAt,
		record.DurationSeconds,
		record.WindowsAnalyzed,
		record.VoicedResults,
		record.RemoteResults,
		record.LocalResults,
		record.VibratoResults,
		record.MeanFrequencyHz,
		record.MinFrequencyHz,
		record.MaxFrequencyHz,
		record.Feedback,
	)
	if err != nil {
		return fmt.Errorf("error storing session: %w", err)
	}
	return nil
}

func (c *SQLiteClient) GetSessions(limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.Query(`
		SELECT id, started_at, ended_at, duration_seconds, windows_analyzed,
		       voiced_results, remote_results, local_results, vibrato_results,
		       mean_frequency, min_frequency, max_frequency, COALESCE(feedback, '')
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (c *SQLiteClient) GetSession(id string) (models.SessionRecord, bool, error) {
	row := c.db.QueryRow(`
		SELECT id, started_at, ended_at, duration_seconds, windows_analyzed,
		       voiced_results, remote_results, local_results, vibrato_results,
		       mean_frequency, min_frequency, max_frequency, COALESCE(feedback, '')
		FROM sessions WHERE id = ?
	`, id)

	record, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.SessionRecord{}, false, nil
		}
		return models.SessionRecord{}, false, err
	}
	return record, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.SessionRecord, error) {
	var record models.SessionRecord
	err := row.Scan(
		&record.ID,
		&record.StartedAt,
		&record.EndedAt,
		&record.DurationSeconds,
		&record.WindowsAnalyzed,
		&record.VoicedResults,
		&record.RemoteResults,
		&record.LocalResults,
		&record.VibratoResults,
		&record.MeanFrequencyHz,
		&record.MinFrequencyHz,
		&record.MaxFrequencyHz,
		&record.Feedback,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.SessionRecord{}, err
		}
		return models.SessionRecord{}, fmt.Errorf("error scanning session: %w", err)
	}
	return record, nil
}

func (c *SQLiteClient) TotalSessions() (int, error) {
	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting sessions: %w", err)
	}
	return count, nil
}

func (c *SQLiteClient) StoreLabels(labels []models.NoteLabel) error {
	if len(labels) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO note_labels (
			session_id, time_seconds, frequency, note, cents, confidence,
			provenance, vibrato_rate, vibrato_depth, vibrato_quality
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, label := range labels {
		if _, err := stmt.Exec(
			label.SessionID,
			label.TimeSeconds,
			label.FrequencyHz,
			label.Note,
			label.Cents,
			label.Confidence,
			label.Provenance,
			label.VibratoRateHz,
			label.VibratoDepth,
			label.VibratoQuality,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("error inserting label: %w", err)
		}
	}

	return tx.Commit()
}

func (c *SQLiteClient) GetLabels(sessionID string) ([]models.NoteLabel, error) {
	rows, err := c.db.Query(`
		SELECT session_id, time_seconds, frequency, note, cents, confidence,
		       provenance, vibrato_rate, vibrato_depth, vibrato_quality
		FROM note_labels
		WHERE session_id = ?
		ORDER BY time_seconds ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("error querying labels: %w", err)
	}
	defer rows.Close()

	var labels []models.NoteLabel
	for rows.Next() {
		var label models.NoteLabel
		if err := rows.Scan(
			&label.SessionID,
			&label.TimeSeconds,
			&label.FrequencyHz,
			&label.Note,
			&label.Cents,
			&label.Confidence,
			&label.Provenance,
			&label.VibratoRateHz,
			&label.VibratoDepth,
			&label.VibratoQuality,
		); err != nil {
			return nil, fmt.Errorf("error scanning label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}
