package db

import (
	"fmt"
	"strings"

	"vocal-trainer/models"
	"vocal-trainer/utils"
)

// Client is the persistence contract for session summaries and note labels.
// Two backends exist: SQLite for single-node deployments (the default) and
// MongoDB for shared setups.
type Client interface {
	Close() error

	StoreSession(record *models.SessionRecord) error
	GetSessions(limit int) ([]models.SessionRecord, error)
	GetSession(id string) (models.SessionRecord, bool, error)
	TotalSessions() (int, error)

	StoreLabels(labels []models.NoteLabel) error
	GetLabels(sessionID string) ([]models.NoteLabel, error)
}

// NewDBClient selects a backend from the DB_TYPE environment variable
// ("sqlite" or "mongo").
func NewDBClient() (Client, error) {
	dbType := strings.ToLower(utils.GetEnv("DB_TYPE", "sqlite"))
	switch dbType {
	case "sqlite":
		return NewSQLiteClient(utils.GetEnv("SQLITE_DB_PATH", "storage/trainer.db"))
	case "mongo":
		return NewMongoClient(utils.GetEnv("MONGO_URI", "mongodb://localhost:27017"))
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", dbType)
	}
}
