package db

import (
	"context"
	"fmt"
	"time"

	"vocal-trainer/models"
	"vocal-trainer/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoOpTimeout = 10 * time.Second

type MongoClient struct {
	client   *mongo.Client
	database *mongo.Database
}

func NewMongoClient(uri string) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	dbName := utils.GetEnv("MONGO_DB_NAME", "vocal_trainer")
	return &MongoClient{
		client:   client,
		database: client.Database(dbName),
	}, nil
}

func (c *MongoClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}

func (c *MongoClient) sessions() *mongo.Collection {
	return c.database.Collection("sessions")
}

func (c *MongoClient) labels() *mongo.Collection {
	return c.database.Collection("note_labels")
}

func (c *MongoClient) StoreSession(record *models.SessionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	filter := bson.M{"id": record.ID}
	update := bson.M{"$set": record}
	_, err := c.sessions().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error storing session: %w", err)
	}
	return nil
}

func (c *MongoClient) GetSessions(limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "startedat", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := c.sessions().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.SessionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("error decoding sessions: %w", err)
	}
	return records, nil
}

func (c *MongoClient) GetSession(id string) (models.SessionRecord, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	var record models.SessionRecord
	err := c.sessions().FindOne(ctx, bson.M{"id": id}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.SessionRecord{}, false, nil
		}
		return models.SessionRecord{}, false, fmt.Errorf("error retrieving session: %w", err)
	}
	return record, true, nil
}

func (c *MongoClient) TotalSessions() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	count, err := c.sessions().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("error counting sessions: %w", err)
	}
	return int(count), nil
}

func (c *MongoClient) StoreLabels(labels []models.NoteLabel) error {
	if len(labels) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	docs := make([]interface{}, len(labels))
	for i, label := range labels {
		docs[i] = label
	}
	if _, err := c.labels().InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("error inserting labels: %w", err)
	}
	return nil
}

func (c *MongoClient) GetLabels(sessionID string) ([]models.NoteLabel, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timeseconds", Value: 1}})
	cursor, err := c.labels().Find(ctx, bson.M{"sessionid": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying labels: %w", err)
	}
	defer cursor.Close(ctx)

	var labels []models.NoteLabel
	if err := cursor.All(ctx, &labels); err != nil {
		return nil, fmt.Errorf("error decoding labels: %w", err)
	}
	return labels, nil
}
