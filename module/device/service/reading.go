package service

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"TeleProject/module/device/model"
)

// ReadingService keeps the reading history in Mongo, newest first per
// device. The live fan-out never reads from here; the bus carries its own
// copy of every sample.
type ReadingService struct {
	col *mongo.Collection
}

func NewReadingService(db *mongo.Database) *ReadingService {
	return &ReadingService{col: db.Collection("readings")}
}

// EnsureIndexes creates the device+time index the history queries rely on.
func (s *ReadingService) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "device_id", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	return errors.Wrap(err, "reading: ensure indexes")
}

func (s *ReadingService) Insert(ctx context.Context, r model.Reading) error {
	if _, err := s.col.InsertOne(ctx, r); err != nil {
		return errors.Wrap(err, "reading: insert")
	}
	return nil
}

// ListByDevice returns up to limit readings for one device, newest first.
func (s *ReadingService) ListByDevice(ctx context.Context, deviceID string, limit int64) ([]model.Reading, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)
	cur, err := s.col.Find(ctx, bson.M{"device_id": deviceID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "reading: find")
	}
	defer cur.Close(ctx)

	var out []model.Reading
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "reading: decode")
	}
	return out, nil
}
