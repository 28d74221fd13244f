package repository

import (
	"context"
	"fmt"
	"time"

	"SpotiTrace/db"
	"SpotiTrace/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventRepository defines the interface for StreamingHistory data operations.
type EventRepository interface {
	// LatestTimestamp returns the newest ts_utc in the collection, or nil when
	// the collection is empty.
	LatestTimestamp(ctx context.Context) (*time.Time, error)
	// InsertEvents appends events in the given order and returns the count.
	InsertEvents(ctx context.Context, events []*model.StreamingEvent) (int, error)
	// RecentEvents returns the most recent events sorted by ts_utc descending.
	RecentEvents(ctx context.Context, limit int) ([]*model.StreamingEvent, error)
	// TotalCount returns the collection size.
	TotalCount(ctx context.Context) (int64, error)
	// TotalMinutes sums min_played over the whole log.
	TotalMinutes(ctx context.Context) (float64, error)
	// CountNull counts documents whose field is null.
	CountNull(ctx context.Context, field string) (int64, error)
	// CountEmpty counts documents whose field is an empty string.
	CountEmpty(ctx context.Context, field string) (int64, error)
}

// mongoEventRepository implements EventRepository on MongoDB.
type mongoEventRepository struct {
	coll *mongo.Collection
}

// NewMongoEventRepository creates a new instance of mongoEventRepository.
func NewMongoEventRepository() EventRepository {
	return &mongoEventRepository{coll: db.Streaming()}
}

func (r *mongoEventRepository) LatestTimestamp(ctx context.Context) (*time.Time, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "ts_utc", Value: -1}})

	var doc struct {
		TsUTC time.Time `bson:"ts_utc"`
	}
	err := r.coll.FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest timestamp: %w", err)
	}

	// 统一为UTC后再比较，时区问题必须在存储边界消灭
	ts := doc.TsUTC.UTC()
	return &ts, nil
}

func (r *mongoEventRepository) InsertEvents(ctx context.Context, events []*model.StreamingEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(events))
	for i, e := range events {
		docs[i] = e
	}

	result, err := r.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to insert events: %w", err)
	}
	return len(result.InsertedIDs), nil
}

func (r *mongoEventRepository) RecentEvents(ctx context.Context, limit int) ([]*model.StreamingEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "ts_utc", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*model.StreamingEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode recent events: %w", err)
	}
	return events, nil
}

func (r *mongoEventRepository) TotalCount(ctx context.Context) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (r *mongoEventRepository) TotalMinutes(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$min_played"}}},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate total minutes: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("failed to decode total minutes: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (r *mongoEventRepository) CountNull(ctx context.Context, field string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{field: nil})
	if err != nil {
		return 0, fmt.Errorf("failed to count null %s: %w", field, err)
	}
	return count, nil
}

func (r *mongoEventRepository) CountEmpty(ctx context.Context, field string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{field: ""})
	if err != nil {
		return 0, fmt.Errorf("failed to count empty %s: %w", field, err)
	}
	return count, nil
}
