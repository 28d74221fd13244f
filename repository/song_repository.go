package repository

import (
	"context"
	"fmt"

	"SpotiTrace/db"
	"SpotiTrace/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnrichmentUpdate carries the classifier's verdict for one song.
type EnrichmentUpdate struct {
	Lyrics          string
	HasLyrics       bool
	Language        string
	DetectionMethod string
	IsSoundtrack    bool
}

// SongRepository defines the interface for songs_master data operations.
type SongRepository interface {
	// ExistingKeys returns the set of normalized (title, artist) keys in the catalog.
	ExistingKeys(ctx context.Context) (map[model.SongKey]bool, error)
	// InsertSongs appends new catalog entries and returns the count.
	InsertSongs(ctx context.Context, songs []*model.Song) (int, error)
	// FindUnprocessed returns songs whose has_lyrics tri-state is still null.
	FindUnprocessed(ctx context.Context) ([]*model.Song, error)
	// UpdateEnrichment atomically writes the classifier verdict to one song.
	UpdateEnrichment(ctx context.Context, id primitive.ObjectID, update EnrichmentUpdate) error
	// FindSoundtrackMismatches returns songs violating the soundtrack invariant.
	FindSoundtrackMismatches(ctx context.Context) ([]*model.Song, error)
	// ApplySoundtrackFix forces the soundtrack sentinel onto one song.
	ApplySoundtrackFix(ctx context.Context, id primitive.ObjectID) (bool, error)
	// SamplePrefix returns up to limit songs in natural order, for sampled checks.
	SamplePrefix(ctx context.Context, limit int) ([]*model.Song, error)
	// DuplicateKeys groups entries by case-insensitive key and returns groups with count > 1.
	DuplicateKeys(ctx context.Context, limit int) ([]model.DuplicateGroup, error)
	// InvalidDetectionMethods returns distinct out-of-enumeration method values and their doc count.
	InvalidDetectionMethods(ctx context.Context, limit int) ([]string, int64, error)
	TotalCount(ctx context.Context) (int64, error)
	CountNull(ctx context.Context, field string) (int64, error)
	CountEmpty(ctx context.Context, field string) (int64, error)
	CountNonBooleanSoundtrack(ctx context.Context) (int64, error)
	// CountMissingURI counts entries with a null, empty or absent spotify_track_uri.
	CountMissingURI(ctx context.Context) (int64, error)
	// CountMissingMetadata counts entries missing duration or popularity.
	CountMissingMetadata(ctx context.Context) (int64, error)
	// LanguageDistribution groups songs by language label.
	LanguageDistribution(ctx context.Context) (map[string]int64, error)
}

// mongoSongRepository implements SongRepository on MongoDB.
type mongoSongRepository struct {
	coll *mongo.Collection
}

// NewMongoSongRepository creates a new instance of mongoSongRepository.
func NewMongoSongRepository() SongRepository {
	return &mongoSongRepository{coll: db.Songs()}
}

func (r *mongoSongRepository) ExistingKeys(ctx context.Context) (map[model.SongKey]bool, error) {
	opts := options.Find().SetProjection(bson.D{
		{Key: "song_name", Value: 1},
		{Key: "artist_name", Value: 1},
	})

	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing song keys: %w", err)
	}
	defer cursor.Close(ctx)

	keys := make(map[model.SongKey]bool)
	for cursor.Next(ctx) {
		var doc struct {
			SongName   string `bson:"song_name"`
			ArtistName string `bson:"artist_name"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode song key: %w", err)
		}
		keys[model.NewSongKey(doc.SongName, doc.ArtistName)] = true
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error while reading song keys: %w", err)
	}
	return keys, nil
}

func (r *mongoSongRepository) InsertSongs(ctx context.Context, songs []*model.Song) (int, error) {
	if len(songs) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(songs))
	for i, s := range songs {
		docs[i] = s
	}

	result, err := r.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to insert songs: %w", err)
	}
	return len(result.InsertedIDs), nil
}

func (r *mongoSongRepository) FindUnprocessed(ctx context.Context) ([]*model.Song, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"has_lyrics": nil})
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed songs: %w", err)
	}
	defer cursor.Close(ctx)

	var songs []*model.Song
	if err := cursor.All(ctx, &songs); err != nil {
		return nil, fmt.Errorf("failed to decode unprocessed songs: %w", err)
	}
	return songs, nil
}

func (r *mongoSongRepository) UpdateEnrichment(ctx context.Context, id primitive.ObjectID, update EnrichmentUpdate) error {
	set := bson.M{
		"has_lyrics":       update.HasLyrics,
		"language":         update.Language,
		"detection_method": update.DetectionMethod,
		"is_soundtrack":    update.IsSoundtrack,
	}
	if update.Lyrics != "" {
		set["lyrics"] = update.Lyrics
	}

	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update song enrichment: %w", err)
	}
	return nil
}

func (r *mongoSongRepository) FindSoundtrackMismatches(ctx context.Context) ([]*model.Song, error) {
	filter := bson.M{
		"is_soundtrack": true,
		"language":      bson.M{"$ne": model.LanguageSoundtrack},
	}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query soundtrack mismatches: %w", err)
	}
	defer cursor.Close(ctx)

	var songs []*model.Song
	if err := cursor.All(ctx, &songs); err != nil {
		return nil, fmt.Errorf("failed to decode soundtrack mismatches: %w", err)
	}
	return songs, nil
}

func (r *mongoSongRepository) ApplySoundtrackFix(ctx context.Context, id primitive.ObjectID) (bool, error) {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"language":         model.LanguageSoundtrack,
			"detection_method": model.MethodSoundtrack,
		}})
	if err != nil {
		return false, fmt.Errorf("failed to apply soundtrack fix: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *mongoSongRepository) SamplePrefix(ctx context.Context, limit int) ([]*model.Song, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to sample songs: %w", err)
	}
	defer cursor.Close(ctx)

	var songs []*model.Song
	if err := cursor.All(ctx, &songs); err != nil {
		return nil, fmt.Errorf("failed to decode sampled songs: %w", err)
	}
	return songs, nil
}

func (r *mongoSongRepository) DuplicateKeys(ctx context.Context, limit int) ([]model.DuplicateGroup, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "song", Value: bson.D{{Key: "$toLower", Value: "$song_name"}}},
				{Key: "artist", Value: bson.D{{Key: "$toLower", Value: "$artist_name"}}},
			}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "names", Value: bson.D{{Key: "$push", Value: bson.D{
				{Key: "$concat", Value: bson.A{"$song_name", " - ", "$artist_name"}},
			}}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
		{{Key: "$limit", Value: limit}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate duplicate songs: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []model.DuplicateGroup
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode duplicate songs: %w", err)
	}
	return groups, nil
}

func (r *mongoSongRepository) InvalidDetectionMethods(ctx context.Context, limit int) ([]string, int64, error) {
	valid := bson.A{nil}
	for method := range model.ValidDetectionMethods {
		valid = append(valid, method)
	}
	filter := bson.M{"detection_method": bson.M{"$exists": true, "$nin": valid}}

	count, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count invalid detection methods: %w", err)
	}
	if count == 0 {
		return nil, 0, nil
	}

	cursor, err := r.coll.Find(ctx, filter,
		options.Find().SetLimit(int64(limit)).SetProjection(bson.D{{Key: "detection_method", Value: 1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query invalid detection methods: %w", err)
	}
	defer cursor.Close(ctx)

	seen := make(map[string]bool)
	var methods []string
	for cursor.Next(ctx) {
		var doc struct {
			DetectionMethod string `bson:"detection_method"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		if !seen[doc.DetectionMethod] {
			seen[doc.DetectionMethod] = true
			methods = append(methods, doc.DetectionMethod)
		}
	}
	return methods, count, nil
}

func (r *mongoSongRepository) TotalCount(ctx context.Context) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return count, nil
}

func (r *mongoSongRepository) CountNull(ctx context.Context, field string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{field: nil})
	if err != nil {
		return 0, fmt.Errorf("failed to count null %s: %w", field, err)
	}
	return count, nil
}

func (r *mongoSongRepository) CountEmpty(ctx context.Context, field string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{field: ""})
	if err != nil {
		return 0, fmt.Errorf("failed to count empty %s: %w", field, err)
	}
	return count, nil
}

func (r *mongoSongRepository) CountNonBooleanSoundtrack(ctx context.Context) (int64, error) {
	filter := bson.M{"is_soundtrack": bson.M{
		"$exists": true,
		"$not":    bson.M{"$type": "bool"},
	}}
	count, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count non-boolean is_soundtrack: %w", err)
	}
	return count, nil
}

func (r *mongoSongRepository) CountMissingURI(ctx context.Context) (int64, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"spotify_track_uri": nil},
		bson.M{"spotify_track_uri": ""},
		bson.M{"spotify_track_uri": bson.M{"$exists": false}},
	}}
	count, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count missing track URIs: %w", err)
	}
	return count, nil
}

func (r *mongoSongRepository) CountMissingMetadata(ctx context.Context) (int64, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"duration_ms": nil},
		bson.M{"popularity": nil},
	}}
	count, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count missing song metadata: %w", err)
	}
	return count, nil
}

func (r *mongoSongRepository) LanguageDistribution(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$language", "null"}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate language distribution: %w", err)
	}
	defer cursor.Close(ctx)

	dist := make(map[string]int64)
	for cursor.Next(ctx) {
		var doc struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode language distribution: %w", err)
		}
		dist[doc.ID] = doc.Count
	}
	return dist, nil
}
