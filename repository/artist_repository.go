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

// ArtistRepository defines the interface for artists_master data operations.
type ArtistRepository interface {
	// ExistingNames returns the set of normalized artist names in the catalog.
	ExistingNames(ctx context.Context) (map[string]bool, error)
	// InsertArtists appends new catalog entries and returns the count.
	InsertArtists(ctx context.Context, artists []*model.Artist) (int, error)
	// FillLanguage sets language and method only where the artist has no
	// usable language yet. Existing verdicts are never overwritten.
	FillLanguage(ctx context.Context, artistName, language, method string) (bool, error)
	// FindSoundtrackMismatches returns artists violating the soundtrack invariant.
	FindSoundtrackMismatches(ctx context.Context) ([]*model.Artist, error)
	// ApplySoundtrackFix forces the soundtrack sentinel onto one artist.
	ApplySoundtrackFix(ctx context.Context, id primitive.ObjectID) (bool, error)
	// SamplePrefix returns up to limit artists in natural order, for sampled checks.
	SamplePrefix(ctx context.Context, limit int) ([]*model.Artist, error)
	// DuplicateNames groups entries by case-insensitive name and returns groups with count > 1.
	DuplicateNames(ctx context.Context, limit int) ([]model.DuplicateGroup, error)
	// InvalidDetectionMethods returns distinct out-of-enumeration method values and their doc count.
	InvalidDetectionMethods(ctx context.Context, limit int) ([]string, int64, error)
	// TopByFollowers returns up to limit artists ordered by follower count descending.
	TopByFollowers(ctx context.Context, limit int) ([]*model.Artist, error)
	TotalCount(ctx context.Context) (int64, error)
	CountNull(ctx context.Context, field string) (int64, error)
	CountEmpty(ctx context.Context, field string) (int64, error)
	CountNonBooleanSoundtrack(ctx context.Context) (int64, error)
	// CountMissingURI counts entries with a null, empty or absent artist_uri.
	CountMissingURI(ctx context.Context) (int64, error)
	// CountMissingMetadata counts entries missing follower or popularity data.
	CountMissingMetadata(ctx context.Context) (int64, error)
}

// mongoArtistRepository implements ArtistRepository on MongoDB.
type mongoArtistRepository struct {
	coll *mongo.Collection
}

// NewMongoArtistRepository creates a new instance of mongoArtistRepository.
func NewMongoArtistRepository() ArtistRepository {
	return &mongoArtistRepository{coll: db.Artists()}
}

func (r *mongoArtistRepository) ExistingNames(ctx context.Context) (map[string]bool, error) {
	opts := options.Find().SetProjection(bson.D{{Key: "artist_name", Value: 1}})

	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing artist names: %w", err)
	}
	defer cursor.Close(ctx)

	names := make(map[string]bool)
	for cursor.Next(ctx) {
		var doc struct {
			ArtistName string `bson:"artist_name"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode artist name: %w", err)
		}
		names[model.NormalizeName(doc.ArtistName)] = true
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error while reading artist names: %w", err)
	}
	return names, nil
}

func (r *mongoArtistRepository) InsertArtists(ctx context.Context, artists []*model.Artist) (int, error) {
	if len(artists) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(artists))
	for i, a := range artists {
		docs[i] = a
	}

	result, err := r.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to insert artists: %w", err)
	}
	return len(result.InsertedIDs), nil
}

func (r *mongoArtistRepository) FillLanguage(ctx context.Context, artistName, language, method string) (bool, error) {
	filter := bson.M{
		"artist_name": artistName,
		"$or": bson.A{
			bson.M{"language": nil},
			bson.M{"language": model.LanguageUnknown},
			bson.M{"language": bson.M{"$exists": false}},
		},
	}

	set := bson.M{
		"language":         language,
		"detection_method": method,
	}
	// 艺术家语言判定为哨兵值意味着该艺术家本身是配乐侧的
	if language == model.LanguageSoundtrack {
		set["is_soundtrack"] = true
	}

	result, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to fill artist language: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *mongoArtistRepository) FindSoundtrackMismatches(ctx context.Context) ([]*model.Artist, error) {
	filter := bson.M{
		"is_soundtrack": true,
		"language":      bson.M{"$ne": model.LanguageSoundtrack},
	}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query artist soundtrack mismatches: %w", err)
	}
	defer cursor.Close(ctx)

	var artists []*model.Artist
	if err := cursor.All(ctx, &artists); err != nil {
		return nil, fmt.Errorf("failed to decode artist soundtrack mismatches: %w", err)
	}
	return artists, nil
}

func (r *mongoArtistRepository) ApplySoundtrackFix(ctx context.Context, id primitive.ObjectID) (bool, error) {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"language":         model.LanguageSoundtrack,
			"detection_method": model.MethodSoundtrack,
		}})
	if err != nil {
		return false, fmt.Errorf("failed to apply artist soundtrack fix: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *mongoArtistRepository) SamplePrefix(ctx context.Context, limit int) ([]*model.Artist, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to sample artists: %w", err)
	}
	defer cursor.Close(ctx)

	var artists []*model.Artist
	if err := cursor.All(ctx, &artists); err != nil {
		return nil, fmt.Errorf("failed to decode sampled artists: %w", err)
	}
	return artists, nil
}

func (r *mongoArtistRepository) DuplicateNames(ctx context.Context, limit int) ([]model.DuplicateGroup, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$toLower", Value: "$artist_name"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "names", Value: bson.D{{Key: "$push", Value: "$artist_name"}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
		{{Key: "$limit", Value: limit}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate duplicate artists: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []model.DuplicateGroup
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode duplicate artists: %w", err)
	}
	return groups, nil
}

func (r *mongoArtistRepository) InvalidDetectionMethods(ctx context.Context, limit int) ([]string, int64, error) {
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

func (r *mongoArtistRepository) TopByFollowers(ctx context.Context, limit int) ([]*model.Artist, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "followers", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{"followers": bson.M{"$ne": nil}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query top artists: %w", err)
	}
	defer cursor.Close(ctx)

	var artists []*model.Artist
	if err := cursor.All(ctx, &artists); err != nil {
		return nil, fmt.Errorf("failed to decode top artists: %w", err)
	}
	return artists, nil
}

func (r *mongoArtistRepository) TotalCount(ctx context.Context) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count artists: %w", err)
	}
	return count, nil
}

func (r *mongoArtistRepository) CountNull(ctx context.Context, field string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{field: nil})
	if err != nil {
		return 0, fmt.Errorf("failed to count null %s: %w", field, err)
	}
	return count, nil
}

func (r *mongoArtistRepository) CountEmpty(ctx context.Context, field string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{field: ""})
	if err != nil {
		return 0, fmt.Errorf("failed to count empty %s: %w", field, err)
	}
	return count, nil
}

func (r *mongoArtistRepository) CountNonBooleanSoundtrack(ctx context.Context) (int64, error) {
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

func (r *mongoArtistRepository) CountMissingURI(ctx context.Context) (int64, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"artist_uri": nil},
		bson.M{"artist_uri": ""},
		bson.M{"artist_uri": bson.M{"$exists": false}},
	}}
	count, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count missing artist URIs: %w", err)
	}
	return count, nil
}

func (r *mongoArtistRepository) CountMissingMetadata(ctx context.Context) (int64, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"followers": nil},
		bson.M{"popularity": nil},
	}}
	count, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count missing artist metadata: %w", err)
	}
	return count, nil
}
