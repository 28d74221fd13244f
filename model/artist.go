package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// Artist represents one entry of the artists_master catalog, keyed by the
// normalized artist name. Language/detection fields are filled once by the
// classifier and never overwritten while a non-Unknown language is present.
type Artist struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"-"`

	ArtistName string `bson:"artist_name" json:"artistName"`
	ArtistURI  string `bson:"artist_uri" json:"artistUri"`

	// Spotify艺术家元数据，名称匹配失败时保持空值
	Genres     string `bson:"genres" json:"genres"` // 逗号拼接的流派标签
	Followers  *int64 `bson:"followers" json:"followers"`
	Popularity *int   `bson:"popularity" json:"popularity"`

	IsSoundtrack    bool    `bson:"is_soundtrack" json:"isSoundtrack"`
	Language        *string `bson:"language" json:"language"`
	DetectionMethod *string `bson:"detection_method" json:"detectionMethod"`
}

// Key returns the artist's normalized natural identity.
func (a *Artist) Key() string {
	return NormalizeName(a.ArtistName)
}
