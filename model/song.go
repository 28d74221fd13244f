package model

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Language sentinels shared by songs and artists.
const (
	LanguageSoundtrack = "Soundtrack"
	LanguageUnknown    = "Unknown"
)

// Detection method tags written by the enrichment classifier.
const (
	MethodLyrics             = "lyrics"
	MethodTitle              = "title"
	MethodArtistName         = "artist_name"
	MethodCharacterDetection = "character_detection"
	MethodSoundtrack         = "soundtrack"
	MethodMajoritySongs      = "majority_songs"
	MethodUnknown            = "unknown"
)

// ValidDetectionMethods is the closed set accepted by the validator.
var ValidDetectionMethods = map[string]bool{
	MethodLyrics:             true,
	MethodTitle:              true,
	MethodArtistName:         true,
	MethodCharacterDetection: true,
	MethodSoundtrack:         true,
	MethodMajoritySongs:      true,
	MethodUnknown:            true,
}

// SongKey is the normalized natural identity of a song: lower-cased, trimmed
// (title, artist) pair. The Spotify URI is deliberately not part of the identity
// because the same work can carry multiple URIs across re-releases.
type SongKey struct {
	Title  string
	Artist string
}

// NormalizeName folds case and trims surrounding whitespace for key matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewSongKey builds the dedup key for a title/artist pair.
func NewSongKey(title, artist string) SongKey {
	return SongKey{Title: NormalizeName(title), Artist: NormalizeName(artist)}
}

// Song represents one entry of the songs_master catalog.
// Created by the reconciler with nulled enrichment fields, mutated only by the
// classifier (enrichment) and the validator (soundtrack repair).
type Song struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"-"`

	SongName        string `bson:"song_name" json:"songName"`
	ArtistName      string `bson:"artist_name" json:"artistName"`
	SpotifyTrackURI string `bson:"spotify_track_uri" json:"spotifyTrackUri"`

	// Spotify曲目元数据，批量解析失败时保持null
	DurationMs      *int64   `bson:"duration_ms" json:"durationMs"`
	DurationS       *float64 `bson:"duration_s" json:"durationS"`
	ReleaseDate     *string  `bson:"release_date" json:"releaseDate"`
	ReleaseDateYear *int     `bson:"release_date_year" json:"releaseDateYear"`
	Popularity      *int     `bson:"popularity" json:"popularity"`
	AlbumName       *string  `bson:"album_name" json:"albumName"`

	// 富化结果，入库时全部为null/false，由分类器填充
	IsSoundtrack    bool    `bson:"is_soundtrack" json:"isSoundtrack"`
	HasLyrics       *bool   `bson:"has_lyrics" json:"hasLyrics"` // 三态：null=未处理
	Lyrics          string  `bson:"lyrics,omitempty" json:"-"`
	Language        *string `bson:"language" json:"language"`
	DetectionMethod *string `bson:"detection_method" json:"detectionMethod"`
}

// Key returns the song's normalized natural identity.
func (s *Song) Key() SongKey {
	return NewSongKey(s.SongName, s.ArtistName)
}
