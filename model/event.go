package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProcessingVersion is stamped on every event written by this pipeline.
const ProcessingVersion = "2.0"

// DataSourceRecentlyPlayed marks events pulled from the recently-played endpoint.
const DataSourceRecentlyPlayed = "recently_played_api"

// StreamingEvent represents one normalized play record in the StreamingHistory
// collection. Events are write-once in this pipeline; only the language field is
// back-filled later by a separate process.
type StreamingEvent struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"-"`

	// 时间戳统一为去时区的UTC，入库前在边界处归一化
	TsUTC time.Time `bson:"ts_utc" json:"tsUtc"`

	TrackName       string `bson:"track_name" json:"trackName"`
	ArtistName      string `bson:"artist_name" json:"artistName"`
	AlbumName       string `bson:"album_name" json:"albumName"`
	SpotifyTrackURI string `bson:"spotify_track_uri" json:"spotifyTrackUri"`

	// 播放时长的各种换算，recently-played只返回完整播放，取曲目全长
	MsPlayed  int64   `bson:"ms_played" json:"msPlayed"`
	SPlayed   float64 `bson:"s_played" json:"sPlayed"`
	MinPlayed float64 `bson:"min_played" json:"minPlayed"`
	HPlayed   float64 `bson:"h_played" json:"hPlayed"`

	// 派生日历字段
	Date      string `bson:"date" json:"date"` // YYYY-MM-DD
	Year      int    `bson:"year" json:"year"`
	Month     string `bson:"month" json:"month"`
	DayOfWeek string `bson:"day_of_week" json:"dayOfWeek"`

	DataSource     string `bson:"data_source" json:"dataSource"`
	IsCompletePlay bool   `bson:"is_complete_play" json:"isCompletePlay"`
	Skipped        bool   `bson:"skipped" json:"skipped"`
	Offline        bool   `bson:"offline" json:"offline"`

	// Language is populated later from the song catalog; null until then.
	Language *string `bson:"language" json:"language"`

	CreatedAt         time.Time `bson:"created_at" json:"-"`
	LastUpdated       time.Time `bson:"last_updated" json:"-"`
	ProcessingVersion string    `bson:"processing_version" json:"-"`
}
