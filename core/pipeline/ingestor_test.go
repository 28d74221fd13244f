package pipeline

import (
	"context"
	"testing"
	"time"

	"SpotiTrace/config"
	"SpotiTrace/core/spotify"
	"SpotiTrace/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		RecentlyPlayedLimit: 50,
		ReconcileWindow:     50,
		BatchSize:           50,
		ConfidenceThreshold: 0.70,
		MinLyricsLength:     100,
	}
}

func playedItem(name, artist, uri string, playedAt time.Time) spotify.RecentlyPlayedItem {
	return spotify.RecentlyPlayedItem{
		PlayedAt: playedAt,
		Track: spotify.RecentTrack{
			Name:       name,
			URI:        uri,
			DurationMs: 180000,
			AlbumName:  "Test Album",
			Artists:    []string{artist},
		},
	}
}

func TestFetchNewEventsConvertsAndInserts(t *testing.T) {
	playedAt := time.Date(2026, 8, 29, 18, 30, 0, 0, time.UTC)
	src := &fakeSpotify{items: []spotify.RecentlyPlayedItem{
		playedItem("Song A", "Artist One", "spotify:track:a", playedAt),
	}}
	events := &memEventRepo{}

	ingestor := NewIngestor(src, events, testConfig())
	inserted, err := ingestor.FetchNewEvents(context.Background(), "run-1")

	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	require.Len(t, events.events, 1)

	ev := events.events[0]
	assert.Equal(t, playedAt, ev.TsUTC)
	assert.Equal(t, "Song A", ev.TrackName)
	assert.Equal(t, "Artist One", ev.ArtistName)
	assert.Equal(t, "spotify:track:a", ev.SpotifyTrackURI)
	assert.Equal(t, int64(180000), ev.MsPlayed)
	assert.Equal(t, 180.0, ev.SPlayed)
	assert.Equal(t, 3.0, ev.MinPlayed)
	assert.Equal(t, "2026-08-29", ev.Date)
	assert.Equal(t, 2026, ev.Year)
	assert.Equal(t, "August", ev.Month)
	assert.Equal(t, "Saturday", ev.DayOfWeek)
	assert.True(t, ev.IsCompletePlay)
	assert.Equal(t, "recently_played_api", ev.DataSource)
	assert.Nil(t, ev.Language)
}

func TestFetchNewEventsStrictNoveltyFilter(t *testing.T) {
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	src := &fakeSpotify{items: []spotify.RecentlyPlayedItem{
		playedItem("Old", "A", "spotify:track:old", base.Add(-time.Hour)),
		playedItem("Boundary", "A", "spotify:track:eq", base), // 等于水位线，不算新
		playedItem("New", "A", "spotify:track:new", base.Add(time.Hour)),
	}}
	events := &memEventRepo{}
	seedEvent(events, "Seeded", "A", base)

	ingestor := NewIngestor(src, events, testConfig())
	inserted, err := ingestor.FetchNewEvents(context.Background(), "run-1")

	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	require.Len(t, events.events, 2)
	assert.Equal(t, "New", events.events[1].TrackName)
}

func TestFetchNewEventsIdempotent(t *testing.T) {
	playedAt := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	src := &fakeSpotify{items: []spotify.RecentlyPlayedItem{
		playedItem("Song", "Artist", "spotify:track:s", playedAt),
	}}
	events := &memEventRepo{}
	ingestor := NewIngestor(src, events, testConfig())

	first, err := ingestor.FetchNewEvents(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	// 同批数据重复拉取不产生重复事件
	second, err := ingestor.FetchNewEvents(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Equal(t, 0, second)
	assert.Len(t, events.events, 1)
}

func TestFetchNewEventsInsertsInAscendingOrder(t *testing.T) {
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	// recently-played按时间倒序返回，入库必须转为升序
	src := &fakeSpotify{items: []spotify.RecentlyPlayedItem{
		playedItem("Third", "A", "spotify:track:3", base.Add(3*time.Minute)),
		playedItem("Second", "A", "spotify:track:2", base.Add(2*time.Minute)),
		playedItem("First", "A", "spotify:track:1", base.Add(time.Minute)),
	}}
	events := &memEventRepo{}

	ingestor := NewIngestor(src, events, testConfig())
	inserted, err := ingestor.FetchNewEvents(context.Background(), "run-1")

	require.NoError(t, err)
	assert.Equal(t, 3, inserted)
	assert.Equal(t, "First", events.events[0].TrackName)
	assert.Equal(t, "Second", events.events[1].TrackName)
	assert.Equal(t, "Third", events.events[2].TrackName)
}

func TestFetchNewEventsRefreshesExpiredToken(t *testing.T) {
	playedAt := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	src := &fakeSpotify{
		items:             []spotify.RecentlyPlayedItem{playedItem("Song", "Artist", "spotify:track:s", playedAt)},
		recentlyErr:       spotify.ErrTokenExpired,
		clearErrOnRefresh: true,
	}
	events := &memEventRepo{}

	ingestor := NewIngestor(src, events, testConfig())
	inserted, err := ingestor.FetchNewEvents(context.Background(), "run-1")

	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, src.refreshCalls)
}

func TestFetchNewEventsPersistentAuthFailureReturnsZero(t *testing.T) {
	src := &fakeSpotify{
		items:       []spotify.RecentlyPlayedItem{},
		recentlyErr: spotify.ErrTokenExpired,
		// 刷新"成功"但token依旧无效
	}
	events := &memEventRepo{}

	ingestor := NewIngestor(src, events, testConfig())
	inserted, err := ingestor.FetchNewEvents(context.Background(), "run-1")

	// 认证失败不视为错误，返回0让流水线短路
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Empty(t, events.events)
}

func seedEvent(repo *memEventRepo, track, artist string, ts time.Time) {
	_, _ = repo.InsertEvents(context.Background(), []*model.StreamingEvent{{
		TsUTC:      ts,
		TrackName:  track,
		ArtistName: artist,
	}})
}
