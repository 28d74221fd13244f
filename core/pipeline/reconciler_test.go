package pipeline

import (
	"context"
	"testing"
	"time"

	"SpotiTrace/core/spotify"
	"SpotiTrace/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileCreatesMissingCatalogEntries(t *testing.T) {
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	events := &memEventRepo{}
	seedEventWithURI(events, "Song A", "Artist One", "spotify:track:a", base)
	seedEventWithURI(events, "Song B", "Artist Two", "spotify:track:b", base.Add(time.Minute))

	year := 2020
	src := &fakeSpotify{
		trackDetails: map[string]*spotify.TrackDetail{
			"spotify:track:a": {
				DurationMs:      210000,
				DurationS:       210,
				ReleaseDate:     "2020-01-15",
				ReleaseDateYear: &year,
				Popularity:      65,
				AlbumName:       "Album A",
				Artists: []spotify.TrackArtist{
					{ID: "id-one", Name: "Artist One", URI: "spotify:artist:id-one"},
				},
			},
			// Song B解析失败
			"spotify:track:b": nil,
		},
		artistDetails: map[string]*spotify.ArtistDetail{
			"id-one": {
				Name:       "Artist One",
				URI:        "spotify:artist:id-one",
				Genres:     "indie, folk",
				Followers:  50000,
				Popularity: 70,
			},
		},
	}
	songs := &memSongRepo{}
	artists := &memArtistRepo{}

	reconciler := NewReconciler(src, events, songs, artists, testConfig())
	songsAdded, artistsAdded, err := reconciler.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, songsAdded)
	assert.Equal(t, 2, artistsAdded)

	// 解析成功的歌曲带完整元数据
	var songA, songB *model.Song
	for _, s := range songs.songs {
		switch s.SongName {
		case "Song A":
			songA = s
		case "Song B":
			songB = s
		}
	}
	require.NotNil(t, songA)
	require.NotNil(t, songA.DurationMs)
	assert.Equal(t, int64(210000), *songA.DurationMs)
	require.NotNil(t, songA.ReleaseDateYear)
	assert.Equal(t, 2020, *songA.ReleaseDateYear)
	assert.Nil(t, songA.HasLyrics, "富化字段入库时保持null")
	assert.Nil(t, songA.Language)

	// 解析失败的歌曲以空元数据入库，不丢弃
	require.NotNil(t, songB)
	assert.Nil(t, songB.DurationMs)
	assert.Nil(t, songB.Popularity)

	// 能解析到ID的艺术家带元数据，其余空值入库
	var one, two *model.Artist
	for _, a := range artists.artists {
		switch a.ArtistName {
		case "Artist One":
			one = a
		case "Artist Two":
			two = a
		}
	}
	require.NotNil(t, one)
	require.NotNil(t, one.Followers)
	assert.Equal(t, int64(50000), *one.Followers)
	assert.Equal(t, "indie, folk", one.Genres)
	require.NotNil(t, two)
	assert.Nil(t, two.Followers)
}

func TestReconcileSkipsExistingEntriesByNormalizedKey(t *testing.T) {
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	events := &memEventRepo{}
	// 事件中的大小写与空白和目录不同，但归一化键一致
	seedEventWithURI(events, "  SONG a ", "ARTIST One", "spotify:track:a", base)

	songs := &memSongRepo{songs: []*model.Song{
		{ID: newID(), SongName: "Song A", ArtistName: "Artist One"},
	}}
	artists := &memArtistRepo{artists: []*model.Artist{
		{ID: newID(), ArtistName: "artist one"},
	}}
	src := &fakeSpotify{}

	reconciler := NewReconciler(src, events, songs, artists, testConfig())
	songsAdded, artistsAdded, err := reconciler.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Zero(t, songsAdded)
	assert.Zero(t, artistsAdded)
	assert.Len(t, songs.songs, 1)
	assert.Len(t, artists.artists, 1)
}

func TestReconcileDeduplicatesWithinWindow(t *testing.T) {
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	events := &memEventRepo{}
	// 同一首歌播放三次，目录只建一条
	seedEventWithURI(events, "Repeat Song", "Same Artist", "spotify:track:r", base)
	seedEventWithURI(events, "repeat song", "same artist", "spotify:track:r", base.Add(time.Minute))
	seedEventWithURI(events, "Repeat Song", "Same Artist", "spotify:track:r", base.Add(2*time.Minute))

	songs := &memSongRepo{}
	artists := &memArtistRepo{}
	src := &fakeSpotify{}

	reconciler := NewReconciler(src, events, songs, artists, testConfig())
	songsAdded, artistsAdded, err := reconciler.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, songsAdded)
	assert.Equal(t, 1, artistsAdded)
}

func TestReconcileEmptyWindow(t *testing.T) {
	reconciler := NewReconciler(&fakeSpotify{}, &memEventRepo{}, &memSongRepo{}, &memArtistRepo{}, testConfig())

	songsAdded, artistsAdded, err := reconciler.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Zero(t, songsAdded)
	assert.Zero(t, artistsAdded)
}

func seedEventWithURI(repo *memEventRepo, track, artist, uri string, ts time.Time) {
	_, _ = repo.InsertEvents(context.Background(), []*model.StreamingEvent{{
		TsUTC:           ts,
		TrackName:       track,
		ArtistName:      artist,
		AlbumName:       "Some Album",
		SpotifyTrackURI: uri,
	}})
}
