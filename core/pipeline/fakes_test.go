package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"SpotiTrace/core/spotify"
	"SpotiTrace/model"
	"SpotiTrace/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newID() primitive.ObjectID {
	return primitive.NewObjectID()
}

// fakeSpotify 可编程的Spotify数据源
type fakeSpotify struct {
	items         []spotify.RecentlyPlayedItem
	recentlyErr   error
	refreshErr    error
	refreshCalls  int
	trackDetails  map[string]*spotify.TrackDetail
	artistDetails map[string]*spotify.ArtistDetail

	// 刷新成功后清除recentlyErr，模拟token换新
	clearErrOnRefresh bool
}

func (f *fakeSpotify) RecentlyPlayed(ctx context.Context, limit int) ([]spotify.RecentlyPlayedItem, []byte, error) {
	if f.recentlyErr != nil {
		return nil, nil, f.recentlyErr
	}
	if limit > len(f.items) {
		limit = len(f.items)
	}
	return f.items[:limit], []byte(`{"items":[]}`), nil
}

func (f *fakeSpotify) RefreshAccessToken(ctx context.Context) error {
	f.refreshCalls++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	if f.clearErrOnRefresh {
		f.recentlyErr = nil
	}
	return nil
}

func (f *fakeSpotify) BatchTrackDetails(ctx context.Context, trackURIs []string) map[string]*spotify.TrackDetail {
	out := make(map[string]*spotify.TrackDetail, len(trackURIs))
	for _, uri := range trackURIs {
		out[uri] = f.trackDetails[uri]
	}
	return out
}

func (f *fakeSpotify) BatchArtistDetails(ctx context.Context, artistIDs []string) map[string]*spotify.ArtistDetail {
	out := make(map[string]*spotify.ArtistDetail, len(artistIDs))
	for _, id := range artistIDs {
		out[id] = f.artistDetails[id]
	}
	return out
}

// fakeLyrics 以 "title|artist" 为键返回固定歌词
type fakeLyrics struct {
	lyrics map[string]string
	err    error
	calls  int
}

func (f *fakeLyrics) SearchLyrics(ctx context.Context, title, artist string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.lyrics[title+"|"+artist], nil
}

// fakeStatistical 返回固定的语言判定
type fakeStatistical struct {
	code       string
	confidence float64
}

func (f *fakeStatistical) Detect(text string) (string, float64) {
	return f.code, f.confidence
}

// memEventRepo 内存事件仓库
type memEventRepo struct {
	events []*model.StreamingEvent
}

func (m *memEventRepo) LatestTimestamp(ctx context.Context) (*time.Time, error) {
	if len(m.events) == 0 {
		return nil, nil
	}
	latest := m.events[0].TsUTC
	for _, ev := range m.events[1:] {
		if ev.TsUTC.After(latest) {
			latest = ev.TsUTC
		}
	}
	latest = latest.UTC()
	return &latest, nil
}

func (m *memEventRepo) InsertEvents(ctx context.Context, events []*model.StreamingEvent) (int, error) {
	for _, ev := range events {
		ev.ID = primitive.NewObjectID()
		m.events = append(m.events, ev)
	}
	return len(events), nil
}

func (m *memEventRepo) RecentEvents(ctx context.Context, limit int) ([]*model.StreamingEvent, error) {
	sorted := make([]*model.StreamingEvent, len(m.events))
	copy(sorted, m.events)
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].TsUTC.After(sorted[b].TsUTC)
	})
	if limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (m *memEventRepo) TotalCount(ctx context.Context) (int64, error) {
	return int64(len(m.events)), nil
}

func (m *memEventRepo) TotalMinutes(ctx context.Context) (float64, error) {
	var total float64
	for _, ev := range m.events {
		total += ev.MinPlayed
	}
	return total, nil
}

func (m *memEventRepo) CountNull(ctx context.Context, field string) (int64, error) {
	return 0, nil
}

func (m *memEventRepo) CountEmpty(ctx context.Context, field string) (int64, error) {
	var count int64
	for _, ev := range m.events {
		switch field {
		case "track_name":
			if ev.TrackName == "" {
				count++
			}
		case "artist_name":
			if ev.ArtistName == "" {
				count++
			}
		}
	}
	return count, nil
}

// memSongRepo 内存歌曲仓库
type memSongRepo struct {
	songs     []*model.Song
	fillCalls int
}

func (m *memSongRepo) ExistingKeys(ctx context.Context) (map[model.SongKey]bool, error) {
	keys := make(map[model.SongKey]bool)
	for _, s := range m.songs {
		keys[s.Key()] = true
	}
	return keys, nil
}

func (m *memSongRepo) InsertSongs(ctx context.Context, songs []*model.Song) (int, error) {
	for _, s := range songs {
		s.ID = primitive.NewObjectID()
		m.songs = append(m.songs, s)
	}
	return len(songs), nil
}

func (m *memSongRepo) FindUnprocessed(ctx context.Context) ([]*model.Song, error) {
	var out []*model.Song
	for _, s := range m.songs {
		if s.HasLyrics == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSongRepo) UpdateEnrichment(ctx context.Context, id primitive.ObjectID, update repository.EnrichmentUpdate) error {
	for _, s := range m.songs {
		if s.ID == id {
			hasLyrics := update.HasLyrics
			language := update.Language
			method := update.DetectionMethod
			s.HasLyrics = &hasLyrics
			s.Language = &language
			s.DetectionMethod = &method
			s.IsSoundtrack = update.IsSoundtrack
			if update.Lyrics != "" {
				s.Lyrics = update.Lyrics
			}
			return nil
		}
	}
	return nil
}

func (m *memSongRepo) FindSoundtrackMismatches(ctx context.Context) ([]*model.Song, error) {
	var out []*model.Song
	for _, s := range m.songs {
		if s.IsSoundtrack && (s.Language == nil || *s.Language != model.LanguageSoundtrack) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSongRepo) ApplySoundtrackFix(ctx context.Context, id primitive.ObjectID) (bool, error) {
	for _, s := range m.songs {
		if s.ID == id {
			language := model.LanguageSoundtrack
			method := model.MethodSoundtrack
			s.Language = &language
			s.DetectionMethod = &method
			m.fillCalls++
			return true, nil
		}
	}
	return false, nil
}

func (m *memSongRepo) SamplePrefix(ctx context.Context, limit int) ([]*model.Song, error) {
	if limit > len(m.songs) {
		limit = len(m.songs)
	}
	return m.songs[:limit], nil
}

func (m *memSongRepo) DuplicateKeys(ctx context.Context, limit int) ([]model.DuplicateGroup, error) {
	byKey := make(map[model.SongKey][]string)
	for _, s := range m.songs {
		byKey[s.Key()] = append(byKey[s.Key()], s.SongName+" - "+s.ArtistName)
	}
	var groups []model.DuplicateGroup
	for _, names := range byKey {
		if len(names) > 1 {
			groups = append(groups, model.DuplicateGroup{Names: names, Count: int64(len(names))})
		}
	}
	if len(groups) > limit {
		groups = groups[:limit]
	}
	return groups, nil
}

func (m *memSongRepo) InvalidDetectionMethods(ctx context.Context, limit int) ([]string, int64, error) {
	seen := make(map[string]bool)
	var methods []string
	var count int64
	for _, s := range m.songs {
		if s.DetectionMethod == nil || model.ValidDetectionMethods[*s.DetectionMethod] {
			continue
		}
		count++
		if !seen[*s.DetectionMethod] && len(methods) < limit {
			seen[*s.DetectionMethod] = true
			methods = append(methods, *s.DetectionMethod)
		}
	}
	return methods, count, nil
}

func (m *memSongRepo) TotalCount(ctx context.Context) (int64, error) {
	return int64(len(m.songs)), nil
}

func (m *memSongRepo) CountNull(ctx context.Context, field string) (int64, error) {
	var count int64
	for _, s := range m.songs {
		switch field {
		case "language":
			if s.Language == nil {
				count++
			}
		case "detection_method":
			if s.DetectionMethod == nil {
				count++
			}
		}
	}
	return count, nil
}

func (m *memSongRepo) CountEmpty(ctx context.Context, field string) (int64, error) {
	var count int64
	for _, s := range m.songs {
		switch field {
		case "song_name":
			if s.SongName == "" {
				count++
			}
		case "artist_name":
			if s.ArtistName == "" {
				count++
			}
		}
	}
	return count, nil
}

func (m *memSongRepo) CountNonBooleanSoundtrack(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *memSongRepo) CountMissingURI(ctx context.Context) (int64, error) {
	var count int64
	for _, s := range m.songs {
		if s.SpotifyTrackURI == "" {
			count++
		}
	}
	return count, nil
}

func (m *memSongRepo) CountMissingMetadata(ctx context.Context) (int64, error) {
	var count int64
	for _, s := range m.songs {
		if s.DurationMs == nil || s.Popularity == nil {
			count++
		}
	}
	return count, nil
}

func (m *memSongRepo) LanguageDistribution(ctx context.Context) (map[string]int64, error) {
	dist := make(map[string]int64)
	for _, s := range m.songs {
		key := "null"
		if s.Language != nil {
			key = *s.Language
		}
		dist[key]++
	}
	return dist, nil
}

// memArtistRepo 内存艺术家仓库
type memArtistRepo struct {
	artists       []*model.Artist
	fillLanguage  int // FillLanguage调用次数
	filledApplied int // 实际发生写入的次数
}

func (m *memArtistRepo) ExistingNames(ctx context.Context) (map[string]bool, error) {
	names := make(map[string]bool)
	for _, a := range m.artists {
		names[a.Key()] = true
	}
	return names, nil
}

func (m *memArtistRepo) InsertArtists(ctx context.Context, artists []*model.Artist) (int, error) {
	for _, a := range artists {
		a.ID = primitive.NewObjectID()
		m.artists = append(m.artists, a)
	}
	return len(artists), nil
}

func (m *memArtistRepo) FillLanguage(ctx context.Context, artistName, language, method string) (bool, error) {
	m.fillLanguage++
	for _, a := range m.artists {
		if !strings.EqualFold(strings.TrimSpace(a.ArtistName), strings.TrimSpace(artistName)) {
			continue
		}
		if a.Language != nil && *a.Language != model.LanguageUnknown {
			return false, nil
		}
		lang := language
		meth := method
		a.Language = &lang
		a.DetectionMethod = &meth
		if language == model.LanguageSoundtrack {
			a.IsSoundtrack = true
		}
		m.filledApplied++
		return true, nil
	}
	return false, nil
}

func (m *memArtistRepo) FindSoundtrackMismatches(ctx context.Context) ([]*model.Artist, error) {
	var out []*model.Artist
	for _, a := range m.artists {
		if a.IsSoundtrack && (a.Language == nil || *a.Language != model.LanguageSoundtrack) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memArtistRepo) ApplySoundtrackFix(ctx context.Context, id primitive.ObjectID) (bool, error) {
	for _, a := range m.artists {
		if a.ID == id {
			language := model.LanguageSoundtrack
			method := model.MethodSoundtrack
			a.Language = &language
			a.DetectionMethod = &method
			return true, nil
		}
	}
	return false, nil
}

func (m *memArtistRepo) SamplePrefix(ctx context.Context, limit int) ([]*model.Artist, error) {
	if limit > len(m.artists) {
		limit = len(m.artists)
	}
	return m.artists[:limit], nil
}

func (m *memArtistRepo) DuplicateNames(ctx context.Context, limit int) ([]model.DuplicateGroup, error) {
	byName := make(map[string][]string)
	for _, a := range m.artists {
		byName[a.Key()] = append(byName[a.Key()], a.ArtistName)
	}
	var groups []model.DuplicateGroup
	for _, names := range byName {
		if len(names) > 1 {
			groups = append(groups, model.DuplicateGroup{Names: names, Count: int64(len(names))})
		}
	}
	if len(groups) > limit {
		groups = groups[:limit]
	}
	return groups, nil
}

func (m *memArtistRepo) InvalidDetectionMethods(ctx context.Context, limit int) ([]string, int64, error) {
	var methods []string
	var count int64
	for _, a := range m.artists {
		if a.DetectionMethod != nil && !model.ValidDetectionMethods[*a.DetectionMethod] {
			count++
			if len(methods) < limit {
				methods = append(methods, *a.DetectionMethod)
			}
		}
	}
	return methods, count, nil
}

func (m *memArtistRepo) TopByFollowers(ctx context.Context, limit int) ([]*model.Artist, error) {
	sorted := make([]*model.Artist, 0, len(m.artists))
	for _, a := range m.artists {
		if a.Followers != nil {
			sorted = append(sorted, a)
		}
	}
	sort.Slice(sorted, func(a, b int) bool {
		return *sorted[a].Followers > *sorted[b].Followers
	})
	if limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (m *memArtistRepo) TotalCount(ctx context.Context) (int64, error) {
	return int64(len(m.artists)), nil
}

func (m *memArtistRepo) CountNull(ctx context.Context, field string) (int64, error) {
	var count int64
	for _, a := range m.artists {
		if field == "language" && a.Language == nil {
			count++
		}
	}
	return count, nil
}

func (m *memArtistRepo) CountEmpty(ctx context.Context, field string) (int64, error) {
	var count int64
	for _, a := range m.artists {
		if field == "artist_name" && a.ArtistName == "" {
			count++
		}
	}
	return count, nil
}

func (m *memArtistRepo) CountNonBooleanSoundtrack(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *memArtistRepo) CountMissingURI(ctx context.Context) (int64, error) {
	var count int64
	for _, a := range m.artists {
		if a.ArtistURI == "" {
			count++
		}
	}
	return count, nil
}

func (m *memArtistRepo) CountMissingMetadata(ctx context.Context) (int64, error) {
	var count int64
	for _, a := range m.artists {
		if a.Followers == nil || a.Popularity == nil {
			count++
		}
	}
	return count, nil
}
