package pipeline

import (
	"context"

	"SpotiTrace/config"
	"SpotiTrace/core/spotify"
	"SpotiTrace/logger"
	"SpotiTrace/model"
	"SpotiTrace/repository"
)

// Reconciler 对账最近事件与主档目录，为缺失的歌曲与艺术家补建主档记录
type Reconciler struct {
	spotify SpotifySource
	events  repository.EventRepository
	songs   repository.SongRepository
	artists repository.ArtistRepository
	cfg     *config.Config
}

// NewReconciler creates a new Reconciler.
func NewReconciler(src SpotifySource, events repository.EventRepository,
	songs repository.SongRepository, artists repository.ArtistRepository, cfg *config.Config) *Reconciler {
	return &Reconciler{
		spotify: src,
		events:  events,
		songs:   songs,
		artists: artists,
		cfg:     cfg,
	}
}

// songCandidate 对账中发现的目录缺失歌曲，保留代表事件的元数据
type songCandidate struct {
	title    string
	artist   string
	trackURI string
	album    string
}

// Reconcile 回看最近的事件窗口，按归一化自然键比对主档目录，
// 批量解析Spotify元数据后补建缺失记录。返回新增的歌曲数与艺术家数。
func (r *Reconciler) Reconcile(ctx context.Context) (int, int, error) {
	recent, err := r.events.RecentEvents(ctx, r.cfg.ReconcileWindow)
	if err != nil {
		return 0, 0, err
	}
	if len(recent) == 0 {
		logger.Info("[Reconcile] 事件窗口为空，无需对账")
		return 0, 0, nil
	}

	songKeys, err := r.songs.ExistingKeys(ctx)
	if err != nil {
		return 0, 0, err
	}
	artistNames, err := r.artists.ExistingNames(ctx)
	if err != nil {
		return 0, 0, err
	}

	// 窗口内去重：同一首歌出现多次只建一条候选
	var candidates []songCandidate
	seenSongs := make(map[model.SongKey]bool)
	var missingArtists []string
	seenArtists := make(map[string]bool)

	for _, ev := range recent {
		key := model.NewSongKey(ev.TrackName, ev.ArtistName)
		if key.Title != "" && !songKeys[key] && !seenSongs[key] {
			seenSongs[key] = true
			candidates = append(candidates, songCandidate{
				title:    ev.TrackName,
				artist:   ev.ArtistName,
				trackURI: ev.SpotifyTrackURI,
				album:    ev.AlbumName,
			})
		}

		norm := model.NormalizeName(ev.ArtistName)
		if norm != "" && !artistNames[norm] && !seenArtists[norm] {
			seenArtists[norm] = true
			missingArtists = append(missingArtists, ev.ArtistName)
		}
	}

	if len(candidates) == 0 && len(missingArtists) == 0 {
		logger.Info("[Reconcile] 目录已完整",
			logger.Int("window", len(recent)))
		return 0, 0, nil
	}

	// 批量解析曲目详情，单条失败以空元数据入库
	var trackURIs []string
	for _, c := range candidates {
		if c.trackURI != "" {
			trackURIs = append(trackURIs, c.trackURI)
		}
	}
	trackDetails := r.spotify.BatchTrackDetails(ctx, trackURIs)

	songsAdded, err := r.insertMissingSongs(ctx, candidates, trackDetails)
	if err != nil {
		return 0, 0, err
	}

	artistsAdded, err := r.insertMissingArtists(ctx, missingArtists, trackDetails)
	if err != nil {
		return songsAdded, 0, err
	}

	logger.Info("[Reconcile] 对账完成",
		logger.Int("window", len(recent)),
		logger.Int("songsAdded", songsAdded),
		logger.Int("artistsAdded", artistsAdded))
	return songsAdded, artistsAdded, nil
}

// insertMissingSongs 以候选事件与批量详情构建歌曲主档记录。
// 富化字段全部置空，由分类器后续填充。
func (r *Reconciler) insertMissingSongs(ctx context.Context, candidates []songCandidate,
	details map[string]*spotify.TrackDetail) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	songs := make([]*model.Song, 0, len(candidates))
	for _, c := range candidates {
		song := &model.Song{
			SongName:        c.title,
			ArtistName:      c.artist,
			SpotifyTrackURI: c.trackURI,
		}

		if d := details[c.trackURI]; d != nil {
			ms := d.DurationMs
			s := d.DurationS
			pop := d.Popularity
			song.DurationMs = &ms
			song.DurationS = &s
			song.Popularity = &pop
			song.ReleaseDateYear = d.ReleaseDateYear
			if d.ReleaseDate != "" {
				rd := d.ReleaseDate
				song.ReleaseDate = &rd
			}
			if d.AlbumName != "" {
				album := d.AlbumName
				song.AlbumName = &album
			}
		} else if c.album != "" {
			// 批量解析失败时退回事件携带的专辑名
			album := c.album
			song.AlbumName = &album
		}

		songs = append(songs, song)
	}

	return r.songs.InsertSongs(ctx, songs)
}

// insertMissingArtists 为缺失的艺术家补建主档。艺术家ID从曲目详情中
// 按归一化名称匹配求得，匹配不到时以空元数据入库。
func (r *Reconciler) insertMissingArtists(ctx context.Context, names []string,
	trackDetails map[string]*spotify.TrackDetail) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}

	// 归一化名称 -> Spotify艺术家ID
	idByName := make(map[string]string)
	for _, d := range trackDetails {
		if d == nil {
			continue
		}
		for _, a := range d.Artists {
			norm := model.NormalizeName(a.Name)
			if norm != "" && idByName[norm] == "" {
				idByName[norm] = a.ID
			}
		}
	}

	var artistIDs []string
	for _, name := range names {
		if id := idByName[model.NormalizeName(name)]; id != "" {
			artistIDs = append(artistIDs, id)
		}
	}
	artistDetails := r.spotify.BatchArtistDetails(ctx, artistIDs)

	artists := make([]*model.Artist, 0, len(names))
	for _, name := range names {
		artist := &model.Artist{ArtistName: name}

		id := idByName[model.NormalizeName(name)]
		if d := artistDetails[id]; id != "" && d != nil {
			artist.ArtistURI = d.URI
			artist.Genres = d.Genres
			followers := d.Followers
			pop := d.Popularity
			artist.Followers = &followers
			artist.Popularity = &pop
		}

		artists = append(artists, artist)
	}

	return r.artists.InsertArtists(ctx, artists)
}
