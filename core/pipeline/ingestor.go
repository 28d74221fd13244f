package pipeline

import (
	"context"
	"errors"
	"sort"
	"time"

	"SpotiTrace/config"
	"SpotiTrace/core/spotify"
	"SpotiTrace/logger"
	"SpotiTrace/model"
	"SpotiTrace/repository"
	"SpotiTrace/storage"
)

// SpotifySource 是流水线依赖的Spotify能力集合，*spotify.Client实现该接口
type SpotifySource interface {
	RecentlyPlayed(ctx context.Context, limit int) ([]spotify.RecentlyPlayedItem, []byte, error)
	RefreshAccessToken(ctx context.Context) error
	BatchTrackDetails(ctx context.Context, trackURIs []string) map[string]*spotify.TrackDetail
	BatchArtistDetails(ctx context.Context, artistIDs []string) map[string]*spotify.ArtistDetail
}

// Ingestor 拉取最近播放并写入StreamingHistory，只新增不修改
type Ingestor struct {
	spotify SpotifySource
	events  repository.EventRepository
	cfg     *config.Config
}

// NewIngestor creates a new Ingestor.
func NewIngestor(src SpotifySource, events repository.EventRepository, cfg *config.Config) *Ingestor {
	return &Ingestor{
		spotify: src,
		events:  events,
		cfg:     cfg,
	}
}

// FetchNewEvents 拉取最近播放，按库内最新时间戳做严格大于过滤后入库。
// 用户token过期时刷新重试一次；二次失败不视为错误，返回0让本轮流水线短路。
func (i *Ingestor) FetchNewEvents(ctx context.Context, runID string) (int, error) {
	items, raw, err := i.spotify.RecentlyPlayed(ctx, i.cfg.RecentlyPlayedLimit)
	if errors.Is(err, spotify.ErrTokenExpired) {
		logger.Warn("[FetchNewEvents] 访问token已过期，尝试刷新")
		if refreshErr := i.spotify.RefreshAccessToken(ctx); refreshErr != nil {
			logger.Error("[FetchNewEvents] token刷新失败，本轮放弃拉取", logger.ErrorField(refreshErr))
			return 0, nil
		}
		items, raw, err = i.spotify.RecentlyPlayed(ctx, i.cfg.RecentlyPlayedLimit)
		if errors.Is(err, spotify.ErrTokenExpired) {
			logger.Error("[FetchNewEvents] 刷新后token仍无效，本轮放弃拉取")
			return 0, nil
		}
	}
	if err != nil {
		return 0, err
	}

	// 原始响应归档，失败不阻断流水线
	if storage.Enabled() && len(raw) > 0 {
		if archiveErr := storage.ArchiveRawPayload(ctx, "spotify_recently_played", runID, raw); archiveErr != nil {
			logger.Warn("[FetchNewEvents] 原始响应归档失败", logger.ErrorField(archiveErr))
		}
	}

	latest, err := i.events.LatestTimestamp(ctx)
	if err != nil {
		return 0, err
	}

	fresh := filterNovel(items, latest)
	if len(fresh) == 0 {
		logger.Info("[FetchNewEvents] 无新播放记录",
			logger.Int("fetched", len(items)))
		return 0, nil
	}

	// 按时间升序入库，保证库内最新时间戳单调推进
	sort.Slice(fresh, func(a, b int) bool {
		return fresh[a].TsUTC.Before(fresh[b].TsUTC)
	})

	inserted, err := i.events.InsertEvents(ctx, fresh)
	if err != nil {
		return 0, err
	}

	logger.Info("[FetchNewEvents] 播放记录入库完成",
		logger.Int("fetched", len(items)),
		logger.Int("inserted", inserted),
		logger.Time("newest", fresh[len(fresh)-1].TsUTC))
	return inserted, nil
}

// filterNovel 只保留时间戳严格大于库内最新时间戳的记录。
// 相等的记录视为已入库，保证重复运行不产生重复事件。
func filterNovel(items []spotify.RecentlyPlayedItem, latest *time.Time) []*model.StreamingEvent {
	var fresh []*model.StreamingEvent
	for _, item := range items {
		ts := item.PlayedAt.UTC()
		if latest != nil && !ts.After(*latest) {
			continue
		}
		fresh = append(fresh, toEvent(item))
	}
	return fresh
}

// toEvent 将recently-played条目转换为归一化播放事件。
// recently-played端点只返回完整播放，播放时长取曲目全长。
func toEvent(item spotify.RecentlyPlayedItem) *model.StreamingEvent {
	ts := item.PlayedAt.UTC()
	now := time.Now().UTC()

	artistName := ""
	if len(item.Track.Artists) > 0 {
		artistName = item.Track.Artists[0] // 主艺术家
	}

	ms := item.Track.DurationMs
	s := float64(ms) / 1000.0
	min := s / 60.0

	return &model.StreamingEvent{
		TsUTC:           ts,
		TrackName:       item.Track.Name,
		ArtistName:      artistName,
		AlbumName:       item.Track.AlbumName,
		SpotifyTrackURI: item.Track.URI,

		MsPlayed:  ms,
		SPlayed:   s,
		MinPlayed: min,
		HPlayed:   min / 60.0,

		Date:      ts.Format("2006-01-02"),
		Year:      ts.Year(),
		Month:     ts.Month().String(),
		DayOfWeek: ts.Weekday().String(),

		DataSource:     model.DataSourceRecentlyPlayed,
		IsCompletePlay: true,
		Skipped:        false,
		Offline:        false,

		CreatedAt:         now,
		LastUpdated:       now,
		ProcessingVersion: model.ProcessingVersion,
	}
}
