package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"SpotiTrace/logger"
)

const trackURIPrefix = "spotify:track:"

var yearPattern = regexp.MustCompile(`^(\d{4})`)

// TrackDetail Spotify曲目详情。批量查询中单条失败时对应的map值为nil，
// 调用方应以空元数据入库而不是丢弃该条目。
type TrackDetail struct {
	DurationMs      int64
	DurationS       float64
	ReleaseDate     string
	ReleaseDateYear *int
	Popularity      int
	AlbumName       string
	Artists         []TrackArtist
}

// TrackArtist 曲目详情中携带的艺术家信息
type TrackArtist struct {
	ID   string
	Name string
	URI  string
}

// ArtistDetail Spotify艺术家详情
type ArtistDetail struct {
	Name       string
	URI        string
	Genres     string // 逗号拼接
	Followers  int64
	Popularity int
}

// extractYear 从发行日期字符串中提取年份
func extractYear(releaseDate string) *int {
	match := yearPattern.FindStringSubmatch(releaseDate)
	if match == nil {
		return nil
	}
	var year int
	if _, err := fmt.Sscanf(match[1], "%d", &year); err != nil {
		return nil
	}
	return &year
}

// chunk 将ids按批次上限切分
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > 0 {
		n := size
		if len(ids) < n {
			n = len(ids)
		}
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

// BatchTrackDetails 批量获取曲目详情。输入为track URI（可带spotify:track:前缀），
// 超过单批上限（50）时自动分批。返回的map覆盖全部输入URI，解析失败的条目值为nil。
func (c *Client) BatchTrackDetails(ctx context.Context, trackURIs []string) map[string]*TrackDetail {
	results := make(map[string]*TrackDetail, len(trackURIs))

	for _, batch := range chunk(trackURIs, c.batchSize) {
		clean := make([]string, len(batch))
		for i, uri := range batch {
			clean[i] = strings.TrimPrefix(uri, trackURIPrefix)
		}

		body, err := c.apiGET(ctx, "/v1/tracks?ids="+strings.Join(clean, ","))
		if err != nil {
			// 整批失败：全部标记为nil，由调用方以空元数据入库
			logger.Error("[BatchTrackDetails] 批量获取曲目详情失败",
				logger.Int("batch_size", len(batch)),
				logger.ErrorField(err))
			for _, uri := range batch {
				results[uri] = nil
			}
			continue
		}

		var parsed struct {
			Tracks []*struct {
				DurationMs int64 `json:"duration_ms"`
				Popularity int   `json:"popularity"`
				Album      struct {
					Name        string `json:"name"`
					ReleaseDate string `json:"release_date"`
				} `json:"album"`
				Artists []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
					URI  string `json:"uri"`
				} `json:"artists"`
			} `json:"tracks"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			logger.Error("[BatchTrackDetails] 解析响应失败", logger.ErrorField(err))
			for _, uri := range batch {
				results[uri] = nil
			}
			continue
		}

		// API按请求顺序返回，未找到的曲目为null，以原始URI为键回填
		for i, track := range parsed.Tracks {
			if i >= len(batch) {
				break
			}
			originalURI := batch[i]
			if track == nil {
				results[originalURI] = nil
				continue
			}

			artists := make([]TrackArtist, 0, len(track.Artists))
			for _, a := range track.Artists {
				artists = append(artists, TrackArtist{ID: a.ID, Name: a.Name, URI: a.URI})
			}

			results[originalURI] = &TrackDetail{
				DurationMs:      track.DurationMs,
				DurationS:       float64(track.DurationMs) / 1000.0,
				ReleaseDate:     track.Album.ReleaseDate,
				ReleaseDateYear: extractYear(track.Album.ReleaseDate),
				Popularity:      track.Popularity,
				AlbumName:       track.Album.Name,
				Artists:         artists,
			}
		}
	}

	return results
}

// BatchArtistDetails 批量获取艺术家详情，按ID查询，自动分批。
// 返回的map覆盖全部输入ID，失败条目值为nil。
func (c *Client) BatchArtistDetails(ctx context.Context, artistIDs []string) map[string]*ArtistDetail {
	results := make(map[string]*ArtistDetail, len(artistIDs))

	for _, batch := range chunk(artistIDs, c.batchSize) {
		body, err := c.apiGET(ctx, "/v1/artists?ids="+strings.Join(batch, ","))
		if err != nil {
			logger.Error("[BatchArtistDetails] 批量获取艺术家详情失败",
				logger.Int("batch_size", len(batch)),
				logger.ErrorField(err))
			for _, id := range batch {
				results[id] = nil
			}
			continue
		}

		var parsed struct {
			Artists []*struct {
				Name      string   `json:"name"`
				URI       string   `json:"uri"`
				Genres    []string `json:"genres"`
				Followers struct {
					Total int64 `json:"total"`
				} `json:"followers"`
				Popularity int `json:"popularity"`
			} `json:"artists"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			logger.Error("[BatchArtistDetails] 解析响应失败", logger.ErrorField(err))
			for _, id := range batch {
				results[id] = nil
			}
			continue
		}

		for i, artist := range parsed.Artists {
			if i >= len(batch) {
				break
			}
			id := batch[i]
			if artist == nil {
				results[id] = nil
				continue
			}
			results[id] = &ArtistDetail{
				Name:       artist.Name,
				URI:        artist.URI,
				Genres:     strings.Join(artist.Genres, ", "),
				Followers:  artist.Followers.Total,
				Popularity: artist.Popularity,
			}
		}
	}

	return results
}
