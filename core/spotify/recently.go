package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"SpotiTrace/logger"
)

// RecentlyPlayedItem 是recently-played端点返回的单条播放记录
type RecentlyPlayedItem struct {
	PlayedAt time.Time
	Track    RecentTrack
}

// RecentTrack recently-played条目中的曲目信息
type RecentTrack struct {
	Name       string
	URI        string
	DurationMs int64
	AlbumName  string
	Artists    []string // 艺术家名，按API返回顺序
}

// RecentlyPlayed 获取最近播放记录（limit上限50），返回解析结果与原始响应体。
// 用户token过期时返回ErrTokenExpired，由调用方决定是否刷新重试。
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]RecentlyPlayedItem, []byte, error) {
	if limit > 50 {
		limit = 50 // Spotify API上限
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	reqURL := fmt.Sprintf("%s/v1/me/player/recently-played?limit=%d", c.apiURL, limit)
	logger.Info("[RecentlyPlayed] 拉取最近播放记录", logger.Int("limit", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		logger.Warn("[RecentlyPlayed] 访问token已过期")
		return nil, nil, ErrTokenExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("API返回错误状态码: %d - %s", resp.StatusCode, string(body))
	}

	var result struct {
		Items []struct {
			PlayedAt string `json:"played_at"`
			Track    struct {
				Name       string `json:"name"`
				URI        string `json:"uri"`
				DurationMs int64  `json:"duration_ms"`
				Album      struct {
					Name string `json:"name"`
				} `json:"album"`
				Artists []struct {
					Name string `json:"name"`
				} `json:"artists"`
			} `json:"track"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, nil, fmt.Errorf("解析响应失败: %w", err)
	}

	items := make([]RecentlyPlayedItem, 0, len(result.Items))
	for _, raw := range result.Items {
		playedAt, err := time.Parse(time.RFC3339, raw.PlayedAt)
		if err != nil {
			// 单条解析失败只跳过，不影响整批
			logger.Warn("[RecentlyPlayed] 播放时间解析失败，跳过该条",
				logger.String("played_at", raw.PlayedAt),
				logger.ErrorField(err))
			continue
		}

		artists := make([]string, 0, len(raw.Track.Artists))
		for _, a := range raw.Track.Artists {
			artists = append(artists, a.Name)
		}

		items = append(items, RecentlyPlayedItem{
			PlayedAt: playedAt,
			Track: RecentTrack{
				Name:       raw.Track.Name,
				URI:        raw.Track.URI,
				DurationMs: raw.Track.DurationMs,
				AlbumName:  raw.Track.Album.Name,
				Artists:    artists,
			},
		})
	}

	logger.Info("[RecentlyPlayed] 成功获取最近播放记录", logger.Int("count", len(items)))
	return items, body, nil
}
