package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentlyPlayedParsesItems(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/me/player/recently-played", r.URL.Path)
		require.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		require.Equal(t, "30", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{
				{
					"played_at": "2026-08-29T10:15:30Z",
					"track": map[string]interface{}{
						"name":        "Test Song",
						"uri":         "spotify:track:abc",
						"duration_ms": 180000,
						"album":       map[string]interface{}{"name": "Test Album"},
						"artists": []map[string]interface{}{
							{"name": "Main Artist"}, {"name": "Featured Artist"},
						},
					},
				},
				{
					// 时间戳解析失败的条目只跳过，不影响整批
					"played_at": "not-a-timestamp",
					"track": map[string]interface{}{
						"name": "Broken", "uri": "spotify:track:bad",
					},
				},
			},
		})
	})

	items, raw, err := client.RecentlyPlayed(context.Background(), 30)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, time.Date(2026, 8, 29, 10, 15, 30, 0, time.UTC), item.PlayedAt.UTC())
	assert.Equal(t, "Test Song", item.Track.Name)
	assert.Equal(t, "spotify:track:abc", item.Track.URI)
	assert.Equal(t, int64(180000), item.Track.DurationMs)
	assert.Equal(t, "Test Album", item.Track.AlbumName)
	assert.Equal(t, []string{"Main Artist", "Featured Artist"}, item.Track.Artists)
}

func TestRecentlyPlayedCapsLimitAtFifty(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "50", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}})
	})

	_, _, err := client.RecentlyPlayed(context.Background(), 200)
	require.NoError(t, err)
}

func TestRecentlyPlayedExpiredToken(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "The access token expired", http.StatusUnauthorized)
	})

	_, _, err := client.RecentlyPlayed(context.Background(), 50)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshAccessToken(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// recently-played返回的token应是刷新后的token
		require.Equal(t, "Bearer cc-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}})
	})

	// /api/token固定返回cc-token，刷新成功后accessToken被替换
	require.NoError(t, client.RefreshAccessToken(context.Background()))

	_, _, err := client.RecentlyPlayed(context.Background(), 10)
	require.NoError(t, err)
}

func TestRefreshAccessTokenMissingCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.SpotifyRefreshToken = ""
	client := NewClient(cfg)

	err := client.RefreshAccessToken(context.Background())
	assert.Error(t, err)
}
