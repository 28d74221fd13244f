package genius

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SpotiTrace/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	client := NewClient(&config.Config{
		GeniusToken:  "genius-token",
		RequestDelay: time.Millisecond,
	})
	client.SetBaseURL(srv.URL)
	return client
}

func TestSearchLyricsFindsMatchingArtist(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer genius-token", r.Header.Get("Authorization"))
		require.Equal(t, "Hurt Johnny Cash", r.URL.Query().Get("q"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": map[string]interface{}{
				"hits": []map[string]interface{}{
					{"result": map[string]interface{}{
						// 歌手名不匹配的首个结果应被跳过
						"url":            srv.URL + "/wrong-song",
						"primary_artist": map[string]interface{}{"name": "Nine Inch Nails"},
					}},
					{"result": map[string]interface{}{
						"url":            srv.URL + "/johnny-cash-hurt",
						"primary_artist": map[string]interface{}{"name": "Johnny Cash"},
					}},
				},
			},
		})
	})
	mux.HandleFunc("/johnny-cash-hurt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><div data-lyrics-container="true">I hurt myself today<br/>To see if I still feel</div></html>`))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv)
	lyrics, err := client.SearchLyrics(context.Background(), "Hurt", "Johnny Cash")

	require.NoError(t, err)
	assert.Equal(t, "I hurt myself today\nTo see if I still feel", lyrics)
}

func TestSearchLyricsNoMatchReturnsEmptyNotError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": map[string]interface{}{
				"hits": []map[string]interface{}{
					{"result": map[string]interface{}{
						"url":            "https://example.com/other",
						"primary_artist": map[string]interface{}{"name": "Someone Else"},
					}},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv)
	lyrics, err := client.SearchLyrics(context.Background(), "Song", "My Artist")

	// 查不到歌词是正常结果
	require.NoError(t, err)
	assert.Empty(t, lyrics)
}

func TestSearchLyricsLooseArtistMatch(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": map[string]interface{}{
				"hits": []map[string]interface{}{
					{"result": map[string]interface{}{
						// Genius命名常带附注，互为包含即视为匹配
						"url":            srv.URL + "/page",
						"primary_artist": map[string]interface{}{"name": "Beyoncé (Ft. Jay-Z)"},
					}},
				},
			},
		})
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<div data-lyrics-container="true">lyrics text</div>`))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv)
	lyrics, err := client.SearchLyrics(context.Background(), "Song", "Beyoncé")

	require.NoError(t, err)
	assert.Equal(t, "lyrics text", lyrics)
}

func TestSearchLyricsAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.SearchLyrics(context.Background(), "Song", "Artist")
	assert.Error(t, err)
}

func TestExtractLyrics(t *testing.T) {
	page := `<html><body>
<div data-lyrics-container="true">First line<br>Second &amp; third<a href="/x">annotated</a></div>
<div class="ad">ignore me</div>
<div data-lyrics-container="true">Second block</div>
</body></html>`

	lyrics := ExtractLyrics(page)
	assert.Equal(t, "First line\nSecond & thirdannotated\nSecond block", lyrics)
}

func TestExtractLyricsNoContainer(t *testing.T) {
	assert.Empty(t, ExtractLyrics("<html><body>no lyrics here</body></html>"))
}
