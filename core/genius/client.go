package genius

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"SpotiTrace/cache"
	"SpotiTrace/config"
	"SpotiTrace/logger"
	"SpotiTrace/model"

	"golang.org/x/time/rate"
)

// Client Genius歌词API客户端。先走search端点定位歌曲页面，
// 再抓取页面提取歌词文本（Genius没有公开的歌词正文API）。
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient 创建新的Genius客户端
func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiURL:     "https://api.genius.com",
		token:      cfg.GeniusToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
	}
}

// SetBaseURL 覆盖API地址，供测试使用
func (c *Client) SetBaseURL(apiURL string) {
	c.apiURL = apiURL
}

// SearchLyrics 按曲名+歌手搜索歌词全文。未找到时返回空串且err为nil——
// 查不到歌词是正常结果，不是错误。命中Redis缓存时不发起网络请求。
func (c *Client) SearchLyrics(ctx context.Context, title, artist string) (string, error) {
	if lyrics, hit, miss := cache.GetLyrics(ctx, title, artist); hit {
		if miss {
			return "", nil
		}
		logger.Debug("[SearchLyrics] 歌词缓存命中",
			logger.String("title", title), logger.String("artist", artist))
		return lyrics, nil
	}

	pageURL, err := c.searchSongURL(ctx, title, artist)
	if err != nil {
		return "", err
	}
	if pageURL == "" {
		cache.SetLyrics(ctx, title, artist, "")
		return "", nil
	}

	lyrics, err := c.fetchPageLyrics(ctx, pageURL)
	if err != nil {
		return "", err
	}

	cache.SetLyrics(ctx, title, artist, lyrics)
	return lyrics, nil
}

// searchSongURL 调用search端点，返回首个歌手名匹配的歌曲页面URL
func (c *Client) searchSongURL(ctx context.Context, title, artist string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	query := url.QueryEscape(title + " " + artist)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/search?q="+query, nil)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Genius API返回错误状态码: %d - %s", resp.StatusCode, string(body))
	}

	var result struct {
		Response struct {
			Hits []struct {
				Result struct {
					URL           string `json:"url"`
					PrimaryArtist struct {
						Name string `json:"name"`
					} `json:"primary_artist"`
				} `json:"result"`
			} `json:"hits"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("解析搜索响应失败: %w", err)
	}

	wantArtist := model.NormalizeName(artist)
	for _, hit := range result.Response.Hits {
		hitArtist := model.NormalizeName(hit.Result.PrimaryArtist.Name)
		// 歌手名宽松匹配：相等或互为包含，Genius的命名格式经常带附注
		if hitArtist == wantArtist ||
			strings.Contains(hitArtist, wantArtist) ||
			strings.Contains(wantArtist, hitArtist) {
			return hit.Result.URL, nil
		}
	}

	logger.Debug("[searchSongURL] 未找到匹配的歌曲",
		logger.String("title", title), logger.String("artist", artist))
	return "", nil
}

var (
	lyricsContainerPattern = regexp.MustCompile(`(?s)<div[^>]+data-lyrics-container="true"[^>]*>(.*?)</div>`)
	brPattern              = regexp.MustCompile(`<br\s*/?>`)
	tagPattern             = regexp.MustCompile(`<[^>]+>`)
)

// fetchPageLyrics 抓取歌曲页面并从lyrics容器中提取纯文本
func (c *Client) fetchPageLyrics(ctx context.Context, pageURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("歌曲页面返回错误状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取页面失败: %w", err)
	}

	return ExtractLyrics(string(body)), nil
}

// ExtractLyrics 从页面HTML中提取歌词文本：
// 取全部data-lyrics-container块，<br>转换行，其余标签剥掉，HTML实体解码。
func ExtractLyrics(pageHTML string) string {
	matches := lyricsContainerPattern.FindAllStringSubmatch(pageHTML, -1)
	if len(matches) == 0 {
		return ""
	}

	var parts []string
	for _, m := range matches {
		text := brPattern.ReplaceAllString(m[1], "\n")
		text = tagPattern.ReplaceAllString(text, "")
		text = html.UnescapeString(text)
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n")
}
