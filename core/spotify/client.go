package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"SpotiTrace/cache"
	"SpotiTrace/config"
	"SpotiTrace/logger"

	"golang.org/x/time/rate"
)

// ErrTokenExpired 表示用户token过期（HTTP 401），调用方可刷新后重试一次
var ErrTokenExpired = errors.New("spotify access token expired")

// Client Spotify Web API客户端。
// recently-played走用户授权token，批量曲目/艺术家详情走client-credentials token。
type Client struct {
	accountsURL string
	apiURL      string
	httpClient  *http.Client
	limiter     *rate.Limiter

	clientID     string
	clientSecret string
	accessToken  string // 用户授权token
	refreshToken string
	ccToken      string // client-credentials token，惰性获取
	batchSize    int
}

// NewClient 创建新的Spotify API客户端
func NewClient(cfg *config.Config) *Client {
	return &Client{
		accountsURL:  "https://accounts.spotify.com",
		apiURL:       "https://api.spotify.com",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
		clientID:     cfg.SpotifyClientID,
		clientSecret: cfg.SpotifyClientSecret,
		accessToken:  cfg.SpotifyAccessToken,
		refreshToken: cfg.SpotifyRefreshToken,
		batchSize:    cfg.BatchSize,
	}
}

// SetBaseURLs 覆盖API地址，供测试使用
func (c *Client) SetBaseURLs(accountsURL, apiURL string) {
	c.accountsURL = accountsURL
	c.apiURL = apiURL
}

// RefreshAccessToken 用refresh token换取新的用户授权token
func (c *Client) RefreshAccessToken(ctx context.Context) error {
	if c.refreshToken == "" || c.clientID == "" || c.clientSecret == "" {
		return fmt.Errorf("缺少refresh token或client凭据")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.refreshToken)

	logger.Info("[RefreshAccessToken] 正在刷新Spotify访问token...")
	token, _, err := c.requestToken(ctx, form)
	if err != nil {
		return fmt.Errorf("刷新token失败: %w", err)
	}

	c.accessToken = token
	logger.Info("[RefreshAccessToken] 访问token刷新成功")
	return nil
}

// clientCredentialsToken 获取（并缓存）client-credentials token
func (c *Client) clientCredentialsToken(ctx context.Context) (string, error) {
	if c.ccToken != "" {
		return c.ccToken, nil
	}

	// 先查Redis缓存，避免每次运行都走token端点
	if token, ok := cache.GetToken(ctx); ok {
		c.ccToken = token
		return token, nil
	}

	if c.clientID == "" || c.clientSecret == "" {
		return "", fmt.Errorf("SPOTIFY_CLIENT_ID和SPOTIFY_CLIENT_SECRET必须设置")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	token, expiresIn, err := c.requestToken(ctx, form)
	if err != nil {
		return "", fmt.Errorf("获取Spotify token失败: %w", err)
	}

	c.ccToken = token
	if expiresIn > 60 {
		// 留一分钟余量，避免缓存到临期token
		cache.SetToken(ctx, token, time.Duration(expiresIn-60)*time.Second)
	}
	logger.Info("[clientCredentialsToken] 成功获取Spotify API token")
	return token, nil
}

// requestToken 调用accounts token端点，返回 (token, expires_in秒)
func (c *Client) requestToken(ctx context.Context, form url.Values) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("创建请求失败: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("token端点返回错误状态码: %d - %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, fmt.Errorf("解析token响应失败: %w", err)
	}
	if result.AccessToken == "" {
		return "", 0, fmt.Errorf("token响应中缺少access_token")
	}
	return result.AccessToken, result.ExpiresIn, nil
}

// apiGET 以client-credentials token请求API端点，401时重取token重试一次
func (c *Client) apiGET(ctx context.Context, path string) ([]byte, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.clientCredentialsToken(ctx)
		if err != nil {
			return nil, err
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("创建请求失败: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("请求失败: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("读取响应失败: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			// token失效，内存与Redis缓存一并清除后重试一次
			c.ccToken = ""
			cache.DeleteToken(ctx)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API返回错误状态码: %d - %s", resp.StatusCode, string(body))
		}
		return body, nil
	}
	return nil, fmt.Errorf("API请求重试后仍失败")
}
