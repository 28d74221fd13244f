package cache

import (
	"context"
	"fmt"
	"time"

	"SpotiTrace/model"

	"github.com/redis/go-redis/v9"
)

// 歌词缓存的过期时间。歌词基本不变，长TTL主要是为了控制键空间大小。
const lyricsTTL = 30 * 24 * time.Hour

// 空结果也缓存，避免每轮都去查没有歌词的曲目
const lyricsMissSentinel = "\x00miss"

// lyricsKey 根据归一化的曲名/歌手生成缓存键
func lyricsKey(title, artist string) string {
	return fmt.Sprintf("lyrics:%s:%s", model.NormalizeName(artist), model.NormalizeName(title))
}

// GetLyrics 读取歌词缓存。返回 (歌词, 是否命中缓存, 缓存是否记录为无歌词)。
func GetLyrics(ctx context.Context, title, artist string) (string, bool, bool) {
	if RedisClient == nil {
		return "", false, false
	}

	val, err := RedisClient.Get(ctx, lyricsKey(title, artist)).Result()
	if err != nil {
		// redis.Nil 表示未命中，其它错误一律当作未命中处理
		return "", false, false
	}
	if val == lyricsMissSentinel {
		return "", true, true
	}
	return val, true, false
}

// SetLyrics 写入歌词缓存，lyrics为空时记录哨兵值
func SetLyrics(ctx context.Context, title, artist, lyrics string) {
	if RedisClient == nil {
		return
	}

	val := lyrics
	if val == "" {
		val = lyricsMissSentinel
	}
	// 缓存写失败不影响主流程
	_ = RedisClient.Set(ctx, lyricsKey(title, artist), val, lyricsTTL).Err()
}

const ccTokenKey = "spotify:cc_token"

// GetToken 读取缓存的Spotify client-credentials token
func GetToken(ctx context.Context) (string, bool) {
	if RedisClient == nil {
		return "", false
	}
	val, err := RedisClient.Get(ctx, ccTokenKey).Result()
	if err == redis.Nil || err != nil {
		return "", false
	}
	return val, true
}

// SetToken 缓存Spotify token，ttl应短于token实际有效期
func SetToken(ctx context.Context, token string, ttl time.Duration) {
	if RedisClient == nil {
		return
	}
	_ = RedisClient.Set(ctx, ccTokenKey, token, ttl).Err()
}

// DeleteToken 清除缓存的token。token被API判定失效时必须调用，
// 否则重取token会先命中缓存里的同一个失效值。
func DeleteToken(ctx context.Context) {
	if RedisClient == nil {
		return
	}
	_ = RedisClient.Del(ctx, ccTokenKey).Err()
}
