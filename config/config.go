package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the pipeline configuration.
// Most values have simple defaults; secrets must come from the environment.
type Config struct {
	// MongoDB配置
	MongoURI     string
	DatabaseName string

	// Spotify API配置
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyAccessToken  string
	SpotifyRefreshToken string

	// Genius歌词API配置
	GeniusToken string

	// 流水线参数
	RecentlyPlayedLimit int           // 每次拉取的最近播放数量，Spotify上限50
	ReconcileWindow     int           // 对账时回看的事件窗口大小
	BatchSize           int           // 批量查询Spotify详情的单批上限
	RequestDelay        time.Duration // 外部API调用之间的固定间隔
	ConfidenceThreshold float64       // 语言检测的最低置信度（0-1）
	MinLyricsLength     int           // 歌词文本的最小有效长度（字符数）

	// Redis配置（可选，用于歌词与token缓存）
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置（可选，用于原始响应归档）
	ArchiveEnabled bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// 统计服务配置
	ServerPort string

	// 日志配置
	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		MongoURI:     os.Getenv("MONGODB_CONNECTION_STRING"),
		DatabaseName: getEnv("MONGODB_DATABASE", "Spotify"),

		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SpotifyAccessToken:  os.Getenv("SPOTIFY_ACCESS_TOKEN"),
		SpotifyRefreshToken: os.Getenv("SPOTIFY_REFRESH_TOKEN"),

		GeniusToken: os.Getenv("GENIUS_TOKEN"),

		RecentlyPlayedLimit: getEnvInt("RECENTLY_PLAYED_LIMIT", 50),
		ReconcileWindow:     getEnvInt("RECONCILE_WINDOW", 50),
		BatchSize:           getEnvInt("SPOTIFY_BATCH_SIZE", 50),
		RequestDelay:        time.Duration(getEnvInt("REQUEST_DELAY_MS", 200)) * time.Millisecond,
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.70),
		MinLyricsLength:     getEnvInt("MIN_LYRICS_LENGTH", 100),

		// Redis缓存默认关闭，按需开启
		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// MinIO归档默认关闭
		ArchiveEnabled: getEnvBool("ARCHIVE_ENABLED", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "spotitrace"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		ServerPort: getEnv("SERVER_PORT", "8080"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", "logs/spotitrace.log"),
	}
}
