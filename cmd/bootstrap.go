package cmd

import (
	"SpotiTrace/cache"
	"SpotiTrace/config"
	"SpotiTrace/core/genius"
	"SpotiTrace/core/lang"
	"SpotiTrace/core/pipeline"
	"SpotiTrace/core/spotify"
	"SpotiTrace/db"
	"SpotiTrace/logger"
	"SpotiTrace/repository"
	"SpotiTrace/server"
	"SpotiTrace/storage"
)

// app 持有一次命令执行所需的全部已接线组件
type app struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	stats    *server.StatsHandler
}

// bootstrap 加载配置、初始化日志与各项连接，并完成流水线组装。
// 返回的cleanup负责按相反顺序释放连接。
func bootstrap() (*app, func(), error) {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
	})

	if err := db.ConnectMongo(cfg); err != nil {
		return nil, nil, err
	}

	// Redis与MinIO均为可选依赖，未启用时对应能力自动降级
	if cfg.RedisEnabled {
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Warn("[bootstrap] Redis连接失败，歌词缓存不可用", logger.ErrorField(err))
		}
	}
	if cfg.ArchiveEnabled {
		if err := storage.InitMinio(cfg); err != nil {
			logger.Warn("[bootstrap] MinIO初始化失败，原始响应归档不可用", logger.ErrorField(err))
		}
	}

	events := repository.NewMongoEventRepository()
	songs := repository.NewMongoSongRepository()
	artists := repository.NewMongoArtistRepository()

	spotifyClient := spotify.NewClient(cfg)
	geniusClient := genius.NewClient(cfg)
	statistical := lang.NewStatistical()

	a := &app{
		cfg:      cfg,
		pipeline: pipeline.New(spotifyClient, geniusClient, statistical, events, songs, artists, cfg),
		stats:    server.NewStatsHandler(events, songs, artists),
	}

	cleanup := func() {
		if cache.Enabled() {
			_ = cache.CloseRedis()
		}
		if err := db.CloseMongo(); err != nil {
			logger.Warn("[bootstrap] MongoDB关闭失败", logger.ErrorField(err))
		}
	}
	return a, cleanup, nil
}
