package pipeline

import (
	"context"

	"SpotiTrace/config"
	"SpotiTrace/core/lang"
	"SpotiTrace/logger"
	"SpotiTrace/model"
	"SpotiTrace/repository"
)

// LyricsSource 是分类器依赖的歌词检索能力，*genius.Client实现该接口
type LyricsSource interface {
	SearchLyrics(ctx context.Context, title, artist string) (string, error)
}

// Classifier 对未处理的歌曲执行soundtrack判定、歌词检索与语言分类
type Classifier struct {
	songs    repository.SongRepository
	artists  repository.ArtistRepository
	genius   LyricsSource
	detector *lang.Detector
	cfg      *config.Config
}

// NewClassifier creates a new Classifier.
func NewClassifier(songs repository.SongRepository, artists repository.ArtistRepository,
	genius LyricsSource, detector *lang.Detector, cfg *config.Config) *Classifier {
	return &Classifier{
		songs:    songs,
		artists:  artists,
		genius:   genius,
		detector: detector,
		cfg:      cfg,
	}
}

// EnrichStats 汇总一次富化运行的结果
type EnrichStats struct {
	Processed     int `json:"processed"`
	LyricsFound   int `json:"lyricsFound"`
	Soundtracks   int `json:"soundtracks"`
	ArtistsFilled int `json:"artistsFilled"`
	SweepFixes    int `json:"sweepFixes"`
}

// EnrichPending 处理所有has_lyrics仍为null的歌曲：先做soundtrack判定，
// 非soundtrack的歌曲检索歌词，随后按回退链判定语言并写回富化结果。
// 歌曲得到语言后尝试回填对应艺术家，已有语言的艺术家不覆盖。
func (c *Classifier) EnrichPending(ctx context.Context) (EnrichStats, error) {
	var stats EnrichStats

	pending, err := c.songs.FindUnprocessed(ctx)
	if err != nil {
		return stats, err
	}
	if len(pending) == 0 {
		logger.Info("[EnrichPending] 无待处理歌曲")
		return c.sweepSoundtracks(ctx, stats)
	}

	logger.Info("[EnrichPending] 开始富化", logger.Int("pending", len(pending)))

	// 同一艺术家在一次运行内只尝试回填一次
	artistTried := make(map[string]bool)

	for _, song := range pending {
		isSoundtrack := lang.ClassifySoundtrack(song.SongName, song.ArtistName)

		lyrics := ""
		if !isSoundtrack {
			lyrics, err = c.genius.SearchLyrics(ctx, song.SongName, song.ArtistName)
			if err != nil {
				// 单曲歌词失败不阻断整轮富化，回退链继续用曲名/歌手名判定
				logger.Warn("[EnrichPending] 歌词检索失败",
					logger.String("song", song.SongName),
					logger.String("artist", song.ArtistName),
					logger.ErrorField(err))
				lyrics = ""
			}
		}

		hasLyrics := len(lyrics) >= c.cfg.MinLyricsLength
		language, method := c.detector.DetectSong(song.SongName, song.ArtistName, lyrics, isSoundtrack)

		update := repository.EnrichmentUpdate{
			HasLyrics:       hasLyrics,
			Language:        language,
			DetectionMethod: method,
			IsSoundtrack:    isSoundtrack,
		}
		if hasLyrics {
			update.Lyrics = lyrics
		}
		if err := c.songs.UpdateEnrichment(ctx, song.ID, update); err != nil {
			return stats, err
		}

		stats.Processed++
		if hasLyrics {
			stats.LyricsFound++
		}
		if isSoundtrack {
			stats.Soundtracks++
		}

		// 艺术家语言回填：只填空，不覆盖已有判定
		norm := model.NormalizeName(song.ArtistName)
		if language != model.LanguageUnknown && norm != "" && !artistTried[norm] {
			artistTried[norm] = true
			filled, fillErr := c.artists.FillLanguage(ctx, song.ArtistName, language, method)
			if fillErr != nil {
				logger.Warn("[EnrichPending] 艺术家语言回填失败",
					logger.String("artist", song.ArtistName),
					logger.ErrorField(fillErr))
			} else if filled {
				stats.ArtistsFilled++
			}
		}

		logger.Debug("[EnrichPending] 歌曲富化完成",
			logger.String("song", song.SongName),
			logger.String("language", language),
			logger.String("method", method),
			logger.Bool("hasLyrics", hasLyrics))
	}

	logger.Info("[EnrichPending] 富化完成",
		logger.Int("processed", stats.Processed),
		logger.Int("lyricsFound", stats.LyricsFound),
		logger.Int("soundtracks", stats.Soundtracks),
		logger.Int("artistsFilled", stats.ArtistsFilled))

	return c.sweepSoundtracks(ctx, stats)
}

// sweepSoundtracks 收尾扫描：is_soundtrack为true的条目（歌曲或艺术家）
// 语言必须是Soundtrack哨兵，历史数据中的违例在此统一修正。
func (c *Classifier) sweepSoundtracks(ctx context.Context, stats EnrichStats) (EnrichStats, error) {
	mismatches, err := c.songs.FindSoundtrackMismatches(ctx)
	if err != nil {
		return stats, err
	}
	for _, song := range mismatches {
		fixed, err := c.songs.ApplySoundtrackFix(ctx, song.ID)
		if err != nil {
			return stats, err
		}
		if fixed {
			stats.SweepFixes++
		}
	}

	artistMismatches, err := c.artists.FindSoundtrackMismatches(ctx)
	if err != nil {
		return stats, err
	}
	for _, artist := range artistMismatches {
		fixed, err := c.artists.ApplySoundtrackFix(ctx, artist.ID)
		if err != nil {
			return stats, err
		}
		if fixed {
			stats.SweepFixes++
		}
	}

	if stats.SweepFixes > 0 {
		logger.Info("[EnrichPending] soundtrack语言修正",
			logger.Int("fixes", stats.SweepFixes))
	}
	return stats, nil
}
