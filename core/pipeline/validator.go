package pipeline

import (
	"context"
	"fmt"

	"SpotiTrace/core/lang"
	"SpotiTrace/logger"
	"SpotiTrace/model"
	"SpotiTrace/repository"
)

// 单类问题逐条记录到日志的样本上限，报告中的Count仍为真实总数
const maxLoggedSamples = 10

// 字符检测一致性抽查的歌曲上限
const charCheckSample = 5000

// 引用完整性抽查的事件数量
const referentialSample = 100

// Validator 对三个集合做一致性校验，只报告不删除；
// 唯一的自动修复是soundtrack语言哨兵的修正。
type Validator struct {
	events  repository.EventRepository
	songs   repository.SongRepository
	artists repository.ArtistRepository
}

// NewValidator creates a new Validator.
func NewValidator(events repository.EventRepository, songs repository.SongRepository,
	artists repository.ArtistRepository) *Validator {
	return &Validator{
		events:  events,
		songs:   songs,
		artists: artists,
	}
}

// Validate 先执行soundtrack修复，再依次检查必填字段、数据类型、
// 语言缺失、检测方法枚举、字符检测一致性、主档引用、重复与Spotify元数据缺失。
func (v *Validator) Validate(ctx context.Context) (*model.ValidationReport, error) {
	report := &model.ValidationReport{}

	if err := v.repairSoundtracks(ctx, report); err != nil {
		return report, err
	}
	if err := v.checkRequiredFields(ctx, report); err != nil {
		return report, err
	}
	if err := v.checkDataTypes(ctx, report); err != nil {
		return report, err
	}
	if err := v.checkMissingLanguage(ctx, report); err != nil {
		return report, err
	}
	if err := v.checkDetectionMethods(ctx, report); err != nil {
		return report, err
	}
	if err := v.checkCharacterDetection(ctx, report); err != nil {
		return report, err
	}
	if err := v.checkReferentialIntegrity(ctx, report); err != nil {
		return report, err
	}
	if err := v.checkDuplicates(ctx, report); err != nil {
		return report, err
	}
	if err := v.checkSpotifyData(ctx, report); err != nil {
		return report, err
	}

	logger.Info("[Validate] 校验完成",
		logger.Int("issues", len(report.Issues)),
		logger.Int64("fixesApplied", report.FixesApplied))
	return report, nil
}

// repairSoundtracks 修复在前，保证后续检查看到的是修复后的状态
func (v *Validator) repairSoundtracks(ctx context.Context, report *model.ValidationReport) error {
	mismatches, err := v.songs.FindSoundtrackMismatches(ctx)
	if err != nil {
		return err
	}

	var songFixes int64
	for i, song := range mismatches {
		fixed, err := v.songs.ApplySoundtrackFix(ctx, song.ID)
		if err != nil {
			return err
		}
		if fixed {
			songFixes++
		}
		if i < maxLoggedSamples {
			logger.Info("[Validate] 修复soundtrack语言",
				logger.String("song", song.SongName),
				logger.String("artist", song.ArtistName))
		}
	}
	if songFixes > 0 {
		report.Add(model.CategoryInvalidDataTypes,
			fmt.Sprintf("repaired %d soundtrack songs with wrong language sentinel", songFixes),
			"songs_master", songFixes, nil)
	}

	artistMismatches, err := v.artists.FindSoundtrackMismatches(ctx)
	if err != nil {
		return err
	}
	var artistFixes int64
	for i, artist := range artistMismatches {
		fixed, err := v.artists.ApplySoundtrackFix(ctx, artist.ID)
		if err != nil {
			return err
		}
		if fixed {
			artistFixes++
		}
		if i < maxLoggedSamples {
			logger.Info("[Validate] 修复艺术家soundtrack语言",
				logger.String("artist", artist.ArtistName))
		}
	}
	if artistFixes > 0 {
		report.Add(model.CategoryInvalidDataTypes,
			fmt.Sprintf("repaired %d soundtrack artists with wrong language sentinel", artistFixes),
			"artists_master", artistFixes, nil)
	}

	report.FixesApplied = songFixes + artistFixes
	return nil
}

func (v *Validator) checkRequiredFields(ctx context.Context, report *model.ValidationReport) error {
	checks := []struct {
		collection string
		field      string
		count      func() (int64, error)
	}{
		{"StreamingHistory", "ts_utc", func() (int64, error) { return v.events.CountNull(ctx, "ts_utc") }},
		{"StreamingHistory", "track_name", func() (int64, error) { return v.events.CountEmpty(ctx, "track_name") }},
		{"StreamingHistory", "artist_name", func() (int64, error) { return v.events.CountEmpty(ctx, "artist_name") }},
		{"songs_master", "song_name", func() (int64, error) { return v.songs.CountEmpty(ctx, "song_name") }},
		{"songs_master", "artist_name", func() (int64, error) { return v.songs.CountEmpty(ctx, "artist_name") }},
		{"songs_master", "spotify_track_uri", func() (int64, error) { return v.songs.CountMissingURI(ctx) }},
		{"artists_master", "artist_name", func() (int64, error) { return v.artists.CountEmpty(ctx, "artist_name") }},
	}

	for _, check := range checks {
		count, err := check.count()
		if err != nil {
			return err
		}
		if count > 0 {
			report.Add(model.CategoryMissingRequiredFields,
				fmt.Sprintf("%s has %d documents with missing %s", check.collection, count, check.field),
				check.collection, count,
				map[string]interface{}{"field": check.field})
		}
	}
	return nil
}

func (v *Validator) checkDataTypes(ctx context.Context, report *model.ValidationReport) error {
	songCount, err := v.songs.CountNonBooleanSoundtrack(ctx)
	if err != nil {
		return err
	}
	if songCount > 0 {
		report.Add(model.CategoryInvalidDataTypes,
			fmt.Sprintf("songs_master has %d documents with non-boolean is_soundtrack", songCount),
			"songs_master", songCount, nil)
	}

	artistCount, err := v.artists.CountNonBooleanSoundtrack(ctx)
	if err != nil {
		return err
	}
	if artistCount > 0 {
		report.Add(model.CategoryInvalidDataTypes,
			fmt.Sprintf("artists_master has %d documents with non-boolean is_soundtrack", artistCount),
			"artists_master", artistCount, nil)
	}
	return nil
}

func (v *Validator) checkMissingLanguage(ctx context.Context, report *model.ValidationReport) error {
	songCount, err := v.songs.CountNull(ctx, "language")
	if err != nil {
		return err
	}
	if songCount > 0 {
		report.Add(model.CategoryMissingLanguage,
			fmt.Sprintf("songs_master has %d documents without language", songCount),
			"songs_master", songCount, nil)
	}

	artistCount, err := v.artists.CountNull(ctx, "language")
	if err != nil {
		return err
	}
	if artistCount > 0 {
		report.Add(model.CategoryMissingLanguage,
			fmt.Sprintf("artists_master has %d documents without language", artistCount),
			"artists_master", artistCount, nil)
	}
	return nil
}

func (v *Validator) checkDetectionMethods(ctx context.Context, report *model.ValidationReport) error {
	songMethods, songCount, err := v.songs.InvalidDetectionMethods(ctx, maxLoggedSamples)
	if err != nil {
		return err
	}
	if songCount > 0 {
		report.Add(model.CategoryInvalidDetection,
			fmt.Sprintf("songs_master has %d documents with unknown detection_method", songCount),
			"songs_master", songCount,
			map[string]interface{}{"methods": songMethods})
	}

	artistMethods, artistCount, err := v.artists.InvalidDetectionMethods(ctx, maxLoggedSamples)
	if err != nil {
		return err
	}
	if artistCount > 0 {
		report.Add(model.CategoryInvalidDetection,
			fmt.Sprintf("artists_master has %d documents with unknown detection_method", artistCount),
			"artists_master", artistCount,
			map[string]interface{}{"methods": artistMethods})
	}
	return nil
}

// checkCharacterDetection 抽查曲名/歌手名中的希伯来文、日文字符与标注语言是否一致：
// 文本里出现了某种文字但language不是对应语言，即记为不一致
func (v *Validator) checkCharacterDetection(ctx context.Context, report *model.ValidationReport) error {
	songs, err := v.songs.SamplePrefix(ctx, charCheckSample)
	if err != nil {
		return err
	}

	var inconsistent int64
	logged := 0
	flag := func(song *model.Song, stored, expected string) {
		inconsistent++
		if logged < maxLoggedSamples {
			logged++
			logger.Warn("[Validate] 字符与标注语言不符",
				logger.String("song", song.SongName),
				logger.String("artist", song.ArtistName),
				logger.String("language", stored),
				logger.String("expected", expected))
		}
	}

	for _, song := range songs {
		combined := song.SongName + " " + song.ArtistName
		stored := ""
		if song.Language != nil {
			stored = *song.Language
		}

		if lang.ContainsHebrew(combined) && stored != "Hebrew" {
			flag(song, stored, "Hebrew")
		}
		if lang.ContainsJapanese(combined) && stored != "Japanese" {
			flag(song, stored, "Japanese")
		}

		// 反向核对：被character_detection标注的条目，声称的字符必须真的出现
		if song.DetectionMethod != nil && *song.DetectionMethod == model.MethodCharacterDetection {
			switch stored {
			case "Hebrew":
				if !lang.ContainsHebrew(combined) {
					flag(song, stored, "Hebrew")
				}
			case "Japanese":
				if !lang.ContainsJapanese(combined) {
					flag(song, stored, "Japanese")
				}
			}
		}
	}

	if inconsistent > 0 {
		report.Add(model.CategoryCharacterDetection,
			fmt.Sprintf("%d songs whose Hebrew/Japanese characters disagree with the stored language", inconsistent),
			"songs_master", inconsistent, nil)
	}
	return nil
}

// checkReferentialIntegrity 抽查最近事件的歌曲与艺术家是否都有主档记录，
// 按归一化自然键比对
func (v *Validator) checkReferentialIntegrity(ctx context.Context, report *model.ValidationReport) error {
	recent, err := v.events.RecentEvents(ctx, referentialSample)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		return nil
	}

	songKeys, err := v.songs.ExistingKeys(ctx)
	if err != nil {
		return err
	}
	artistNames, err := v.artists.ExistingNames(ctx)
	if err != nil {
		return err
	}

	var missingSongs, missingArtists int64
	logged := 0
	for _, ev := range recent {
		if !songKeys[model.NewSongKey(ev.TrackName, ev.ArtistName)] {
			missingSongs++
			if logged < maxLoggedSamples {
				logged++
				logger.Warn("[Validate] 事件缺少歌曲主档",
					logger.String("track", ev.TrackName),
					logger.String("artist", ev.ArtistName))
			}
		}
		if !artistNames[model.NormalizeName(ev.ArtistName)] {
			missingArtists++
		}
	}

	if missingSongs > 0 {
		report.Add(model.CategoryMissingMasterRecords,
			fmt.Sprintf("%d of %d sampled events reference songs absent from songs_master", missingSongs, len(recent)),
			"songs_master", missingSongs, nil)
	}
	if missingArtists > 0 {
		report.Add(model.CategoryMissingMasterRecords,
			fmt.Sprintf("%d of %d sampled events reference artists absent from artists_master", missingArtists, len(recent)),
			"artists_master", missingArtists, nil)
	}
	return nil
}

func (v *Validator) checkDuplicates(ctx context.Context, report *model.ValidationReport) error {
	songGroups, err := v.songs.DuplicateKeys(ctx, maxLoggedSamples)
	if err != nil {
		return err
	}
	if len(songGroups) > 0 {
		var total int64
		for _, g := range songGroups {
			total += g.Count
		}
		report.Add(model.CategoryDuplicates,
			fmt.Sprintf("songs_master has %d case-insensitive duplicate key groups", len(songGroups)),
			"songs_master", total,
			map[string]interface{}{"groups": songGroups})
	}

	artistGroups, err := v.artists.DuplicateNames(ctx, maxLoggedSamples)
	if err != nil {
		return err
	}
	if len(artistGroups) > 0 {
		var total int64
		for _, g := range artistGroups {
			total += g.Count
		}
		report.Add(model.CategoryDuplicates,
			fmt.Sprintf("artists_master has %d case-insensitive duplicate name groups", len(artistGroups)),
			"artists_master", total,
			map[string]interface{}{"groups": artistGroups})
	}
	return nil
}

func (v *Validator) checkSpotifyData(ctx context.Context, report *model.ValidationReport) error {
	missingURI, err := v.songs.CountMissingURI(ctx)
	if err != nil {
		return err
	}
	if missingURI > 0 {
		report.Add(model.CategoryMissingSpotifyData,
			fmt.Sprintf("songs_master has %d documents without a track URI", missingURI),
			"songs_master", missingURI, nil)
	}

	missingSongMeta, err := v.songs.CountMissingMetadata(ctx)
	if err != nil {
		return err
	}
	if missingSongMeta > 0 {
		report.Add(model.CategoryMissingSpotifyData,
			fmt.Sprintf("songs_master has %d documents missing duration or popularity", missingSongMeta),
			"songs_master", missingSongMeta, nil)
	}

	missingArtistURI, err := v.artists.CountMissingURI(ctx)
	if err != nil {
		return err
	}
	if missingArtistURI > 0 {
		report.Add(model.CategoryMissingSpotifyData,
			fmt.Sprintf("artists_master has %d documents without an artist URI", missingArtistURI),
			"artists_master", missingArtistURI, nil)
	}

	missingArtistMeta, err := v.artists.CountMissingMetadata(ctx)
	if err != nil {
		return err
	}
	if missingArtistMeta > 0 {
		report.Add(model.CategoryMissingSpotifyData,
			fmt.Sprintf("artists_master has %d documents missing followers or popularity", missingArtistMeta),
			"artists_master", missingArtistMeta, nil)
	}
	return nil
}
