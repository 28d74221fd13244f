package lang

import (
	"strings"

	"SpotiTrace/model"

	"github.com/pemistahl/lingua-go"
)

// Statistical 统计式语言检测器，返回语言代码与置信度（0-1）
type Statistical interface {
	Detect(text string) (code string, confidence float64)
}

// linguaDetector wraps lingua-go as the production Statistical implementation.
type linguaDetector struct {
	detector lingua.LanguageDetector
}

// NewStatistical 构建基于lingua的统计检测器。
// 模型加载偏重，进程内只应构建一次。
func NewStatistical() Statistical {
	return &linguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build(),
	}
}

func (l *linguaDetector) Detect(text string) (string, float64) {
	if len(strings.TrimSpace(text)) < 3 {
		return "", 0
	}

	values := l.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return "", 0
	}

	best := values[0]
	return strings.ToLower(best.Language().IsoCode639_1().String()), best.Value()
}

// Detector 按固定优先级执行歌曲语言判定
type Detector struct {
	statistical         Statistical
	confidenceThreshold float64
	minLyricsLength     int
}

// NewDetector creates a detector with the given confidence threshold (0-1) and
// minimum lyrics length in characters.
func NewDetector(statistical Statistical, confidenceThreshold float64, minLyricsLength int) *Detector {
	return &Detector{
		statistical:         statistical,
		confidenceThreshold: confidenceThreshold,
		minLyricsLength:     minLyricsLength,
	}
}

// langRule 是回退链中的一条（判定，结果）规则
type langRule struct {
	method string
	detect func() (language string, ok bool)
}

// DetectSong determines a song's language through the fixed fallback chain,
// first hit wins:
//
//	soundtrack哨兵 → 希伯来/日文字符检测 → 歌词统计检测 → 曲名 → 歌手名 → Unknown
//
// Returns (language, detection method).
func (d *Detector) DetectSong(songName, artistName, lyrics string, isSoundtrack bool) (string, string) {
	combined := songName + " " + artistName

	rules := []langRule{
		{model.MethodSoundtrack, func() (string, bool) {
			return model.LanguageSoundtrack, isSoundtrack
		}},
		{model.MethodCharacterDetection, func() (string, bool) {
			// 短文本上统计检测对这两类文字表现很差，字符命中即覆盖
			return "Hebrew", ContainsHebrew(combined)
		}},
		{model.MethodCharacterDetection, func() (string, bool) {
			return "Japanese", ContainsJapanese(combined)
		}},
		{model.MethodLyrics, func() (string, bool) {
			if len(strings.TrimSpace(lyrics)) < d.minLyricsLength {
				return "", false
			}
			return d.statisticalAboveThreshold(lyrics)
		}},
		{model.MethodTitle, func() (string, bool) {
			if songName == "" {
				return "", false
			}
			return d.statisticalAboveThreshold(songName)
		}},
		{model.MethodArtistName, func() (string, bool) {
			if artistName == "" {
				return "", false
			}
			return d.statisticalAboveThreshold(artistName)
		}},
	}

	for _, rule := range rules {
		if language, ok := rule.detect(); ok {
			return language, rule.method
		}
	}
	return model.LanguageUnknown, model.MethodUnknown
}

func (d *Detector) statisticalAboveThreshold(text string) (string, bool) {
	code, confidence := d.statistical.Detect(text)
	if code == "" || confidence < d.confidenceThreshold {
		return "", false
	}
	return NormalizeLanguageCode(code), true
}
