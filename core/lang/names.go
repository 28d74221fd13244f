package lang

import "strings"

// languageNames maps ISO-ish language codes to human-readable names.
// Unmapped codes pass through title-cased.
var languageNames = map[string]string{
	"en": "English", "es": "Spanish", "fr": "French", "de": "German",
	"it": "Italian", "pt": "Portuguese", "ru": "Russian", "ja": "Japanese",
	"ko": "Korean", "zh-cn": "Chinese", "zh": "Chinese", "ar": "Arabic",
	"tr": "Turkish", "nl": "Dutch", "pl": "Polish", "sv": "Swedish",
	"no": "Norwegian", "nb": "Norwegian", "da": "Danish", "fi": "Finnish",
	"he": "Hebrew", "hi": "Hindi", "th": "Thai", "vi": "Vietnamese",
	"id": "Indonesian", "ms": "Malay", "tl": "Filipino", "ro": "Romanian",
	"hu": "Hungarian", "cs": "Czech", "sk": "Slovak", "bg": "Bulgarian",
	"hr": "Croatian", "sr": "Serbian", "sl": "Slovenian", "et": "Estonian",
	"lv": "Latvian", "lt": "Lithuanian", "uk": "Ukrainian", "be": "Belarusian",
	"mk": "Macedonian", "sq": "Albanian", "ca": "Catalan", "eu": "Basque",
	"gl": "Galician", "cy": "Welsh", "ga": "Irish", "is": "Icelandic",
	"mt": "Maltese",
}

// NormalizeLanguageCode 将语言代码转换为可读名称，未收录的代码按Title Case透传
func NormalizeLanguageCode(code string) string {
	if code == "" {
		return "Unknown"
	}
	lower := strings.ToLower(code)
	if name, ok := languageNames[lower]; ok {
		return name
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}
