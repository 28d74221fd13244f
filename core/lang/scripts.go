package lang

import "regexp"

// 希伯来文：基础区块 + 字型变体区块
var hebrewPattern = regexp.MustCompile(`[\x{0590}-\x{05FF}\x{FB1D}-\x{FB4F}]`)

// 日文：平假名、片假名、常用汉字
var japanesePattern = regexp.MustCompile(`[\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}]`)

// ContainsHebrew 判断文本是否包含希伯来字符
func ContainsHebrew(text string) bool {
	if text == "" {
		return false
	}
	return hebrewPattern.MatchString(text)
}

// ContainsJapanese 判断文本是否包含日文字符（平假名/片假名/汉字）
func ContainsJapanese(text string) bool {
	if text == "" {
		return false
	}
	return japanesePattern.MatchString(text)
}
