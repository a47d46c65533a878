package moderation

import "github.com/abadojack/whatlanggo"

// DetectLanguage returns the ISO 639-1 code of the text language.
// Text too short to be reliable yields an empty code.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
