package lingoflow

import "strings"

// rtlLanguages holds base codes of right-to-left scripts.
var rtlLanguages = map[string]bool{
	"ar": true,
	"he": true,
	"fa": true,
	"ur": true,
	"ps": true,
	"sd": true,
	"ug": true,
	"yi": true,
}

// languageNames maps base codes to names used in log lines and the CLI.
var languageNames = map[string]string{
	"ar": "Arabic",
	"bn": "Bengali",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"fa": "Persian",
	"fi": "Finnish",
	"fr": "French",
	"he": "Hebrew",
	"hi": "Hindi",
	"hu": "Hungarian",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sv": "Swedish",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"ur": "Urdu",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// BaseLanguage returns the lowercase primary subtag of a code:
// "pt-BR", "pt_BR" and "PT" all yield "pt".
func BaseLanguage(code string) string {
	base, _, _ := strings.Cut(NormalizeLocale(code), "_")
	return strings.ToLower(strings.TrimSpace(base))
}

// LanguageName returns a human-readable name for code, or code itself.
func LanguageName(code string) string {
	if name, ok := languageNames[BaseLanguage(code)]; ok {
		return name
	}
	return code
}

// Direction returns "rtl" for right-to-left languages, "ltr" otherwise.
func Direction(code string) string {
	if rtlLanguages[BaseLanguage(code)] {
		return "rtl"
	}
	return "ltr"
}

// IsRTL returns true if the language uses right-to-left text direction.
func IsRTL(code string) bool {
	return Direction(code) == "rtl"
}

// NormalizeLocale converts a language code to underscore form (e.g., "es-ES" → "es_ES").
func NormalizeLocale(code string) string {
	return strings.ReplaceAll(code, "-", "_")
}

// ToHTMLLang converts a locale code to HTML lang attribute format (e.g., "es_ES" → "es-ES").
func ToHTMLLang(code string) string {
	return strings.ReplaceAll(code, "_", "-")
}
