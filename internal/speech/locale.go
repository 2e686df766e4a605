package speech

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLocale returns the user's locale as a BCP 47 tag, read from the usual
// POSIX variables. Falls back to en-US.
func DefaultLocale() string {
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if tag, ok := ParseLocale(os.Getenv(env)); ok {
			return tag
		}
	}

	return language.AmericanEnglish.String()
}

// ParseLocale normalises a POSIX locale ("en_US.UTF-8") or BCP 47 tag into
// canonical BCP 47 form. The C and POSIX locales are not languages.
func ParseLocale(raw string) (string, bool) {
	raw, _, _ = strings.Cut(raw, ".")
	raw, _, _ = strings.Cut(raw, "@")
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")

	if raw == "" || raw == "C" || raw == "POSIX" {
		return "", false
	}

	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}

	return tag.String(), true
}

// BaseLanguage returns the ISO 639 language of a locale ("en" for "en-US").
func BaseLanguage(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}

	base, _ := tag.Base()

	return base.String()
}
