package ledger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeName capitalizes the first letter and lower-cases the rest.
func NormalizeName(s string) string {
	s = strings.ToLower(s)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// NormalizeKeyword upper-cases a group keyword.
func NormalizeKeyword(s string) string {
	return strings.ToUpper(s)
}

// IsLetters reports whether s is non-empty and made of letters only.
func IsLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// ValidateName checks a member name against the letters-only rule and the
// length limit.
func ValidateName(name string, maxLen int) error {
	if !IsLetters(name) {
		return Errorf(KindInvalidArguments, "Name must contain letters only: %s", name)
	}
	if maxLen > 0 && utf8.RuneCountInString(name) > maxLen {
		return Errorf(KindInvalidArguments, "Name too long (max %d letters): %s", maxLen, name)
	}
	return nil
}
