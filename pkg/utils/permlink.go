package utils

import (
	"strings"
	"time"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	permlinkAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	permlinkSuffixSize = 6
)

// FormatPermlink renders t as an ISO-8601 UTC timestamp with millisecond
// precision, keeps only letters and digits and lower-cases the result,
// e.g. 20261019t101112123z.
func FormatPermlink(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return -1
		}
		return unicode.ToLower(r)
	}, iso)
}

// NewPermlink is FormatPermlink plus a random suffix so two posts made in
// the same millisecond do not collide.
func NewPermlink(t time.Time) (string, error) {
	suffix, err := gonanoid.Generate(permlinkAlphabet, permlinkSuffixSize)
	if err != nil {
		return "", err
	}
	return FormatPermlink(t) + "-" + suffix, nil
}
