package utils

import (
	"crypto/md5"
	"fmt"
	"regexp"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

func HashBytes(input []byte) string {
	hash := md5.Sum(input)
	return fmt.Sprintf("%x", hash)
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// CleanFilename replaces characters that are unsafe in stored filenames.
func CleanFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = regexp.MustCompile(`_{2,}`).ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

// FormatCurrency renders a USD amount with K/M/B suffixes.
func FormatCurrency(amount float64) string {
	switch {
	case amount >= 1_000_000_000:
		return fmt.Sprintf("USD %.1fB", amount/1_000_000_000)
	case amount >= 1_000_000:
		return fmt.Sprintf("USD %.1fM", amount/1_000_000)
	case amount >= 1_000:
		return fmt.Sprintf("USD %.1fK", amount/1_000)
	default:
		return fmt.Sprintf("USD %.2f", amount)
	}
}
