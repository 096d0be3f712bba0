package utils

import "strings"

const profanityMask = "***"

// FilterProfanity replaces any whitespace-delimited token matching the
// banned-word set, case-insensitively, with a fixed-length mask. Punctuation
// attached to a word defeats the match; that mirrors the moderation rules
// the platform documents for room admins.
func FilterProfanity(text string, bannedWords []string) string {
	if text == "" {
		return text
	}

	banned := make(map[string]struct{}, len(bannedWords))
	for _, w := range bannedWords {
		banned[strings.ToLower(w)] = struct{}{}
	}

	words := strings.Fields(text)
	for i, word := range words {
		if _, ok := banned[strings.ToLower(word)]; ok {
			words[i] = profanityMask
		}
	}
	return strings.Join(words, " ")
}
