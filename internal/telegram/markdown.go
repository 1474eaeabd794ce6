package telegram

import (
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
)

// SplitMessage splits text into chunks of at most maxLen runes, preferring
// to cut after a newline in the second half of a chunk.
func SplitMessage(text string, maxLen int) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			parts = append(parts, string(runes))
			break
		}

		splitAt := maxLen
		chunk := string(runes[:maxLen])
		if nl := strings.LastIndex(chunk, "\n"); nl >= 0 {
			if at := utf8.RuneCountInString(chunk[:nl]) + 1; at > maxLen/2 {
				splitAt = at
			}
		}

		parts = append(parts, string(runes[:splitAt]))
		runes = runes[splitAt:]
	}
	return parts
}

// Esc escapes s for MarkdownV2.
func Esc(s string) string {
	return bot.EscapeMarkdown(s)
}

// Code renders s as MarkdownV2 inline code.
func Code(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "`", "\\`")
	return "`" + s + "`"
}

// Truncate cuts s to maxLen runes, ending it with an ellipsis.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}
