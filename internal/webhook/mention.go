package webhook

import (
	"strings"
	"unicode"

	"github.com/garyellow/cardbot/internal/bot"
)

// removeRecipientMentions strips the markup of every mention entity that
// targets the activity's recipient (the bot), e.g. "<at>CardBot</at>".
// Mentions of other users are kept.
func removeRecipientMentions(act *bot.Activity) string {
	text := act.Text
	if text == "" || len(act.Entities) == 0 {
		return text
	}

	removed := false
	for _, e := range act.Entities {
		if e.Type != bot.EntityTypeMention || e.Mentioned == nil || e.Text == "" {
			continue
		}
		if e.Mentioned.ID != act.Recipient.ID {
			continue
		}
		if strings.Contains(text, e.Text) {
			text = strings.ReplaceAll(text, e.Text, " ")
			removed = true
		}
	}

	if !removed {
		return act.Text
	}
	return normalizeWhitespace(text)
}

// normalizeWhitespace collapses runs of whitespace into single spaces and
// trims both ends.
func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pending := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 || len(s) <= n {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
