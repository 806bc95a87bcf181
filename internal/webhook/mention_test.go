package webhook

import (
	"strings"
	"testing"

	"github.com/garyellow/cardbot/internal/bot"
	"github.com/stretchr/testify/assert"
)

func mention(id, text string) bot.Entity {
	return bot.Entity{Type: bot.EntityTypeMention, Mentioned: &bot.ChannelAccount{ID: id}, Text: text}
}

func TestRemoveRecipientMentions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		entities []bot.Entity
		want     string
	}{
		{"no entities", "show weather", nil, "show weather"},
		{"bot mention at start", "<at>CardBot</at> weather please", []bot.Entity{mention("bot", "<at>CardBot</at>")}, "weather please"},
		{"bot mention in middle", "show  <at>CardBot</at>  flight", []bot.Entity{mention("bot", "<at>CardBot</at>")}, "show flight"},
		{"other user kept", "<at>Alice</at> weather", []bot.Entity{mention("alice", "<at>Alice</at>")}, "<at>Alice</at> weather"},
		{
			"mixed mentions",
			"<at>Alice</at> <at>CardBot</at> demo",
			[]bot.Entity{mention("alice", "<at>Alice</at>"), mention("bot", "<at>CardBot</at>")},
			"<at>Alice</at> demo",
		},
		{"only mention", "<at>CardBot</at>", []bot.Entity{mention("bot", "<at>CardBot</at>")}, ""},
		{"non-mention entity", "hello", []bot.Entity{{Type: "clientInfo"}}, "hello"},
		{"mention text absent", "hello", []bot.Entity{mention("bot", "<at>CardBot</at>")}, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			act := &bot.Activity{
				Text:      tt.text,
				Recipient: bot.ChannelAccount{ID: "bot"},
				Entities:  tt.entities,
			}
			assert.Equal(t, tt.want, removeRecipientMentions(act))
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"hello world", "hello world"},
		{"hello  world", "hello world"},
		{"hello\tworld", "hello world"},
		{" \n hello \r\n world \t", "hello world"},
		{"你好  世界", "你好 世界"},
		{"   ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeWhitespace(tt.input), "input %q", tt.input)
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	got, cut := truncateRunes("weather", 3)
	assert.Equal(t, "wea", got)
	assert.True(t, cut)

	got, cut = truncateRunes("天氣預報", 2)
	assert.Equal(t, "天氣", got)
	assert.True(t, cut)

	got, cut = truncateRunes("天氣", 2)
	assert.Equal(t, "天氣", got)
	assert.False(t, cut)

	long := strings.Repeat("a", 10)
	got, cut = truncateRunes(long, 0)
	assert.Equal(t, long, got)
	assert.False(t, cut)
}
