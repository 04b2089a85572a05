package model

import (
	"strings"

	"github.com/forPelevin/gomoji"
)

// OnlyEmoji reports whether s is non-empty and consists of emoji and
// whitespace only. Clients render such messages enlarged.
func OnlyEmoji(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(gomoji.FindAll(s)) == 0 {
		return false
	}
	return strings.TrimSpace(gomoji.RemoveEmojis(s)) == ""
}
