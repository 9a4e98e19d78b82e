package publisher

import (
	"strings"

	"crosspost/internal/models"
)

// Caption is the bilingual text of a post as adapters see it.
type Caption struct {
	TitlePrimary   string
	BodyPrimary    string
	TitleSecondary string
	BodySecondary  string
}

// CaptionFor extracts the caption fields of a post.
func CaptionFor(p *models.Post) Caption {
	return Caption{
		TitlePrimary:   p.TitlePrimary,
		BodyPrimary:    p.BodyPrimary,
		TitleSecondary: p.TitleSecondary,
		BodySecondary:  p.BodySecondary,
	}
}

// Combined is the single-field caption: secondary title and body, then
// primary title and body, skipping empty parts, separated by blank lines.
func (c Caption) Combined() string {
	return joinNonEmpty("\n\n", c.TitleSecondary, c.BodySecondary, c.TitlePrimary, c.BodyPrimary)
}

// Title is the title for destinations with a separate title field.
func (c Caption) Title() string {
	return joinNonEmpty(" | ", c.TitleSecondary, c.TitlePrimary)
}

// Description is the body for destinations with a separate title field.
func (c Caption) Description() string {
	return joinNonEmpty("\n\n", c.BodySecondary, c.BodyPrimary)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// truncateRunes cuts s to at most n runes, marking the cut with an ellipsis.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
