package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"crosspost/internal/models"
)

// Validation limits for submitted posts.
const (
	maxTitleLen   = 300
	maxBodyLen    = 20_000
	maxMediaItems = 20
)

// validateText checks the caption fields and returns the first error found.
func validateText(titlePrimary, bodyPrimary, titleSecondary, bodySecondary string) string {
	if strings.TrimSpace(titlePrimary) == "" {
		return "title_primary is required."
	}
	if strings.TrimSpace(bodyPrimary) == "" {
		return "body_primary is required."
	}
	for name, v := range map[string]string{"title_primary": titlePrimary, "title_secondary": titleSecondary} {
		if utf8.RuneCountInString(v) > maxTitleLen {
			return fmt.Sprintf("%s is too long (max %d characters).", name, maxTitleLen)
		}
	}
	for name, v := range map[string]string{"body_primary": bodyPrimary, "body_secondary": bodySecondary} {
		if utf8.RuneCountInString(v) > maxBodyLen {
			return fmt.Sprintf("%s is too long (max %d characters).", name, maxBodyLen)
		}
	}
	return ""
}

// validateDestinations parses the selection. Unknown names are dropped;
// a selection with nothing left is rejected.
func validateDestinations(raw []string) ([]models.Destination, string) {
	dests := models.ParseDestinations(raw)
	if len(dests) == 0 {
		return nil, "at least one known destination is required."
	}
	return dests, ""
}

// resolveMedia maps names relative to the upload directory onto existing
// files. Names that would leave the directory are rejected.
func resolveMedia(uploadDir string, names []string) ([]string, string) {
	if len(names) > maxMediaItems {
		return nil, fmt.Sprintf("too many media items (max %d).", maxMediaItems)
	}
	paths := make([]string, 0, len(names))
	for _, n := range names {
		if !filepath.IsLocal(n) {
			return nil, fmt.Sprintf("media %q must be a file inside the upload directory.", n)
		}
		p := filepath.Join(uploadDir, n)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return nil, fmt.Sprintf("media %q not found.", n)
		}
		paths = append(paths, p)
	}
	return paths, ""
}
