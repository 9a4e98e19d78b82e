package media

import (
	"path/filepath"
	"strings"

	"crosspost/internal/models"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// IsImage reports whether path has a still-image extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsVideo reports whether path has a video extension.
func IsVideo(path string) bool {
	return models.IsVideoPath(path)
}

// Split separates media paths into images, kept in input order, and the
// first video. Paths of any other type are ignored.
func Split(paths []string) (images []string, video string) {
	for _, p := range paths {
		switch {
		case IsImage(p):
			images = append(images, p)
		case IsVideo(p) && video == "":
			video = p
		}
	}
	return images, video
}
