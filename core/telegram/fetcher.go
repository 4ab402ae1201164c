// Package telegram retrieves the video attached to a post.
package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"tgstream/core/link"
)

var (
	// ErrNoVideo means the post carries no video-like attachment.
	ErrNoVideo = errors.New("the post does not contain a video")
	// ErrSessionUnauthorized means the session file is missing or logged out.
	ErrSessionUnauthorized = errors.New("telegram session is not authorized")
	// ErrPostNotFound means the message could not be resolved.
	ErrPostNotFound = errors.New("post not found or not accessible")
)

// Media is a downloaded attachment.
type Media struct {
	Path     string
	FileName string
	MimeType string
	Size     int64
}

// Fetcher downloads the video of a post into destDir.
type Fetcher interface {
	Fetch(ctx context.Context, post *link.Post, destDir string) (*Media, error)
}

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)

// sourceFileName returns a safe local name for the raw download.
func sourceFileName(name, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || len(ext) > 6 || unsafeNameRe.MatchString(ext) {
		ext = extensionForMime(mimeType)
	}
	return "source" + ext
}

func extensionForMime(mimeType string) string {
	switch mimeType {
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	case "video/x-matroska":
		return ".mkv"
	default:
		return ".mp4"
	}
}

func isVideoMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/")
}
