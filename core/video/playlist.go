package video

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/grafov/m3u8"
)

// PlaylistInfo summarises a media playlist.
type PlaylistInfo struct {
	Segments       []string
	TargetDuration float64
	Duration       float64
	Complete       bool // EXT-X-ENDLIST present
}

// ParsePlaylist decodes a media playlist. Master playlists are rejected.
func ParsePlaylist(data []byte) (*m3u8.MediaPlaylist, error) {
	p, listType, err := m3u8.DecodeFrom(bufio.NewReader(bytes.NewReader(data)), true)
	if err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("expected a media playlist")
	}
	return p.(*m3u8.MediaPlaylist), nil
}

// ReadPlaylist loads and summarises the playlist at path.
func ReadPlaylist(playlistPath string) (*PlaylistInfo, error) {
	data, err := os.ReadFile(playlistPath)
	if err != nil {
		return nil, err
	}
	media, err := ParsePlaylist(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", playlistPath, err)
	}

	info := &PlaylistInfo{
		TargetDuration: media.TargetDuration,
		Complete:       media.Closed,
	}
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		info.Segments = append(info.Segments, seg.URI)
		info.Duration += seg.Duration
	}
	return info, nil
}

// VerifyOutput checks that dir holds a finished playlist whose segments all exist.
func VerifyOutput(dir string) (*PlaylistInfo, error) {
	info, err := ReadPlaylist(filepath.Join(dir, PlaylistName))
	if err != nil {
		return nil, err
	}
	if len(info.Segments) == 0 {
		return nil, fmt.Errorf("playlist in %s has no segments", dir)
	}
	if !info.Complete {
		return nil, fmt.Errorf("playlist in %s is not finished", dir)
	}
	for _, uri := range info.Segments {
		name := path.Base(uri)
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("segment %s missing: %w", name, err)
		}
	}
	return info, nil
}

// RewriteSegmentURIs applies fn to every segment URI and re-encodes the playlist.
func RewriteSegmentURIs(data []byte, fn func(uri string) string) ([]byte, error) {
	media, err := ParsePlaylist(data)
	if err != nil {
		return nil, err
	}
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		seg.URI = fn(seg.URI)
	}
	return media.Encode().Bytes(), nil
}
