// Package link parses Telegram post links.
package link

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmptyLink is returned for a blank input.
	ErrEmptyLink = errors.New("Please provide a Telegram post link.")
	// ErrInvalidLink is returned for anything that is not a post link.
	ErrInvalidLink = errors.New("Invalid Telegram link format. Use: https://t.me/channelname/123")
)

var (
	publicPostRe  = regexp.MustCompile(`^https://t\.me/([a-zA-Z0-9_]+)/(\d+)$`)
	privatePostRe = regexp.MustCompile(`^https://t\.me/c/(\d+)/(\d+)$`)
)

// Post identifies a single message in a channel.
type Post struct {
	Channel string // public username, empty for private chats
	ChatID  int64  // Bot API chat id (-100…) for private chats
	PostID  int
}

// Parse validates raw and extracts the channel and post id.
func Parse(raw string) (*Post, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyLink
	}

	if m := privatePostRe.FindStringSubmatch(raw); m != nil {
		internalID, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || internalID <= 0 {
			return nil, ErrInvalidLink
		}
		chatID, err := strconv.ParseInt("-100"+m[1], 10, 64)
		if err != nil {
			return nil, ErrInvalidLink
		}
		postID, err := parsePostID(m[2])
		if err != nil {
			return nil, err
		}
		return &Post{ChatID: chatID, PostID: postID}, nil
	}

	if m := publicPostRe.FindStringSubmatch(raw); m != nil {
		postID, err := parsePostID(m[2])
		if err != nil {
			return nil, err
		}
		return &Post{Channel: m[1], PostID: postID}, nil
	}

	return nil, ErrInvalidLink
}

func parsePostID(s string) (int, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil || id <= 0 {
		return 0, ErrInvalidLink
	}
	return int(id), nil
}

// Private reports whether the post lives in a private chat.
func (p *Post) Private() bool {
	return p.Channel == ""
}

// InternalChannelID returns the MTProto channel id of a private chat.
func (p *Post) InternalChannelID() int64 {
	s := strconv.FormatInt(p.ChatID, 10)
	id, _ := strconv.ParseInt(strings.TrimPrefix(s, "-100"), 10, 64)
	return id
}

// FromChat is the Bot API source chat for forwarding.
func (p *Post) FromChat() string {
	if p.Private() {
		return strconv.FormatInt(p.ChatID, 10)
	}
	return "@" + p.Channel
}

// EmbedURL is the t.me widget URL, empty for private posts which cannot be embedded.
func (p *Post) EmbedURL() string {
	if p.Private() {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s/%d?embed=1", p.Channel, p.PostID)
}

func (p *Post) String() string {
	if p.Private() {
		return fmt.Sprintf("https://t.me/c/%d/%d", p.InternalChannelID(), p.PostID)
	}
	return fmt.Sprintf("https://t.me/%s/%d", p.Channel, p.PostID)
}
