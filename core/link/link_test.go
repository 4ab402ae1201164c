package link

import (
	"errors"
	"testing"
)

func TestParsePublic(t *testing.T) {
	post, err := Parse("  https://t.me/durov_news/123 \n")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if post.Channel != "durov_news" || post.PostID != 123 {
		t.Errorf("Unexpected post: %+v", post)
	}
	if post.Private() {
		t.Error("Expected public post")
	}
	if got := post.EmbedURL(); got != "https://t.me/durov_news/123?embed=1" {
		t.Errorf("Unexpected embed URL %s", got)
	}
	if got := post.FromChat(); got != "@durov_news" {
		t.Errorf("Unexpected source chat %s", got)
	}
	if got := post.String(); got != "https://t.me/durov_news/123" {
		t.Errorf("Unexpected canonical link %s", got)
	}
}

func TestParsePrivate(t *testing.T) {
	post, err := Parse("https://t.me/c/1234567890/42")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !post.Private() {
		t.Fatal("Expected private post")
	}
	if post.ChatID != -1001234567890 {
		t.Errorf("Expected chat id -1001234567890, got %d", post.ChatID)
	}
	if post.InternalChannelID() != 1234567890 {
		t.Errorf("Expected internal id 1234567890, got %d", post.InternalChannelID())
	}
	if post.EmbedURL() != "" {
		t.Errorf("Expected no embed URL for private post, got %s", post.EmbedURL())
	}
	if post.FromChat() != "-1001234567890" {
		t.Errorf("Unexpected source chat %s", post.FromChat())
	}
	if post.String() != "https://t.me/c/1234567890/42" {
		t.Errorf("Unexpected canonical link %s", post.String())
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrEmptyLink},
		{"blank", "   ", ErrEmptyLink},
		{"http scheme", "http://t.me/channel/1", ErrInvalidLink},
		{"other host", "https://example.com/channel/1", ErrInvalidLink},
		{"no post id", "https://t.me/channel", ErrInvalidLink},
		{"non numeric id", "https://t.me/channel/abc", ErrInvalidLink},
		{"trailing query", "https://t.me/channel/1?single", ErrInvalidLink},
		{"zero id", "https://t.me/channel/0", ErrInvalidLink},
		{"overflow id", "https://t.me/channel/99999999999999", ErrInvalidLink},
		{"bad chars", "https://t.me/chan-nel/1", ErrInvalidLink},
		{"plain text", "hello", ErrInvalidLink},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			post, err := Parse(tc.in)
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
			if post != nil {
				t.Errorf("Expected nil post, got %+v", post)
			}
		})
	}
}
