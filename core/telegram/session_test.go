package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tgstream/core/link"

	"github.com/gotd/td/tg"
)

func channelMessages(msgs ...tg.MessageClass) tg.MessagesMessagesClass {
	return &tg.MessagesChannelMessages{Messages: msgs}
}

func TestDocumentFromMessages(t *testing.T) {
	doc := &tg.Document{
		ID:       1,
		MimeType: "video/mp4",
		Size:     2048,
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeVideo{Duration: 12, W: 640, H: 360},
			&tg.DocumentAttributeFilename{FileName: "clip.mp4"},
		},
	}

	got, err := documentFromMessages(channelMessages(
		&tg.Message{ID: 5, Media: &tg.MessageMediaDocument{Document: doc}},
	))
	if err != nil {
		t.Fatalf("Expected document, got %v", err)
	}
	if got.ID != 1 {
		t.Errorf("Unexpected document %+v", got)
	}
	if name := documentFileName(got); name != "clip.mp4" {
		t.Errorf("Expected clip.mp4, got %s", name)
	}
}

func TestDocumentFromMessagesVideoAttributeOnly(t *testing.T) {
	doc := &tg.Document{
		ID:         2,
		MimeType:   "application/octet-stream",
		Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeVideo{}},
	}
	if _, err := documentFromMessages(channelMessages(
		&tg.Message{ID: 6, Media: &tg.MessageMediaDocument{Document: doc}},
	)); err != nil {
		t.Errorf("Expected video attribute to qualify, got %v", err)
	}
}

func TestDocumentFromMessagesErrors(t *testing.T) {
	cases := []struct {
		name string
		res  tg.MessagesMessagesClass
		want error
	}{
		{"empty result", channelMessages(), ErrPostNotFound},
		{"deleted message", channelMessages(&tg.MessageEmpty{ID: 7}), ErrPostNotFound},
		{"text only", channelMessages(&tg.Message{ID: 8, Message: "hi"}), ErrNoVideo},
		{"photo", channelMessages(&tg.Message{ID: 9, Media: &tg.MessageMediaPhoto{}}), ErrNoVideo},
		{"no document", channelMessages(&tg.Message{ID: 10, Media: &tg.MessageMediaDocument{}}), ErrNoVideo},
		{"empty document", channelMessages(&tg.Message{ID: 11, Media: &tg.MessageMediaDocument{Document: &tg.DocumentEmpty{ID: 3}}}), ErrNoVideo},
		{"pdf", channelMessages(&tg.Message{ID: 12, Media: &tg.MessageMediaDocument{Document: &tg.Document{MimeType: "application/pdf"}}}), ErrNoVideo},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := documentFromMessages(tc.res); !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewSessionFetcherValidation(t *testing.T) {
	if _, err := NewSessionFetcher(SessionOptions{AppHash: "h", SessionPath: "s"}); err == nil {
		t.Error("Expected error without app id")
	}
	if _, err := NewSessionFetcher(SessionOptions{AppID: 1, AppHash: "h"}); err == nil {
		t.Error("Expected error without session path")
	}
	if _, err := NewSessionFetcher(SessionOptions{AppID: 1, AppHash: "h", SessionPath: "s"}); err != nil {
		t.Errorf("Expected valid options, got %v", err)
	}
}

func TestSessionFetcherMissingSession(t *testing.T) {
	f, err := NewSessionFetcher(SessionOptions{
		AppID:       1,
		AppHash:     "hash",
		SessionPath: filepath.Join(t.TempDir(), "missing.json"),
	})
	if err != nil {
		t.Fatal(err)
	}
	post, _ := link.Parse("https://t.me/somechannel/1")
	if _, err := f.Fetch(context.Background(), post, t.TempDir()); !errors.Is(err, ErrSessionUnauthorized) {
		t.Errorf("Expected ErrSessionUnauthorized, got %v", err)
	}
}
