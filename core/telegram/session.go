package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tgstream/core/link"
	"tgstream/core/utils"
	"tgstream/logger"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
)

// SessionOptions configure a SessionFetcher.
type SessionOptions struct {
	AppID       int
	AppHash     string
	SessionPath string // gotd session file, created by a prior interactive login
	MaxBytes    int64
}

// SessionFetcher downloads post media with an authenticated MTProto user session.
// It can read any channel the account can see, including private ones.
type SessionFetcher struct {
	opts SessionOptions
}

// NewSessionFetcher validates the options.
func NewSessionFetcher(opts SessionOptions) (*SessionFetcher, error) {
	if opts.AppID == 0 || opts.AppHash == "" {
		return nil, fmt.Errorf("telegram app id and hash are required")
	}
	if opts.SessionPath == "" {
		return nil, fmt.Errorf("session path is required")
	}
	return &SessionFetcher{opts: opts}, nil
}

// Fetch implements Fetcher. Each call opens and closes its own connection.
func (f *SessionFetcher) Fetch(ctx context.Context, post *link.Post, destDir string) (*Media, error) {
	if _, err := os.Stat(f.opts.SessionPath); err != nil {
		return nil, ErrSessionUnauthorized
	}

	client := telegram.NewClient(f.opts.AppID, f.opts.AppHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: f.opts.SessionPath},
		Logger:         logger.L().Named("mtproto"),
	})

	var media *Media
	err := client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return ErrSessionUnauthorized
		}

		api := client.API()
		channel, err := resolveChannel(ctx, api, post)
		if err != nil {
			return err
		}

		res, err := api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: channel,
			ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: post.PostID}},
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPostNotFound, err)
		}

		doc, err := documentFromMessages(res)
		if err != nil {
			return err
		}
		if f.opts.MaxBytes > 0 && doc.Size > f.opts.MaxBytes {
			return utils.ErrTooLarge
		}

		name := documentFileName(doc)
		dest := filepath.Join(destDir, sourceFileName(name, doc.MimeType))

		if _, err := downloader.NewDownloader().Download(api, doc.AsInputDocumentFileLocation()).ToPath(ctx, dest); err != nil {
			os.Remove(dest)
			return fmt.Errorf("download document: %w", err)
		}

		logger.Info("Downloaded post media via user session",
			logger.String("post", post.String()),
			logger.String("file", dest),
			logger.Int64("size", doc.Size))

		media = &Media{Path: dest, FileName: name, MimeType: doc.MimeType, Size: doc.Size}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return media, nil
}

func resolveChannel(ctx context.Context, api *tg.Client, post *link.Post) (tg.InputChannelClass, error) {
	m := peers.Options{}.Build(api)

	if post.Private() {
		ch, err := m.ResolveChannelID(ctx, post.InternalChannelID())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPostNotFound, err)
		}
		return ch.InputChannel(), nil
	}

	p, err := m.ResolveDomain(ctx, post.Channel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPostNotFound, err)
	}
	ch, ok := p.(peers.Channel)
	if !ok {
		return nil, fmt.Errorf("%w: @%s is not a channel", ErrPostNotFound, post.Channel)
	}
	return ch.InputChannel(), nil
}

// documentFromMessages extracts the video document of the single requested message.
func documentFromMessages(res tg.MessagesMessagesClass) (*tg.Document, error) {
	var msgs []tg.MessageClass
	switch v := res.(type) {
	case *tg.MessagesChannelMessages:
		msgs = v.Messages
	case *tg.MessagesMessages:
		msgs = v.Messages
	case *tg.MessagesMessagesSlice:
		msgs = v.Messages
	}

	for _, m := range msgs {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		media, ok := msg.Media.(*tg.MessageMediaDocument)
		if !ok || media.Document == nil {
			return nil, ErrNoVideo
		}
		doc, ok := media.Document.AsNotEmpty()
		if !ok || !isVideoDocument(doc) {
			return nil, ErrNoVideo
		}
		return doc, nil
	}
	return nil, ErrPostNotFound
}

func isVideoDocument(doc *tg.Document) bool {
	if isVideoMime(doc.MimeType) {
		return true
	}
	for _, attr := range doc.Attributes {
		if _, ok := attr.(*tg.DocumentAttributeVideo); ok {
			return true
		}
	}
	return false
}

func documentFileName(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if fn, ok := attr.(*tg.DocumentAttributeFilename); ok {
			return fn.FileName
		}
	}
	return ""
}
