package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tgstream/core/link"
	"tgstream/core/utils"
	"tgstream/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotOptions configure a BotFetcher.
type BotOptions struct {
	Token        string
	TargetChat   string // numeric chat id or @username the bot may post to
	APIEndpoint  string // e.g. https://api.telegram.org/bot%s/%s
	FileEndpoint string // e.g. https://api.telegram.org/file/bot%s/%s
	HTTPClient   *http.Client
	MaxBytes     int64
}

// BotFetcher resolves posts by forwarding them into a bot-controlled chat and
// downloading the attachment through getFile.
type BotFetcher struct {
	api          *tgbotapi.BotAPI
	target       tgbotapi.BaseChat
	fileEndpoint string
	httpClient   *http.Client
	maxBytes     int64
}

// NewBotFetcher authenticates the token with getMe and prepares the fetcher.
func NewBotFetcher(opts BotOptions) (*BotFetcher, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if opts.TargetChat == "" {
		return nil, fmt.Errorf("target chat is required for bot downloads")
	}
	if opts.APIEndpoint == "" {
		opts.APIEndpoint = tgbotapi.APIEndpoint
	}
	if opts.FileEndpoint == "" {
		opts.FileEndpoint = tgbotapi.FileEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	target, err := parseTargetChat(opts.TargetChat)
	if err != nil {
		return nil, err
	}

	api, err := tgbotapi.NewBotAPIWithClient(opts.Token, opts.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("bot authorization failed: %w", err)
	}

	return &BotFetcher{
		api:          api,
		target:       target,
		fileEndpoint: opts.FileEndpoint,
		// downloads can be large, only the request context bounds them
		httpClient: &http.Client{Transport: opts.HTTPClient.Transport},
		maxBytes:   opts.MaxBytes,
	}, nil
}

func parseTargetChat(s string) (tgbotapi.BaseChat, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return tgbotapi.BaseChat{ChatID: id}, nil
	}
	if !strings.HasPrefix(s, "@") {
		s = "@" + s
	}
	if len(s) < 2 {
		return tgbotapi.BaseChat{}, fmt.Errorf("invalid target chat %q", s)
	}
	return tgbotapi.BaseChat{ChannelUsername: s}, nil
}

// BotUsername is the authenticated bot's username.
func (f *BotFetcher) BotUsername() string {
	return f.api.Self.UserName
}

// Fetch implements Fetcher.
func (f *BotFetcher) Fetch(ctx context.Context, post *link.Post, destDir string) (*Media, error) {
	msg, err := f.forward(post)
	if err != nil {
		return nil, err
	}
	defer f.deleteForwarded(msg)

	fileID, name, mimeType := videoAttachment(&msg)
	if fileID == "" {
		return nil, ErrNoVideo
	}

	file, err := f.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("getFile: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("getFile returned no path for %s", fileID)
	}

	if name == "" {
		name = filepath.Base(file.FilePath)
	}
	dest := filepath.Join(destDir, sourceFileName(name, mimeType))

	var size int64
	if isLocalFile(file.FilePath) {
		// local Bot API server: the file already sits on our disk
		logger.Info("Copying file from local Bot API storage", logger.String("path", file.FilePath))
		size, err = utils.CopyFile(file.FilePath, dest, f.maxBytes)
	} else {
		size, err = utils.DownloadFile(ctx, f.httpClient, f.fileURL(file.FilePath), dest, f.maxBytes)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Downloaded post media via bot",
		logger.String("post", post.String()),
		logger.String("file", dest),
		logger.Int64("size", size))

	return &Media{Path: dest, FileName: name, MimeType: mimeType, Size: size}, nil
}

// forward copies the post into the target chat. ForwardConfig only sends a
// numeric from_chat_id, public channels need their @username.
func (f *BotFetcher) forward(post *link.Post) (tgbotapi.Message, error) {
	var msg tgbotapi.Message

	params := tgbotapi.Params{}
	if err := params.AddFirstValid("chat_id", f.target.ChatID, f.target.ChannelUsername); err != nil {
		return msg, err
	}
	params["from_chat_id"] = post.FromChat()
	params.AddNonZero("message_id", post.PostID)

	resp, err := f.api.MakeRequest("forwardMessage", params)
	if err != nil {
		return msg, fmt.Errorf("forward %s: %w", post, err)
	}
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return msg, fmt.Errorf("decode forwarded message: %w", err)
	}
	return msg, nil
}

func isLocalFile(p string) bool {
	if !filepath.IsAbs(p) {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func (f *BotFetcher) fileURL(filePath string) string {
	return fmt.Sprintf(f.fileEndpoint, f.api.Token, strings.TrimPrefix(filePath, "/"))
}

func (f *BotFetcher) deleteForwarded(msg tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	if _, err := f.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		logger.Warn("Failed to delete forwarded message",
			logger.Int64("chatId", msg.Chat.ID),
			logger.Int("messageId", msg.MessageID),
			logger.ErrorField(err))
	}
}

// videoAttachment picks the first video-like attachment of msg.
func videoAttachment(msg *tgbotapi.Message) (fileID, name, mimeType string) {
	switch {
	case msg.Video != nil:
		return msg.Video.FileID, msg.Video.FileName, msg.Video.MimeType
	case msg.Animation != nil:
		return msg.Animation.FileID, msg.Animation.FileName, msg.Animation.MimeType
	case msg.VideoNote != nil:
		return msg.VideoNote.FileID, "", "video/mp4"
	case msg.Document != nil && isVideoMime(msg.Document.MimeType):
		return msg.Document.FileID, msg.Document.FileName, msg.Document.MimeType
	}
	return "", "", ""
}
