package job

import (
	"errors"
	"fmt"
	"sync"

	"tgstream/config"
	"tgstream/core/telegram"
	"tgstream/model"
)

var errNoTargetChat = errors.New("no target chat configured for bot downloads")

// FetcherFactory returns the fetcher for a job's mode. Bot credentials given
// with the request take precedence over configured ones.
type FetcherFactory func(mode model.JobMode, req Request) (telegram.Fetcher, error)

// NewFetcherFactory builds fetchers from cfg. The fetcher for the configured
// bot and chat is kept so getMe runs once; credentials supplied with a
// request get a fresh fetcher each time.
func NewFetcherFactory(cfg *config.Config) FetcherFactory {
	var (
		mu      sync.Mutex
		shared  *telegram.BotFetcher
		session *telegram.SessionFetcher
	)

	return func(mode model.JobMode, req Request) (telegram.Fetcher, error) {
		switch mode {
		case model.ModeBot:
			token, chat := req.BotToken, req.TargetChat
			if token == "" {
				token = cfg.BotToken
			}
			if chat == "" {
				chat = cfg.TargetChat
			}
			if chat == "" {
				return nil, errNoTargetChat
			}

			opts := telegram.BotOptions{
				Token:        token,
				TargetChat:   chat,
				APIEndpoint:  cfg.BotAPIEndpoint,
				FileEndpoint: cfg.BotFileEndpoint,
				MaxBytes:     cfg.MaxDownloadBytes(),
			}
			if token != cfg.BotToken || chat != cfg.TargetChat {
				f, err := telegram.NewBotFetcher(opts)
				if err != nil {
					return nil, err
				}
				return f, nil
			}

			mu.Lock()
			defer mu.Unlock()
			if shared == nil {
				f, err := telegram.NewBotFetcher(opts)
				if err != nil {
					return nil, err
				}
				shared = f
			}
			return shared, nil

		case model.ModeSession:
			mu.Lock()
			defer mu.Unlock()
			if session == nil {
				f, err := telegram.NewSessionFetcher(telegram.SessionOptions{
					AppID:       cfg.TelegramAppID,
					AppHash:     cfg.TelegramAppHash,
					SessionPath: cfg.SessionPath,
					MaxBytes:    cfg.MaxDownloadBytes(),
				})
				if err != nil {
					return nil, err
				}
				session = f
			}
			return session, nil
		}
		return nil, fmt.Errorf("no fetcher for mode %q", mode)
	}
}
