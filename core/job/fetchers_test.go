package job

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tgstream/config"
	"tgstream/model"
)

// getMeServer answers getMe for any token and counts the calls per token.
type getMeServer struct {
	mu    sync.Mutex
	calls map[string]int
}

func (s *getMeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/bot"), "/")
	s.mu.Lock()
	s.calls[parts[0]]++
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Fetcher","username":"fetcher_bot"}}`)
}

func (s *getMeServer) count(token string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[token]
}

func newFactoryEnv(t *testing.T) (FetcherFactory, *getMeServer) {
	t.Helper()
	api := &getMeServer{calls: make(map[string]int)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		BotToken:        "1:configured",
		TargetChat:      "-100555",
		BotAPIEndpoint:  srv.URL + "/bot%s/%s",
		BotFileEndpoint: srv.URL + "/file/bot%s/%s",
	}
	return NewFetcherFactory(cfg), api
}

func TestFetcherFactoryKeepsConfiguredBot(t *testing.T) {
	factory, api := newFactoryEnv(t)

	first, err := factory(model.ModeBot, Request{})
	if err != nil {
		t.Fatalf("Expected fetcher, got %v", err)
	}
	second, err := factory(model.ModeBot, Request{BotToken: "1:configured"})
	if err != nil {
		t.Fatalf("Expected fetcher, got %v", err)
	}
	if first != second {
		t.Error("Expected the configured bot's fetcher to be reused")
	}
	if n := api.count("1:configured"); n != 1 {
		t.Errorf("Expected one getMe for the configured bot, got %d", n)
	}
}

func TestFetcherFactoryDoesNotKeepRequestCredentials(t *testing.T) {
	factory, api := newFactoryEnv(t)

	first, err := factory(model.ModeBot, Request{BotToken: "2:user"})
	if err != nil {
		t.Fatalf("Expected fetcher, got %v", err)
	}
	second, err := factory(model.ModeBot, Request{BotToken: "2:user"})
	if err != nil {
		t.Fatalf("Expected fetcher, got %v", err)
	}
	if first == second {
		t.Error("Expected request credentials to get a fresh fetcher")
	}
	if n := api.count("2:user"); n != 2 {
		t.Errorf("Expected getMe per request, got %d", n)
	}

	if _, err := factory(model.ModeBot, Request{TargetChat: "@elsewhere"}); err != nil {
		t.Fatalf("Expected fetcher for another chat, got %v", err)
	}
	if _, err := factory(model.ModeBot, Request{}); err != nil {
		t.Fatal(err)
	}
	if n := api.count("1:configured"); n != 2 {
		t.Errorf("Expected the overridden chat not to replace the shared fetcher, got %d getMe calls", n)
	}
}

func TestFetcherFactoryErrors(t *testing.T) {
	factory := NewFetcherFactory(&config.Config{})

	if _, err := factory(model.ModeBot, Request{BotToken: "3:x"}); !errors.Is(err, errNoTargetChat) {
		t.Errorf("Expected missing target chat error, got %v", err)
	}
	if _, err := factory(model.ModeEmbed, Request{}); err == nil {
		t.Error("Expected no fetcher for embed mode")
	}
}
