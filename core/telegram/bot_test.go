package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tgstream/core/link"
)

const testToken = "123:abc"

// fakeBotAPI mimics the handful of Bot API methods the fetcher calls.
type fakeBotAPI struct {
	mu        sync.Mutex
	message   string // JSON returned by forwardMessage
	filePath  string // file_path returned by getFile
	forwarded url.Values
	deleted   int
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/") {
		w.Write([]byte("video-bytes"))
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/bot"+testToken+"/") {
		http.NotFound(w, r)
		return
	}
	r.ParseForm()

	w.Header().Set("Content-Type", "application/json")
	switch path.Base(r.URL.Path) {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Fetcher","username":"fetcher_bot"}}`)
	case "forwardMessage":
		f.forwarded = r.PostForm
		fmt.Fprintf(w, `{"ok":true,"result":%s}`, f.message)
	case "getFile":
		fmt.Fprintf(w, `{"ok":true,"result":{"file_id":"vid1","file_unique_id":"u1","file_size":11,"file_path":%q}}`, f.filePath)
	case "deleteMessage":
		f.deleted++
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	default:
		fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

const videoMessage = `{"message_id":77,"date":1700000000,"chat":{"id":-1009,"type":"channel"},
"video":{"file_id":"vid1","file_unique_id":"u1","width":640,"height":360,"duration":3,"file_name":"clip.mp4","mime_type":"video/mp4","file_size":11}}`

func newTestFetcher(t *testing.T, api *fakeBotAPI) *BotFetcher {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	f, err := NewBotFetcher(BotOptions{
		Token:        testToken,
		TargetChat:   "-100555",
		APIEndpoint:  srv.URL + "/bot%s/%s",
		FileEndpoint: srv.URL + "/file/bot%s/%s",
		HTTPClient:   srv.Client(),
		MaxBytes:     1 << 20,
	})
	if err != nil {
		t.Fatalf("Expected fetcher, got %v", err)
	}
	return f
}

func TestBotFetcherDownloadsVideo(t *testing.T) {
	api := &fakeBotAPI{message: videoMessage, filePath: "videos/file_1.mp4"}
	f := newTestFetcher(t, api)

	if f.BotUsername() != "fetcher_bot" {
		t.Errorf("Expected bot username from getMe, got %s", f.BotUsername())
	}

	post, _ := link.Parse("https://t.me/somechannel/15")
	dir := t.TempDir()

	media, err := f.Fetch(context.Background(), post, dir)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := api.forwarded.Get("from_chat_id"); got != "@somechannel" {
		t.Errorf("Expected forward from @somechannel, got %s", got)
	}
	if got := api.forwarded.Get("chat_id"); got != "-100555" {
		t.Errorf("Expected forward into -100555, got %s", got)
	}
	if got := api.forwarded.Get("message_id"); got != "15" {
		t.Errorf("Expected message 15, got %s", got)
	}
	if api.deleted != 1 {
		t.Errorf("Expected forwarded copy to be deleted once, got %d", api.deleted)
	}

	if media.Path != filepath.Join(dir, "source.mp4") {
		t.Errorf("Unexpected media path %s", media.Path)
	}
	if media.FileName != "clip.mp4" || media.Size != 11 {
		t.Errorf("Unexpected media %+v", media)
	}
	data, _ := os.ReadFile(media.Path)
	if string(data) != "video-bytes" {
		t.Errorf("Unexpected content %q", data)
	}
}

func TestBotFetcherPrivatePost(t *testing.T) {
	api := &fakeBotAPI{message: videoMessage, filePath: "videos/file_1.mp4"}
	f := newTestFetcher(t, api)

	post, _ := link.Parse("https://t.me/c/987654/3")
	if _, err := f.Fetch(context.Background(), post, t.TempDir()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := api.forwarded.Get("from_chat_id"); got != "-100987654" {
		t.Errorf("Expected numeric source chat, got %s", got)
	}
}

func TestBotFetcherNoVideo(t *testing.T) {
	api := &fakeBotAPI{message: `{"message_id":78,"date":1700000000,"chat":{"id":-1009,"type":"channel"},"text":"hello"}`}
	f := newTestFetcher(t, api)

	post, _ := link.Parse("https://t.me/somechannel/16")
	_, err := f.Fetch(context.Background(), post, t.TempDir())
	if !errors.Is(err, ErrNoVideo) {
		t.Fatalf("Expected ErrNoVideo, got %v", err)
	}
	if api.deleted != 1 {
		t.Errorf("Expected forwarded copy to be deleted, got %d", api.deleted)
	}
}

func TestBotFetcherLocalServerPath(t *testing.T) {
	local := filepath.Join(t.TempDir(), "file_9.mp4")
	if err := os.WriteFile(local, []byte("local-bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	api := &fakeBotAPI{message: videoMessage, filePath: local}
	f := newTestFetcher(t, api)

	post, _ := link.Parse("https://t.me/somechannel/17")
	media, err := f.Fetch(context.Background(), post, t.TempDir())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	data, _ := os.ReadFile(media.Path)
	if string(data) != "local-bytes" {
		t.Errorf("Expected local file to be copied, got %q", data)
	}
}

func TestNewBotFetcherValidation(t *testing.T) {
	if _, err := NewBotFetcher(BotOptions{TargetChat: "@x"}); err == nil {
		t.Error("Expected error without token")
	}
	if _, err := NewBotFetcher(BotOptions{Token: testToken}); err == nil {
		t.Error("Expected error without target chat")
	}
}

func TestParseTargetChat(t *testing.T) {
	chat, err := parseTargetChat("-100123")
	if err != nil || chat.ChatID != -100123 {
		t.Errorf("Expected numeric chat, got %+v (%v)", chat, err)
	}
	chat, err = parseTargetChat("mychannel")
	if err != nil || chat.ChannelUsername != "@mychannel" {
		t.Errorf("Expected @mychannel, got %+v (%v)", chat, err)
	}
	if _, err := parseTargetChat("@"); err == nil {
		t.Error("Expected error for bare @")
	}
}

func TestSourceFileName(t *testing.T) {
	cases := map[[2]string]string{
		{"clip.MP4", "video/mp4"}:      "source.mp4",
		{"", "video/webm"}:             "source.webm",
		{"weird.n@me", "video/mp4"}:    "source.mp4",
		{"movie.mkv", "application/x"}: "source.mkv",
	}
	for in, want := range cases {
		if got := sourceFileName(in[0], in[1]); got != want {
			t.Errorf("sourceFileName(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}
