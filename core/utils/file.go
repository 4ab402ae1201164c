package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

// ErrTooLarge is returned when a download exceeds its size cap.
var ErrTooLarge = errors.New("file exceeds the download size limit")

// DownloadFile streams url into path. A maxBytes of zero disables the size cap.
// A partially written file is removed on failure.
func DownloadFile(ctx context.Context, client *http.Client, url, path string, maxBytes int64) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return 0, ErrTooLarge
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	return writeFile(path, body, maxBytes)
}

// CopyFile copies src to dst, used when the Bot API server shares our file system.
func CopyFile(src, dst string, maxBytes int64) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()

	var body io.Reader = in
	if maxBytes > 0 {
		body = io.LimitReader(in, maxBytes+1)
	}
	return writeFile(dst, body, maxBytes)
}

func writeFile(path string, r io.Reader, maxBytes int64) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && maxBytes > 0 && n > maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return 0, err
		}
		return 0, fmt.Errorf("save file: %w", err)
	}
	return n, nil
}
