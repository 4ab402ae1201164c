package storage

import (
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("abc", "playlist.m3u8"); got != "streams/abc/playlist.m3u8" {
		t.Errorf("Unexpected key %s", got)
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"playlist.m3u8":  "application/vnd.apple.mpegurl",
		"segment_000.ts": "video/mp2t",
		"blob":           "application/octet-stream",
	}
	for in, want := range cases {
		if got := ContentType(in); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range cases {
		if got := FormatSize(in); got != want {
			t.Errorf("FormatSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestStatsAndGrouping(t *testing.T) {
	now := time.Now()
	objects := []ObjectInfo{
		{Key: "streams/a/playlist.m3u8", Size: 10, LastModified: now.Add(-time.Hour)},
		{Key: "streams/a/segment_000.ts", Size: 100, LastModified: now},
		{Key: "streams/b/segment_000.ts", Size: 50, LastModified: now.Add(-2 * time.Hour)},
		{Key: "misc.txt", Size: 1},
	}

	stats := &BucketStats{}
	for _, obj := range objects {
		stats.Add(obj)
	}
	if stats.TotalObjects != 4 || stats.TotalSize != 161 || !stats.LastModified.Equal(now) {
		t.Errorf("Unexpected stats %+v", stats)
	}

	usage := GroupByJob(objects)
	if usage["a"] != 110 || usage["b"] != 50 || usage["other"] != 1 {
		t.Errorf("Unexpected usage %v", usage)
	}
}
