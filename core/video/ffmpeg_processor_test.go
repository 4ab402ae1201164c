package video

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestResolveVideoCodec(t *testing.T) {
	cases := []struct {
		setting, probed, want string
	}{
		{"auto", "h264", "copy"},
		{"auto", "hevc", "libx264"},
		{"", "", "libx264"},
		{"copy", "vp9", "copy"},
		{"libx265", "h264", "libx265"},
	}
	for _, tc := range cases {
		if got := ResolveVideoCodec(tc.setting, tc.probed); got != tc.want {
			t.Errorf("ResolveVideoCodec(%q, %q) = %q, want %q", tc.setting, tc.probed, got, tc.want)
		}
	}
}

func TestBuildHLSArgs(t *testing.T) {
	opts := HLSOptions{AudioBitrate: "128k", SegmentTime: "6"}

	args := BuildHLSArgs("in.mp4", "out", "copy", opts)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-i in.mp4",
		"-c:v copy",
		"-c:a aac",
		"-b:a 128k",
		"-hls_time 6",
		"-hls_playlist_type vod",
		"-hls_segment_filename " + filepath.Join("out", "segment_%03d.ts"),
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected args to contain %q, got %s", want, joined)
		}
	}
	if args[len(args)-1] != filepath.Join("out", "playlist.m3u8") {
		t.Errorf("Expected playlist as last argument, got %s", args[len(args)-1])
	}
	if strings.Contains(joined, "-preset") {
		t.Error("Expected no preset when copying")
	}

	encoded := strings.Join(BuildHLSArgs("in.mp4", "out", "libx264", opts), " ")
	if !strings.Contains(encoded, "-preset veryfast") {
		t.Errorf("Expected preset for libx264, got %s", encoded)
	}
}

func TestParseDuration(t *testing.T) {
	if d, err := parseDuration("12.5"); err != nil || d != 12.5 {
		t.Errorf("Expected 12.5, got %v (%v)", d, err)
	}
	for _, bad := range []string{"", "N/A", "abc"} {
		if _, err := parseDuration(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

// writeScript installs an executable shell script used in place of ffmpeg/ffprobe.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProcessToHLSWithFakeBinaries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	bin := t.TempDir()
	ffprobe := writeScript(t, bin, "ffprobe", `echo '{"streams":[{"codec_name":"h264"}],"format":{"duration":"9.5"}}'`)
	ffmpeg := writeScript(t, bin, "ffmpeg", `for last; do :; done
dir=$(dirname "$last")
printf 'ts' > "$dir/segment_000.ts"
printf 'ts' > "$dir/segment_001.ts"
cat > "$last" <<EOF
#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-PLAYLIST-TYPE:VOD
#EXTINF:6.000000,
segment_000.ts
#EXTINF:3.500000,
segment_001.ts
#EXT-X-ENDLIST
EOF
`)

	p := NewFFmpegProcessor(ffmpeg, ffprobe)
	out := filepath.Join(t.TempDir(), "hls")

	res, err := p.ProcessToHLS(context.Background(), "input.mp4", out, HLSOptions{
		VideoCodec:   "auto",
		AudioBitrate: "128k",
		SegmentTime:  "6",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.SegmentCount != 2 {
		t.Errorf("Expected 2 segments, got %d", res.SegmentCount)
	}
	if res.Duration != 9.5 {
		t.Errorf("Expected probed duration 9.5, got %v", res.Duration)
	}
	if res.VideoCodec != "copy" {
		t.Errorf("Expected h264 input to be copied, got %s", res.VideoCodec)
	}

	d, err := p.GetDuration(context.Background(), "input.mp4")
	if err != nil || d != 9.5 {
		t.Errorf("Expected duration 9.5, got %v (%v)", d, err)
	}
}

func TestProcessToHLSFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	bin := t.TempDir()
	ffmpeg := writeScript(t, bin, "ffmpeg", "echo 'Invalid data found when processing input' >&2\nexit 1\n")
	ffprobe := writeScript(t, bin, "ffprobe", "exit 1\n")

	p := NewFFmpegProcessor(ffmpeg, ffprobe)
	_, err := p.ProcessToHLS(context.Background(), "broken.mp4", t.TempDir(), HLSOptions{AudioBitrate: "128k", SegmentTime: "6"})
	if err == nil {
		t.Fatal("Expected error from failing ffmpeg")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("Expected stderr in error, got %v", err)
	}
}
