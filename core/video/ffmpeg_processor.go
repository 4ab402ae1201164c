package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"tgstream/logger"
)

// FFmpegProcessor implements the Processor interface using ffmpeg.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor. An empty ffprobePath is
// derived from ffmpegPath.
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffprobePath == "" {
		ffprobePath = strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// FFmpegPath returns the configured ffmpeg binary.
func (p *FFmpegProcessor) FFmpegPath() string {
	return p.ffmpegPath
}

// probeOutput is the subset of ffprobe JSON we read.
type probeOutput struct {
	Streams []struct {
		CodecName string `json:"codec_name"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *FFmpegProcessor) probe(ctx context.Context, inputFile string) (*probeOutput, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name:format=duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	var probeData probeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", inputFile, err)
	}
	return &probeData, nil
}

// GetDuration uses ffprobe to get the duration of a media file in seconds.
func (p *FFmpegProcessor) GetDuration(ctx context.Context, inputFile string) (float32, error) {
	probeData, err := p.probe(ctx, inputFile)
	if err != nil {
		return 0, err
	}
	return parseDuration(probeData.Format.Duration)
}

func parseDuration(s string) (float32, error) {
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("duration not found in ffprobe output")
	}
	duration, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration string %q: %w", s, err)
	}
	return float32(duration), nil
}

// ResolveVideoCodec picks the encoder. "auto" copies H.264 input and re-encodes
// anything else, an unknown probe result is re-encoded.
func ResolveVideoCodec(setting, probed string) string {
	switch setting {
	case "", "auto":
		if probed == "h264" {
			return "copy"
		}
		return "libx264"
	default:
		return setting
	}
}

// BuildHLSArgs returns the fixed ffmpeg argument set for a VOD HLS rendition.
func BuildHLSArgs(inputFile, outputDir, videoCodec string, opts HLSOptions) []string {
	args := []string{
		"-y",
		"-i", inputFile,
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c:v", videoCodec,
	}
	if videoCodec == "libx264" {
		args = append(args, "-preset", "veryfast", "-pix_fmt", "yuv420p")
	}
	args = append(args,
		"-c:a", "aac",
		"-b:a", opts.AudioBitrate,
		"-hls_time", opts.SegmentTime,
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(outputDir, SegmentPattern),
		"-f", "hls",
		filepath.Join(outputDir, PlaylistName),
	)
	return args
}

// ProcessToHLS transcodes a video file into outputDir as playlist.m3u8 plus
// numbered segments.
func (p *FFmpegProcessor) ProcessToHLS(ctx context.Context, inputFile, outputDir string, opts HLSOptions) (*HLSResult, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	var probed string
	var duration float32
	if probeData, err := p.probe(ctx, inputFile); err != nil {
		logger.Warn("Could not probe input, proceeding with defaults",
			logger.String("input", inputFile),
			logger.ErrorField(err))
	} else {
		if len(probeData.Streams) > 0 {
			probed = probeData.Streams[0].CodecName
		}
		if d, err := parseDuration(probeData.Format.Duration); err == nil {
			duration = d
		}
	}

	codec := ResolveVideoCodec(opts.VideoCodec, probed)
	args := BuildHLSArgs(inputFile, outputDir, codec, opts)

	logger.Info("Executing FFmpeg",
		logger.String("input", inputFile),
		logger.String("outputDir", outputDir),
		logger.String("sourceCodec", probed),
		logger.String("videoCodec", codec))
	logger.Debug("FFmpeg command", logger.String("cmd", p.ffmpegPath+" "+strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg execution failed for %s: %w\nFFmpeg Error: %s", inputFile, err, tail(stderr.String(), 2048))
	}

	info, err := VerifyOutput(outputDir)
	if err != nil {
		return nil, err
	}
	if duration == 0 {
		duration = float32(info.Duration)
	}

	logger.Info("Successfully transcoded to HLS",
		logger.String("input", inputFile),
		logger.Int("segments", len(info.Segments)),
		logger.Float64("duration", float64(duration)))

	return &HLSResult{
		PlaylistPath: filepath.Join(outputDir, PlaylistName),
		SegmentCount: len(info.Segments),
		Duration:     duration,
		VideoCodec:   codec,
	}, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
