package video

import "context"

// HLSOptions are the encoder settings for one transcode.
type HLSOptions struct {
	VideoCodec   string // "auto", "copy" or an ffmpeg encoder
	AudioBitrate string
	SegmentTime  string
}

// HLSResult describes the produced output.
type HLSResult struct {
	PlaylistPath string
	SegmentCount int
	Duration     float32
	VideoCodec   string // encoder actually used
}

// Processor defines an interface for video processing operations.
type Processor interface {
	ProcessToHLS(ctx context.Context, inputFile, outputDir string, opts HLSOptions) (*HLSResult, error)
	GetDuration(ctx context.Context, inputFile string) (float32, error)
}

// Output file names inside a job's HLS directory.
const (
	PlaylistName   = "playlist.m3u8"
	SegmentPattern = "segment_%03d.ts"
)
