package job

import (
	"context"
	"errors"

	"tgstream/core/telegram"
	"tgstream/core/utils"
)

// User-facing status messages.
const (
	MsgReady          = "✅ Video ready to stream! (Works best for public channel video posts)"
	MsgProcessing     = "Processing started. The stream will be available shortly."
	MsgNoVideo        = "This post does not contain a video."
	MsgNotFound       = "Post not found or not accessible."
	MsgUnauthorized   = "Telegram session is not authorized. Log in before downloading."
	MsgTooLarge       = "The video is larger than the download limit."
	MsgTimeout        = "Processing timed out."
	MsgNoTargetChat   = "A target chat is required to download through a bot."
	MsgNeedsDownload  = "Private posts cannot be embedded. Provide a bot token or configure a user session."
	MsgDownloadFailed = "Could not download the video from Telegram."
	MsgConvertFailed  = "Video conversion failed."
	MsgInternal       = "Something went wrong while preparing the stream."
)

// stage tells userMessage which step failed.
type stage int

const (
	stageSetup stage = iota
	stageFetch
	stageConvert
)

// stageError tags an error with the step that produced it.
type stageError struct {
	stage stage
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func atStage(s stage, err error) error {
	if err == nil {
		return nil
	}
	return &stageError{stage: s, err: err}
}

// userMessage turns a pipeline error into the message shown to the user.
func userMessage(err error) string {
	switch {
	case errors.Is(err, telegram.ErrNoVideo):
		return MsgNoVideo
	case errors.Is(err, telegram.ErrPostNotFound):
		return MsgNotFound
	case errors.Is(err, telegram.ErrSessionUnauthorized):
		return MsgUnauthorized
	case errors.Is(err, utils.ErrTooLarge):
		return MsgTooLarge
	case errors.Is(err, errNoTargetChat):
		return MsgNoTargetChat
	case errors.Is(err, context.DeadlineExceeded):
		return MsgTimeout
	}

	var se *stageError
	if errors.As(err, &se) {
		switch se.stage {
		case stageFetch:
			return MsgDownloadFailed
		case stageConvert:
			return MsgConvertFailed
		}
	}
	return MsgInternal
}
