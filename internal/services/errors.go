package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidVideo marks a missing, unreadable, or non-video input. Fatal.
	ErrInvalidVideo = errors.New("invalid video")
	// ErrNoScenes marks a detection pass that produced no scenes. Fatal.
	ErrNoScenes = errors.New("no scenes detected")
	// ErrFrameNotFound marks a seek that yielded no frame. The scene is dropped.
	ErrFrameNotFound = errors.New("frame not found")
	// ErrExternalTool marks an ffmpeg/ffprobe invocation failure.
	ErrExternalTool = errors.New("external tool error")
	// ErrPersistence marks a keyframe, report, or ledger write failure.
	ErrPersistence = errors.New("persistence error")
	// ErrConfiguration marks invalid runtime settings handed to a component.
	ErrConfiguration = errors.New("configuration error")
	// ErrBusy marks a video that another run currently holds the lock for.
	ErrBusy = errors.New("video busy")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Outcome labels recorded in the run history.
const (
	OutcomeSucceeded    = "succeeded"
	OutcomeInvalidVideo = "invalid_video"
	OutcomeNoScenes     = "no_scenes"
	OutcomeToolFailure  = "tool_failure"
	OutcomeWriteFailure = "write_failure"
	OutcomeBusy         = "busy"
	OutcomeCanceled     = "canceled"
	OutcomeFailed       = "failed"
)

// FailureOutcome maps a pipeline error to the outcome label persisted in the
// run history.
func FailureOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSucceeded
	case errors.Is(err, ErrInvalidVideo):
		return OutcomeInvalidVideo
	case errors.Is(err, ErrNoScenes):
		return OutcomeNoScenes
	case errors.Is(err, ErrBusy):
		return OutcomeBusy
	case errors.Is(err, ErrPersistence):
		return OutcomeWriteFailure
	case errors.Is(err, ErrExternalTool):
		return OutcomeToolFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeFailed
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
