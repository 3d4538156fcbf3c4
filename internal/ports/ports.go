package ports

import (
	"context"
	"io"

	"hotmic/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live microphone capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// CaptureSession is one run of the speech-to-text primitive. Results carries
// interim and final transcript events until the session ends; Done is closed
// when no further events will be delivered; Err then reports the classified
// cause, or nil for a clean stop.
type CaptureSession interface {
	Results() <-chan domain.TranscriptEvent
	Done() <-chan struct{}
	Err() error
	Stop() error
}

// CapturePrimitive starts continuous speech-to-text sessions. The capture
// loop owns restart policy; a primitive only runs until it fails or is
// stopped.
type CapturePrimitive interface {
	Start(ctx context.Context) (CaptureSession, error)
}

// Classifier matches a normalized transcript against command metadata and
// returns the matched identifier, or "" for a legitimate no-match. It must
// never receive command behaviors.
type Classifier interface {
	Classify(ctx context.Context, transcript string, commands []domain.CommandInfo) (string, error)
}

// Transformer rewrites dictated text before it is delivered to the caller.
type Transformer interface {
	Apply(text string) (string, error)
}

// EventSink emits engine state and diagnostics to the UI.
type EventSink interface {
	EngineStateChanged(state domain.EngineState)
	InterimTranscript(text string)
	FinalTranscript(text string)
	CommandMatched(outcome domain.RouteOutcome)
	DictationText(text string, final bool)
	CaptureFault(fault domain.CaptureError)
}
