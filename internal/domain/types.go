package domain

// TranscriptKind identifies whether a capture event is interim or final text.
type TranscriptKind string

const (
	TranscriptKindInterim TranscriptKind = "interim"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental recognition output from the capture
// primitive.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
}

// IsFinal reports whether the event completes an utterance.
func (e TranscriptEvent) IsFinal() bool {
	return e.Kind == TranscriptKindFinal
}

// CaptureErrorCode classifies capture primitive failures.
type CaptureErrorCode string

const (
	// CaptureErrPermissionDenied means microphone or provider access was
	// refused. The capture loop stops and waits for a human decision.
	CaptureErrPermissionDenied CaptureErrorCode = "permission_denied"
	// CaptureErrNoSpeech is a benign end-of-session with nothing heard.
	CaptureErrNoSpeech CaptureErrorCode = "no_speech"
	CaptureErrNetwork  CaptureErrorCode = "network"
	CaptureErrAborted  CaptureErrorCode = "aborted"
	// CaptureErrServiceUnavailable covers provider-side failures.
	CaptureErrServiceUnavailable CaptureErrorCode = "service_unavailable"
	// CaptureErrAudio covers local microphone/recorder faults.
	CaptureErrAudio CaptureErrorCode = "audio"
	CaptureErrOther CaptureErrorCode = "other"
)

// CaptureError is a classified capture fault.
type CaptureError struct {
	Code   CaptureErrorCode `json:"code"`
	Detail string           `json:"detail,omitempty"`
}

func (e CaptureError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Detail
}

// Fatal reports whether the capture loop must stop instead of restarting.
func (e CaptureError) Fatal() bool {
	return e.Code == CaptureErrPermissionDenied
}

// Benign reports whether the fault should be ignored entirely.
func (e CaptureError) Benign() bool {
	return e.Code == CaptureErrNoSpeech
}

// RoutePhase identifies which stage of the matching chain resolved a
// transcript.
type RoutePhase string

const (
	RoutePhasePaused     RoutePhase = "paused"
	RoutePhaseExact      RoutePhase = "exact"
	RoutePhaseClassifier RoutePhase = "classifier"
	RoutePhaseFallback   RoutePhase = "fallback"
	RoutePhaseNone       RoutePhase = "none"
)

// RouteOutcome summarizes one routing decision for diagnostics.
type RouteOutcome struct {
	Phase      RoutePhase `json:"phase"`
	CommandID  string     `json:"commandId,omitempty"`
	Transcript string     `json:"transcript"`
}

// Matched reports whether a command was invoked.
func (o RouteOutcome) Matched() bool {
	return o.CommandID != ""
}

// CommandInfo is the behavior-free view of a registered command handed to
// the classifier. It never carries the command's action.
type CommandInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Phrase      string `json:"phrase,omitempty"`
}

// EngineState is the externally observable engine state. It is mutated only
// by the engine and read-only to observers.
type EngineState struct {
	Listening      bool          `json:"listening"`
	Processing     bool          `json:"processing"`
	Paused         bool          `json:"paused"`
	Dictating      bool          `json:"dictating"`
	LastTranscript string        `json:"lastTranscript"`
	LastError      *CaptureError `json:"lastError,omitempty"`
	ActiveCommands []string      `json:"activeCommands"`
}
