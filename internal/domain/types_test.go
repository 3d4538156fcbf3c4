package domain

import "testing"

func TestCaptureErrorClassification(t *testing.T) {
	t.Parallel()

	denied := CaptureError{Code: CaptureErrPermissionDenied}
	if !denied.Fatal() || denied.Benign() {
		t.Fatalf("permission denied must be fatal and not benign")
	}

	silence := CaptureError{Code: CaptureErrNoSpeech}
	if silence.Fatal() || !silence.Benign() {
		t.Fatalf("no-speech must be benign and not fatal")
	}

	for _, code := range []CaptureErrorCode{CaptureErrNetwork, CaptureErrAborted, CaptureErrServiceUnavailable, CaptureErrAudio, CaptureErrOther} {
		fault := CaptureError{Code: code}
		if fault.Fatal() || fault.Benign() {
			t.Fatalf("%s must be recoverable", code)
		}
	}
}

func TestCaptureErrorMessage(t *testing.T) {
	t.Parallel()

	if got := (CaptureError{Code: CaptureErrNetwork}).Error(); got != "network" {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := (CaptureError{Code: CaptureErrNetwork, Detail: "dial refused"}).Error(); got != "network: dial refused" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestTranscriptEventIsFinal(t *testing.T) {
	t.Parallel()

	if (TranscriptEvent{Kind: TranscriptKindInterim, Text: "go"}).IsFinal() {
		t.Fatalf("interim events are not final")
	}
	if !(TranscriptEvent{Kind: TranscriptKindFinal, Text: "go home"}).IsFinal() {
		t.Fatalf("final events must report final")
	}
}

func TestRouteOutcomeMatched(t *testing.T) {
	t.Parallel()

	if (RouteOutcome{Phase: RoutePhaseNone}).Matched() {
		t.Fatalf("no-match outcomes must not report a match")
	}
	if !(RouteOutcome{Phase: RoutePhaseExact, CommandID: "go_home"}).Matched() {
		t.Fatalf("matched outcomes must report a match")
	}
}
