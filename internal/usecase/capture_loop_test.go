package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hotmic/internal/domain"
)

type loopRecorder struct {
	mu     sync.Mutex
	events []domain.TranscriptEvent
	faults []domain.CaptureError
	fatals []domain.CaptureError
}

func (r *loopRecorder) onEvent(event domain.TranscriptEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *loopRecorder) onFault(fault domain.CaptureError) {
	r.mu.Lock()
	r.faults = append(r.faults, fault)
	r.mu.Unlock()
}

func (r *loopRecorder) onFatal(fault domain.CaptureError) {
	r.mu.Lock()
	r.fatals = append(r.fatals, fault)
	r.mu.Unlock()
}

func (r *loopRecorder) counts() (events, faults, fatals int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events), len(r.faults), len(r.fatals)
}

func TestCaptureLoopDeliversEventsInOrder(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	primitive := newFakePrimitive(startItem{session: session})
	rec := &loopRecorder{}

	loop := startCaptureLoop(context.Background(), primitive, time.Millisecond, rec.onEvent, rec.onFault, rec.onFatal)
	defer loop.stop()

	<-primitive.started
	session.emitInterim("hel")
	session.emitFinal("hello")
	session.end(nil)

	deadline := time.After(waitTimeout)
	for {
		events, _, _ := rec.counts()
		if events >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("events never delivered")
		case <-time.After(time.Millisecond):
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.events[0].Text != "hel" || rec.events[1].Text != "hello" {
		t.Fatalf("expected capture order, got %+v", rec.events)
	}
}

func TestCaptureLoopRestartsAfterCleanEnd(t *testing.T) {
	t.Parallel()

	first := newFakeSession()
	primitive := newFakePrimitive(startItem{session: first})
	rec := &loopRecorder{}

	loop := startCaptureLoop(context.Background(), primitive, time.Millisecond, rec.onEvent, rec.onFault, rec.onFatal)
	defer loop.stop()

	<-primitive.started
	first.end(nil)

	select {
	case <-primitive.started:
	case <-time.After(waitTimeout):
		t.Fatalf("loop never restarted after clean session end")
	}
	if _, faults, fatals := rec.counts(); faults != 0 || fatals != 0 {
		t.Fatalf("clean end must not report faults")
	}
}

func TestCaptureLoopRetriesFailedStarts(t *testing.T) {
	t.Parallel()

	primitive := newFakePrimitive(
		startItem{err: domain.CaptureError{Code: domain.CaptureErrNetwork, Detail: "offline"}},
		startItem{err: domain.CaptureError{Code: domain.CaptureErrServiceUnavailable, Detail: "down"}},
	)
	rec := &loopRecorder{}

	loop := startCaptureLoop(context.Background(), primitive, time.Millisecond, rec.onEvent, rec.onFault, rec.onFatal)
	defer loop.stop()

	select {
	case <-primitive.started:
	case <-time.After(waitTimeout):
		t.Fatalf("loop never recovered from failed starts")
	}

	_, faults, fatals := rec.counts()
	if faults != 2 || fatals != 0 {
		t.Fatalf("expected two recoverable faults, got faults=%d fatals=%d", faults, fatals)
	}
}

func TestCaptureLoopSwallowsAlreadyRunningStart(t *testing.T) {
	t.Parallel()

	primitive := newFakePrimitive(
		startItem{err: errors.New("recognition has already started")},
	)
	rec := &loopRecorder{}

	loop := startCaptureLoop(context.Background(), primitive, time.Millisecond, rec.onEvent, rec.onFault, rec.onFatal)
	defer loop.stop()

	// The retry still happens, without any diagnostic.
	select {
	case <-primitive.started:
	case <-time.After(waitTimeout):
		t.Fatalf("loop never retried after an already-running start failure")
	}
	if _, faults, fatals := rec.counts(); faults != 0 || fatals != 0 {
		t.Fatalf("unclassified start failures must retry silently, got faults=%d fatals=%d", faults, fatals)
	}
}

func TestCaptureLoopStopsOnFatalStartError(t *testing.T) {
	t.Parallel()

	primitive := newFakePrimitive(
		startItem{err: domain.CaptureError{Code: domain.CaptureErrPermissionDenied, Detail: "denied"}},
	)
	rec := &loopRecorder{}

	loop := startCaptureLoop(context.Background(), primitive, time.Millisecond, rec.onEvent, rec.onFault, rec.onFatal)

	deadline := time.After(waitTimeout)
	for {
		if _, _, fatals := rec.counts(); fatals == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("fatal start error never reported")
		case <-time.After(time.Millisecond):
		}
	}

	loop.stop()
	time.Sleep(10 * time.Millisecond)
	if primitive.startCount() != 1 {
		t.Fatalf("fatal fault must stop retries, got %d starts", primitive.startCount())
	}
}

func TestCaptureLoopStopCancelsPendingRetry(t *testing.T) {
	t.Parallel()

	first := newFakeSession()
	primitive := newFakePrimitive(startItem{session: first})
	rec := &loopRecorder{}

	// Long backoff: the fault leaves the loop parked in its retry timer.
	loop := startCaptureLoop(context.Background(), primitive, 10*time.Second, rec.onEvent, rec.onFault, rec.onFatal)

	<-primitive.started
	first.end(domain.CaptureError{Code: domain.CaptureErrNetwork, Detail: "reset"})

	deadline := time.After(waitTimeout)
	for {
		if _, faults, _ := rec.counts(); faults == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("fault never recorded")
		case <-time.After(time.Millisecond):
		}
	}

	done := make(chan struct{})
	go func() {
		loop.stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatalf("stop must cancel the pending retry timer promptly")
	}
	if primitive.startCount() != 1 {
		t.Fatalf("canceled retry must not restart, got %d starts", primitive.startCount())
	}
}

func TestCaptureLoopClassifiesUnknownErrors(t *testing.T) {
	t.Parallel()

	fault := asCaptureError(errors.New("boom"))
	if fault.Code != domain.CaptureErrOther || fault.Detail != "boom" {
		t.Fatalf("unexpected classification: %+v", fault)
	}

	wrapped := asCaptureError(domain.CaptureError{Code: domain.CaptureErrAborted})
	if wrapped.Code != domain.CaptureErrAborted {
		t.Fatalf("classified errors must pass through, got %+v", wrapped)
	}
}
