package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"hotmic/internal/domain"
	"hotmic/internal/ports"
	"hotmic/internal/util"
)

// captureLoop keeps a capture primitive alive for as long as capture is
// intended. Sessions that end while the loop is still running are
// restarted: silently for benign faults, after a jittered backoff for
// recoverable ones. A fatal fault ends the loop; a human has to decide
// before capture is retried.
type captureLoop struct {
	primitive ports.CapturePrimitive
	backoff   time.Duration

	onEvent func(domain.TranscriptEvent)
	onFault func(domain.CaptureError)
	onFatal func(domain.CaptureError)

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	current ports.CaptureSession
}

func startCaptureLoop(
	ctx context.Context,
	primitive ports.CapturePrimitive,
	backoff time.Duration,
	onEvent func(domain.TranscriptEvent),
	onFault func(domain.CaptureError),
	onFatal func(domain.CaptureError),
) *captureLoop {
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	loopCtx, cancel := context.WithCancel(ctx)
	loop := &captureLoop{
		primitive: primitive,
		backoff:   backoff,
		onEvent:   onEvent,
		onFault:   onFault,
		onFatal:   onFatal,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go loop.run(loopCtx)
	return loop
}

// stop ends the loop and cancels any pending restart timer, so a scheduled
// retry can never race a deliberate stop.
func (l *captureLoop) stop() {
	l.cancel()

	l.mu.Lock()
	session := l.current
	l.mu.Unlock()
	if session != nil {
		_ = session.Stop()
	}

	<-l.done
}

func (l *captureLoop) run(ctx context.Context) {
	defer close(l.done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		session, err := l.primitive.Start(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fault := asCaptureError(err)
			if fault.Fatal() {
				l.onFatal(fault)
				return
			}
			// Only classified faults surface. A primitive that considers
			// itself already running, or any other unclassified start
			// failure, retries silently after a short delay.
			var classified domain.CaptureError
			if errors.As(err, &classified) && !fault.Benign() {
				l.onFault(fault)
			}
			attempt++
			if !l.sleep(ctx, attempt) {
				return
			}
			continue
		}

		l.setCurrent(session)
		for event := range session.Results() {
			l.onEvent(event)
		}
		<-session.Done()
		l.setCurrent(nil)

		if ctx.Err() != nil {
			return
		}

		sessionErr := session.Err()
		if sessionErr == nil {
			// Clean end while capture is still intended: restart now.
			attempt = 0
			continue
		}

		fault := asCaptureError(sessionErr)
		switch {
		case fault.Benign():
			attempt = 0
		case fault.Fatal():
			l.onFatal(fault)
			return
		default:
			l.onFault(fault)
			attempt++
			if !l.sleep(ctx, attempt) {
				return
			}
		}
	}
}

func (l *captureLoop) setCurrent(session ports.CaptureSession) {
	l.mu.Lock()
	l.current = session
	l.mu.Unlock()
}

func (l *captureLoop) sleep(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(util.Backoff(l.backoff, attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func asCaptureError(err error) domain.CaptureError {
	var fault domain.CaptureError
	if errors.As(err, &fault) {
		return fault
	}
	return domain.CaptureError{Code: domain.CaptureErrOther, Detail: err.Error()}
}
