package usecase

import (
	"context"
	"sync"
	"time"

	"hotmic/internal/command"
	"hotmic/internal/domain"
	"hotmic/internal/ports"
	"hotmic/internal/router"
)

// Config controls engine behavior.
type Config struct {
	// QueueSize bounds the transcript backlog while a routing decision is
	// in flight.
	QueueSize int
	// RestartBackoff is the base delay before a capture restart attempt.
	RestartBackoff time.Duration
	// ExitPhrases are appended to every dictation session that supplies
	// none of its own.
	ExitPhrases []string
}

// Engine is the routing and mode-management core: it feeds capture output
// through the dictation controller and the pause gate into the router, and
// keeps the capture loop alive while capture is intended.
//
// Routing is fully serialized: one worker goroutine drains the transcript
// queue in capture order, so a slow classifier call delays later transcripts
// instead of racing them.
type Engine struct {
	registry    *command.Registry
	router      *router.Router
	primitive   ports.CapturePrimitive
	transformer ports.Transformer
	sink        ports.EventSink
	cfg         Config

	baseCtx context.Context
	stop    context.CancelFunc

	mu        sync.Mutex
	state     domain.EngineState
	dictation *DictationSession
	loop      *captureLoop

	transcripts chan string
	workerDone  chan struct{}
	closeOnce   sync.Once
}

func NewEngine(
	registry *command.Registry,
	rt *router.Router,
	primitive ports.CapturePrimitive,
	transformer ports.Transformer,
	sink ports.EventSink,
	cfg Config,
) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		registry:    registry,
		router:      rt,
		primitive:   primitive,
		transformer: transformer,
		sink:        sink,
		cfg:         cfg,
		baseCtx:     ctx,
		stop:        cancel,
		transcripts: make(chan string, cfg.QueueSize),
		workerDone:  make(chan struct{}),
	}
	go e.routeWorker()
	return e
}

// Close tears the engine down: capture stops, the routing worker drains and
// exits. The engine cannot be reused afterwards.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		_ = e.StopCapture()
		e.stop()
		<-e.workerDone
	})
}

// State returns the observable engine state.
func (e *Engine) State() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotStateLocked()
}

func (e *Engine) snapshotStateLocked() domain.EngineState {
	state := e.state
	state.ActiveCommands = e.registry.IDs()
	return state
}

// Registry exposes the command registration surface.
func (e *Engine) Registry() *command.Registry {
	return e.registry
}

// UpsertCommand registers or replaces a command and refreshes the
// activeCommands projection.
func (e *Engine) UpsertCommand(def command.Definition) {
	e.registry.Upsert(def)
	e.publishState()
}

// RemoveCommand unregisters a command; absent identifiers are a no-op.
func (e *Engine) RemoveCommand(id string) {
	e.registry.Remove(id)
	e.publishState()
}

// AcquireCommand registers a command and returns its stable handle.
func (e *Engine) AcquireCommand(def command.Definition) *command.Handle {
	handle := e.registry.Acquire(def)
	e.publishState()
	return handle
}

// UpdateHandle applies a new definition through a stable handle and
// refreshes the activeCommands projection.
func (e *Engine) UpdateHandle(handle *command.Handle, def command.Definition) {
	handle.Update(def)
	e.publishState()
}

// ReleaseHandle releases a stable handle and refreshes the activeCommands
// projection.
func (e *Engine) ReleaseHandle(handle *command.Handle) {
	handle.Release()
	e.publishState()
}

// SetPaused toggles the pause gate. While paused, transcripts are recorded
// but never matched.
func (e *Engine) SetPaused(paused bool) {
	e.updateState(func(s *domain.EngineState) {
		s.Paused = paused
	})
}

// StartDictation switches capture output to the session's callbacks.
func (e *Engine) StartDictation(session DictationSession) error {
	if err := session.validate(); err != nil {
		return err
	}
	if len(session.ExitPhrases) == 0 {
		session.ExitPhrases = append([]string(nil), e.cfg.ExitPhrases...)
	}

	e.mu.Lock()
	e.dictation = &session
	e.state.Dictating = true
	state := e.snapshotStateLocked()
	e.mu.Unlock()

	e.sink.EngineStateChanged(state)
	return nil
}

// StopDictation returns capture output to routing; stopping while not
// dictating is a no-op.
func (e *Engine) StopDictation() {
	e.mu.Lock()
	wasDictating := e.dictation != nil
	e.dictation = nil
	e.state.Dictating = false
	state := e.snapshotStateLocked()
	e.mu.Unlock()

	if wasDictating {
		e.sink.EngineStateChanged(state)
	}
}

// StartCapture begins the resilient capture loop; starting while already
// started is a no-op.
func (e *Engine) StartCapture(ctx context.Context) error {
	e.mu.Lock()
	if e.loop != nil {
		e.mu.Unlock()
		return nil
	}
	if ctx == nil {
		ctx = e.baseCtx
	}
	loop := startCaptureLoop(ctx, e.primitive, e.cfg.RestartBackoff, e.handleCaptureEvent, e.recordFault, e.handleFatalFault)
	e.loop = loop
	e.state.Listening = true
	e.state.LastError = nil
	state := e.snapshotStateLocked()
	e.mu.Unlock()

	e.sink.EngineStateChanged(state)
	return nil
}

// StopCapture ends the capture loop; stopping while already stopped is a
// no-op.
func (e *Engine) StopCapture() error {
	e.mu.Lock()
	loop := e.loop
	e.loop = nil
	e.mu.Unlock()

	if loop == nil {
		return nil
	}
	loop.stop()

	e.updateState(func(s *domain.EngineState) {
		s.Listening = false
	})
	return nil
}

// SubmitTranscript injects out-of-band text (for example typed input) into
// the same pipeline capture output follows.
func (e *Engine) SubmitTranscript(text string) {
	e.handleFinal(text)
}

func (e *Engine) handleCaptureEvent(event domain.TranscriptEvent) {
	if event.IsFinal() {
		e.handleFinal(event.Text)
		return
	}
	e.handleInterim(event.Text)
}

func (e *Engine) handleInterim(text string) {
	e.mu.Lock()
	session := e.dictation
	e.mu.Unlock()

	if session != nil {
		if session.OnInterim != nil {
			session.OnInterim(text)
		}
		e.sink.DictationText(text, false)
		return
	}
	e.sink.InterimTranscript(text)
}

func (e *Engine) handleFinal(text string) {
	e.sink.FinalTranscript(text)

	e.mu.Lock()
	session := e.dictation
	e.mu.Unlock()

	if session != nil {
		if session.matchesExitPhrase(text) {
			// The exit phrase ends dictation and still routes, so it
			// can double as a command.
			e.StopDictation()
			e.enqueue(text)
			return
		}
		e.deliverDictation(*session, text)
		return
	}

	e.enqueue(text)
}

func (e *Engine) deliverDictation(session DictationSession, text string) {
	out := text
	if e.transformer != nil {
		transformed, err := e.transformer.Apply(text)
		if err == nil {
			out = transformed
		}
	}
	session.OnFinal(out)
	e.sink.DictationText(out, true)
}

// enqueue hands a transcript to the serial routing worker. Capture-order
// FIFO is preserved; a full queue applies backpressure rather than
// reordering or merging.
func (e *Engine) enqueue(text string) {
	select {
	case e.transcripts <- text:
	case <-e.baseCtx.Done():
	}
}

func (e *Engine) routeWorker() {
	defer close(e.workerDone)
	for {
		select {
		case text := <-e.transcripts:
			e.process(text)
		case <-e.baseCtx.Done():
			return
		}
	}
}

func (e *Engine) process(text string) {
	e.mu.Lock()
	paused := e.state.Paused
	e.mu.Unlock()

	// A paused transcript is recorded but never processed, so the
	// processing flag stays untouched.
	if paused {
		e.updateState(func(s *domain.EngineState) {
			s.LastTranscript = text
		})
		e.sink.CommandMatched(domain.RouteOutcome{
			Phase:      domain.RoutePhasePaused,
			Transcript: router.Normalize(text),
		})
		return
	}

	e.updateState(func(s *domain.EngineState) {
		s.Processing = true
		s.LastTranscript = text
	})
	defer e.updateState(func(s *domain.EngineState) {
		s.Processing = false
	})

	outcome, err := e.router.Route(e.baseCtx, text, e.registry.Snapshot())
	if err != nil {
		return
	}
	e.sink.CommandMatched(outcome)
}

func (e *Engine) recordFault(fault domain.CaptureError) {
	e.updateState(func(s *domain.EngineState) {
		f := fault
		s.LastError = &f
	})
	e.sink.CaptureFault(fault)
}

// handleFatalFault clears the capture-intended flag: the loop has already
// stopped itself and will not retry without an explicit StartCapture.
func (e *Engine) handleFatalFault(fault domain.CaptureError) {
	e.mu.Lock()
	e.loop = nil
	e.state.Listening = false
	f := fault
	e.state.LastError = &f
	state := e.snapshotStateLocked()
	e.mu.Unlock()

	e.sink.EngineStateChanged(state)
	e.sink.CaptureFault(fault)
}

func (e *Engine) updateState(mutate func(*domain.EngineState)) {
	e.mu.Lock()
	mutate(&e.state)
	state := e.snapshotStateLocked()
	e.mu.Unlock()
	e.sink.EngineStateChanged(state)
}

func (e *Engine) publishState() {
	e.mu.Lock()
	state := e.snapshotStateLocked()
	e.mu.Unlock()
	e.sink.EngineStateChanged(state)
}
