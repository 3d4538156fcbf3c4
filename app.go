package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"hotmic/internal/bootstrap"
	"hotmic/internal/command"
	"hotmic/internal/config"
	"hotmic/internal/domain"
	"hotmic/internal/usecase"
)

const (
	eventState     = "hotmic:state"
	eventInterim   = "hotmic:interim"
	eventFinal     = "hotmic:final"
	eventCommand   = "hotmic:command"
	eventDictation = "hotmic:dictation"
	eventError     = "hotmic:error"
)

// App is the Wails application root. It exposes the engine's control and
// registration surfaces to the frontend and forwards engine events to it.
type App struct {
	ctx context.Context

	engine  *usecase.Engine
	cfg     config.Config
	bootErr error

	mu      sync.Mutex
	handles map[string]*command.Handle
}

func NewApp() *App {
	return &App{handles: map[string]*command.Handle{}}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.emitError("startup", err.Error())
		return
	}

	a.cfg = services.Config
	a.engine = services.Engine
	a.EngineStateChanged(a.engine.State())
}

func (a *App) shutdown(_ context.Context) {
	if a.engine != nil {
		a.engine.Close()
	}
}

// StartCapture begins continuous listening.
func (a *App) StartCapture() (domain.EngineState, error) {
	if err := a.requireReady(); err != nil {
		return domain.EngineState{}, err
	}
	if err := a.engine.StartCapture(a.ctx); err != nil {
		return domain.EngineState{}, err
	}
	return a.engine.State(), nil
}

// StopCapture ends continuous listening.
func (a *App) StopCapture() (domain.EngineState, error) {
	if err := a.requireReady(); err != nil {
		return domain.EngineState{}, err
	}
	if err := a.engine.StopCapture(); err != nil {
		return domain.EngineState{}, err
	}
	return a.engine.State(), nil
}

// SetPaused toggles the pause gate.
func (a *App) SetPaused(paused bool) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.engine.SetPaused(paused)
	return nil
}

// StartDictation diverts capture output to dictation events instead of
// command routing. Exit phrases default to the configured set.
func (a *App) StartDictation(exitPhrases []string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	// The frontend consumes dictated text through hotmic:dictation
	// events, so the session callback has nothing left to do.
	return a.engine.StartDictation(usecase.DictationSession{
		OnFinal:     func(string) {},
		ExitPhrases: exitPhrases,
	})
}

// StopDictation returns capture output to command routing.
func (a *App) StopDictation() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.engine.StopDictation()
	return nil
}

// SubmitTranscript injects typed text into the routing pipeline.
func (a *App) SubmitTranscript(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.engine.SubmitTranscript(text)
	return nil
}

// GetState returns the observable engine state.
func (a *App) GetState() domain.EngineState {
	if a.engine == nil {
		return domain.EngineState{}
	}
	return a.engine.State()
}

// RegisterCommand registers a frontend-owned command. Matches are delivered
// back to the frontend as hotmic:command events carrying the identifier.
func (a *App) RegisterCommand(id, description, phrase string) error {
	if err := a.requireReady(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if handle, ok := a.handles[id]; ok {
		a.engine.UpdateHandle(handle, command.Definition{
			ID:          id,
			Description: description,
			Phrase:      phrase,
			Action:      a.commandAction(id),
		})
		return nil
	}
	a.handles[id] = a.engine.AcquireCommand(command.Definition{
		ID:          id,
		Description: description,
		Phrase:      phrase,
		Action:      a.commandAction(id),
	})
	return nil
}

// UpdateCommand rewrites a registered command, moving its handle when the
// identifier changed.
func (a *App) UpdateCommand(oldID, id, description, phrase string) error {
	if err := a.requireReady(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	handle, ok := a.handles[oldID]
	if !ok {
		return fmt.Errorf("command %q is not registered", oldID)
	}
	def := command.Definition{
		ID:          id,
		Description: description,
		Phrase:      phrase,
		Action:      a.commandAction(id),
	}
	if oldID == id {
		// The registry upsert rewrites the metadata in place; the handle
		// keeps owning the entry.
		a.engine.UpsertCommand(def)
		return nil
	}
	a.engine.UpdateHandle(handle, def)
	delete(a.handles, oldID)
	a.handles[id] = handle
	return nil
}

// UnregisterCommand releases a frontend-owned command; unknown identifiers
// are a no-op.
func (a *App) UnregisterCommand(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if handle, ok := a.handles[id]; ok {
		a.engine.ReleaseHandle(handle)
		delete(a.handles, id)
	}
	return nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	classifier := "disabled"
	if a.cfg.OpenAI.APIKey != "" {
		classifier = a.cfg.OpenAI.Model
	}
	return map[string]string{
		"captureProvider": "Deepgram",
		"captureModel":    a.cfg.Deepgram.Model,
		"classifier":      classifier,
		"fallback":        fmt.Sprintf("%t", a.cfg.Engine.FallbackEnabled),
		"rulesFile":       a.cfg.Rules.Path,
		"audioInput":      a.cfg.Audio.InputDevice,
	}
}

func (a *App) commandAction(id string) func() {
	return func() {
		if a.ctx == nil {
			return
		}
		runtime.EventsEmit(a.ctx, eventCommand, map[string]string{"id": id})
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.engine == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// EngineStateChanged emits engine state updates to the frontend.
func (a *App) EngineStateChanged(state domain.EngineState) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, state)
}

// InterimTranscript emits live interim transcript text.
func (a *App) InterimTranscript(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventInterim, map[string]string{"text": text})
}

// FinalTranscript emits completed transcript text.
func (a *App) FinalTranscript(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventFinal, map[string]string{"text": text})
}

// CommandMatched emits the outcome of a routing decision.
func (a *App) CommandMatched(outcome domain.RouteOutcome) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCommand+":outcome", outcome)
}

// DictationText emits dictated text, interim or final.
func (a *App) DictationText(text string, final bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventDictation, map[string]any{
		"text":  text,
		"final": final,
	})
}

// CaptureFault emits classified capture errors.
func (a *App) CaptureFault(fault domain.CaptureError) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(fault.Code),
		"message": faultMessage(fault.Code),
		"detail":  fault.Detail,
	})
}

func (a *App) emitError(code, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    code,
		"message": detail,
		"detail":  detail,
	})
}

func faultMessage(code domain.CaptureErrorCode) string {
	switch code {
	case domain.CaptureErrPermissionDenied:
		return "Microphone or provider access denied"
	case domain.CaptureErrNoSpeech:
		return "No speech detected"
	case domain.CaptureErrNetwork:
		return "Network issue; capture will retry"
	case domain.CaptureErrAborted:
		return "Capture aborted; restarting"
	case domain.CaptureErrServiceUnavailable:
		return "Speech service unavailable; capture will retry"
	case domain.CaptureErrAudio:
		return "Audio capture issue"
	default:
		return "Capture error"
	}
}
