package usecase

import (
	"context"
	"sync"

	"hotmic/internal/domain"
	"hotmic/internal/ports"
)

type fakeSession struct {
	results chan domain.TranscriptEvent
	done    chan struct{}

	mu   sync.Mutex
	err  error
	once sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		results: make(chan domain.TranscriptEvent, 16),
		done:    make(chan struct{}),
	}
}

func (s *fakeSession) Results() <-chan domain.TranscriptEvent { return s.results }
func (s *fakeSession) Done() <-chan struct{}                  { return s.done }

func (s *fakeSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSession) Stop() error {
	s.end(nil)
	return nil
}

func (s *fakeSession) emitInterim(text string) {
	s.results <- domain.TranscriptEvent{Kind: domain.TranscriptKindInterim, Text: text}
}

func (s *fakeSession) emitFinal(text string) {
	s.results <- domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: text}
}

func (s *fakeSession) end(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.results)
		close(s.done)
	})
}

type startItem struct {
	session *fakeSession
	err     error
}

type fakePrimitive struct {
	mu     sync.Mutex
	queue  []startItem
	starts int

	started chan *fakeSession
}

func newFakePrimitive(items ...startItem) *fakePrimitive {
	return &fakePrimitive{queue: items, started: make(chan *fakeSession, 16)}
}

func (p *fakePrimitive) Start(_ context.Context) (ports.CaptureSession, error) {
	p.mu.Lock()
	p.starts++
	var item startItem
	if len(p.queue) > 0 {
		item = p.queue[0]
		p.queue = p.queue[1:]
	} else {
		item = startItem{session: newFakeSession()}
	}
	p.mu.Unlock()

	if item.err != nil {
		return nil, item.err
	}
	select {
	case p.started <- item.session:
	default:
	}
	return item.session, nil
}

func (p *fakePrimitive) startCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

type dictationEvent struct {
	text  string
	final bool
}

type fakeSink struct {
	mu        sync.Mutex
	states    []domain.EngineState
	interims  []string
	finals    []string
	outcomes  []domain.RouteOutcome
	dictation []dictationEvent
	faults    []domain.CaptureError

	matched chan domain.RouteOutcome
	faultCh chan domain.CaptureError
	dictCh  chan dictationEvent
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		matched: make(chan domain.RouteOutcome, 32),
		faultCh: make(chan domain.CaptureError, 32),
		dictCh:  make(chan dictationEvent, 32),
	}
}

func (s *fakeSink) EngineStateChanged(state domain.EngineState) {
	s.mu.Lock()
	s.states = append(s.states, state)
	s.mu.Unlock()
}

func (s *fakeSink) InterimTranscript(text string) {
	s.mu.Lock()
	s.interims = append(s.interims, text)
	s.mu.Unlock()
}

func (s *fakeSink) FinalTranscript(text string) {
	s.mu.Lock()
	s.finals = append(s.finals, text)
	s.mu.Unlock()
}

func (s *fakeSink) CommandMatched(outcome domain.RouteOutcome) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, outcome)
	s.mu.Unlock()
	select {
	case s.matched <- outcome:
	default:
	}
}

func (s *fakeSink) DictationText(text string, final bool) {
	event := dictationEvent{text: text, final: final}
	s.mu.Lock()
	s.dictation = append(s.dictation, event)
	s.mu.Unlock()
	select {
	case s.dictCh <- event:
	default:
	}
}

func (s *fakeSink) CaptureFault(fault domain.CaptureError) {
	s.mu.Lock()
	s.faults = append(s.faults, fault)
	s.mu.Unlock()
	select {
	case s.faultCh <- fault:
	default:
	}
}

func (s *fakeSink) lastStates() []domain.EngineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EngineState(nil), s.states...)
}

func (s *fakeSink) faultCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.faults)
}

func (s *fakeSink) interimCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.interims)
}

type fakeClassifier struct {
	mu    sync.Mutex
	id    string
	err   error
	calls []string

	gate chan struct{}
}

func (f *fakeClassifier) Classify(_ context.Context, transcript string, _ []domain.CommandInfo) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, transcript)
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id, f.err
}

func (f *fakeClassifier) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type upperTransformer struct{}

func (upperTransformer) Apply(text string) (string, error) {
	out := make([]rune, 0, len(text))
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out), nil
}
