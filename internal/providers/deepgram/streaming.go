package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hotmic/internal/audio"
	"hotmic/internal/domain"
	"hotmic/internal/ports"
)

// Config controls the Deepgram websocket connection.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool

	Audio     ports.AudioConfig
	ChunkSize int
	// KeepAliveInterval spaces the KeepAlive frames that hold the
	// connection open through silence in continuous mode.
	KeepAliveInterval time.Duration
}

// Primitive is a continuous speech-to-text capture primitive: it ties a
// microphone stream to a Deepgram listen websocket and emits interim/final
// transcript events until stopped or until the connection dies. Restart
// policy belongs to the capture loop, not here.
type Primitive struct {
	cfg Config
	mic ports.AudioCapture
}

func NewPrimitive(cfg Config, mic ports.AudioCapture) *Primitive {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = 5 * time.Second
	}
	return &Primitive{cfg: cfg, mic: mic}
}

func (p *Primitive) Start(ctx context.Context) (ports.CaptureSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, domain.CaptureError{
			Code:   domain.CaptureErrPermissionDenied,
			Detail: "DEEPGRAM_API_KEY is not configured",
		}
	}

	wsURL, err := listenURL(p.cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, classifyDialError(err, resp)
	}

	micSession, err := p.mic.Start(ctx, p.cfg.Audio)
	if err != nil {
		_ = conn.Close()
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			return nil, domain.CaptureError{Code: domain.CaptureErrPermissionDenied, Detail: err.Error()}
		}
		return nil, domain.CaptureError{Code: domain.CaptureErrAudio, Detail: err.Error()}
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s := &session{
		conn:      conn,
		mic:       micSession,
		ctx:       sessionCtx,
		cancel:    cancel,
		results:   make(chan domain.TranscriptEvent, 64),
		done:      make(chan struct{}),
		chunkSize: p.cfg.ChunkSize,
		keepAlive: p.cfg.KeepAliveInterval,
	}

	s.wg.Add(2)
	go s.pumpAudio(sessionCtx)
	go s.readEvents()
	go func() {
		s.wg.Wait()
		s.teardown()
	}()

	return s, nil
}

type session struct {
	conn   *websocket.Conn
	mic    ports.AudioSession
	ctx    context.Context
	cancel context.CancelFunc

	results chan domain.TranscriptEvent
	done    chan struct{}

	chunkSize int
	keepAlive time.Duration

	wg      sync.WaitGroup
	writeMu sync.Mutex

	errMu    sync.Mutex
	err      error
	anyFinal bool
	stopped  bool

	stopOnce     sync.Once
	teardownOnce sync.Once
}

func (s *session) Results() <-chan domain.TranscriptEvent { return s.results }
func (s *session) Done() <-chan struct{}                  { return s.done }

// Err reports why the session ended: nil after a deliberate Stop, a
// classified domain.CaptureError otherwise. Valid once Done is closed.
func (s *session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *session) Stop() error {
	s.stopOnce.Do(func() {
		s.errMu.Lock()
		s.stopped = true
		s.errMu.Unlock()
		s.cancel()
		_ = s.mic.Stop()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *session) teardown() {
	s.teardownOnce.Do(func() {
		_ = s.mic.Stop()
		_ = s.conn.Close()
		s.cancel()
		close(s.results)
		close(s.done)
	})
}

func (s *session) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.stopped || s.err != nil {
		return
	}
	s.err = err
}

func (s *session) writeMessage(messageType int, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, payload)
}

// pumpAudio streams microphone PCM to the websocket, interleaving KeepAlive
// frames so Deepgram holds the connection through silence.
func (s *session) pumpAudio(ctx context.Context) {
	defer s.wg.Done()

	type readResult struct {
		chunk []byte
		err   error
	}
	reads := make(chan readResult, 1)

	go func() {
		for {
			buf := make([]byte, s.chunkSize)
			n, err := s.mic.Read(buf)
			select {
			case reads <- readResult{chunk: buf[:n], err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`)); err != nil {
				s.setErr(classifyStreamError(fmt.Errorf("failed to send keepalive: %w", err)))
				return
			}
		case r := <-reads:
			if len(r.chunk) > 0 {
				if err := s.writeMessage(websocket.BinaryMessage, r.chunk); err != nil {
					s.setErr(classifyStreamError(fmt.Errorf("failed to stream audio: %w", err)))
					return
				}
			}
			if r.err != nil {
				if ctx.Err() == nil {
					s.setErr(domain.CaptureError{Code: domain.CaptureErrAudio, Detail: r.err.Error()})
				}
				return
			}
		}
	}
}

func (s *session) readEvents() {
	defer s.wg.Done()
	defer s.cancel()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !isCleanClose(err) {
				s.setErr(classifyStreamError(err))
			} else if !s.sawFinal() {
				s.setErr(domain.CaptureError{Code: domain.CaptureErrNoSpeech, Detail: "session ended with no speech"})
			}
			return
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			detail := strings.TrimSpace(response.Message)
			if detail == "" {
				detail = "deepgram returned an unknown error"
			}
			s.setErr(classifyProviderError(detail))
			return
		}

		text := response.transcript()
		if text == "" {
			continue
		}

		event := domain.TranscriptEvent{Kind: domain.TranscriptKindInterim, Text: text}
		if response.IsFinal || response.SpeechFinal {
			event.Kind = domain.TranscriptKindFinal
			s.markFinal()
		}
		s.emit(event)
	}
}

// emit blocks until the consumer keeps up, so a slow reader applies
// backpressure instead of losing transcripts. Stop cancels the session
// context and unblocks a pending emit.
func (s *session) emit(event domain.TranscriptEvent) {
	select {
	case s.results <- event:
	case <-s.ctx.Done():
	}
}

func (s *session) markFinal() {
	s.errMu.Lock()
	s.anyFinal = true
	s.errMu.Unlock()
}

func (s *session) sawFinal() bool {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.anyFinal
}

func isCleanClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

func classifyDialError(err error, resp *http.Response) error {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return domain.CaptureError{
			Code:   domain.CaptureErrPermissionDenied,
			Detail: fmt.Sprintf("deepgram rejected credentials (%d)", resp.StatusCode),
		}
	}
	if resp != nil && resp.StatusCode >= 500 {
		return domain.CaptureError{
			Code:   domain.CaptureErrServiceUnavailable,
			Detail: fmt.Sprintf("deepgram handshake failed (%d)", resp.StatusCode),
		}
	}
	return domain.CaptureError{Code: domain.CaptureErrNetwork, Detail: err.Error()}
}

func classifyStreamError(err error) error {
	return domain.CaptureError{Code: domain.CaptureErrNetwork, Detail: err.Error()}
}

// classifyProviderError maps Deepgram error payloads to the capture
// taxonomy. NET-0001 is the silence timeout Deepgram reports when no audio
// arrived in time.
func classifyProviderError(detail string) error {
	lowered := strings.ToLower(detail)
	if strings.Contains(lowered, "net-0001") || strings.Contains(lowered, "did not receive audio") {
		return domain.CaptureError{Code: domain.CaptureErrNoSpeech, Detail: detail}
	}
	return domain.CaptureError{Code: domain.CaptureErrServiceUnavailable, Detail: detail}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r listenResponse) transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Channel.Alternatives[0].Transcript)
}

func listenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	sampleRate := cfg.Audio.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := cfg.Audio.Channels
	if channels <= 0 {
		channels = 1
	}

	query := u.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	query.Set("channels", fmt.Sprintf("%d", channels))
	query.Set("interim_results", "true")
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}
