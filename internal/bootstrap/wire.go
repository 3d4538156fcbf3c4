package bootstrap

import (
	"hotmic/internal/audio"
	"hotmic/internal/command"
	"hotmic/internal/config"
	"hotmic/internal/ports"
	"hotmic/internal/providers/deepgram"
	"hotmic/internal/providers/openai"
	"hotmic/internal/router"
	"hotmic/internal/rules"
	"hotmic/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Engine   *usecase.Engine
	Registry *command.Registry
	Config   config.Config
}

// Build wires all backend dependencies for the current runtime. Without an
// OpenAI key the engine runs classifier-less: exact matching still works and
// the local fallback covers the rest when enabled.
func Build(sink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	transformer, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	var classifier ports.Classifier
	if cfg.OpenAI.APIKey != "" {
		classifier, err = openai.NewClassifier(openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			Model:      cfg.OpenAI.Model,
			Timeout:    cfg.OpenAI.Timeout,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return Services{}, err
		}
	}

	primitive := deepgram.NewPrimitive(deepgram.Config{
		APIKey:      cfg.Deepgram.APIKey,
		APIBaseURL:  cfg.Deepgram.APIBaseURL,
		Model:       cfg.Deepgram.Model,
		Language:    cfg.Deepgram.Language,
		SmartFormat: cfg.Deepgram.SmartFormat,
		Audio: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		ChunkSize:         cfg.Audio.ChunkSize,
		KeepAliveInterval: cfg.Deepgram.KeepAlive,
	}, audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand))

	registry := command.NewRegistry()
	engine := usecase.NewEngine(
		registry,
		router.New(classifier, cfg.Engine.FallbackEnabled),
		primitive,
		transformer,
		sink,
		usecase.Config{
			QueueSize:      cfg.Engine.QueueSize,
			RestartBackoff: cfg.Engine.RestartBackoff,
			ExitPhrases:    cfg.Engine.ExitPhrases,
		},
	)

	return Services{Engine: engine, Registry: registry, Config: cfg}, nil
}
