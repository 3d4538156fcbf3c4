package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"hotmic/internal/domain"
)

type noopSink struct{}

func (noopSink) EngineStateChanged(domain.EngineState) {}
func (noopSink) InterimTranscript(string)              {}
func (noopSink) FinalTranscript(string)                {}
func (noopSink) CommandMatched(domain.RouteOutcome)    {}
func (noopSink) DictationText(string, bool)            {}
func (noopSink) CaptureFault(domain.CaptureError)      {}

func TestBuildWiresEngine(t *testing.T) {
	t.Setenv("HOTMIC_RULES_FILE", filepath.Join(t.TempDir(), "missing.rules"))
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEEPGRAM_API_KEY", "test-key")

	services, err := Build(noopSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(services.Engine.Close)

	if services.Engine == nil {
		t.Fatalf("expected an engine")
	}
	if services.Registry == nil {
		t.Fatalf("expected a registry")
	}
	if services.Config.Deepgram.APIKey != "test-key" {
		t.Fatalf("unexpected config: %+v", services.Config.Deepgram)
	}
}

func TestBuildFailsOnMalformedRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dictation.rules")
	if err := os.WriteFile(path, []byte("not a rule at all\n"), 0o600); err != nil {
		t.Fatalf("failed to write rules: %v", err)
	}
	t.Setenv("HOTMIC_RULES_FILE", path)

	if _, err := Build(noopSink{}); err == nil {
		t.Fatalf("expected malformed rules to fail the build")
	}
}

func TestBuildWithoutClassifierKey(t *testing.T) {
	t.Setenv("HOTMIC_RULES_FILE", filepath.Join(t.TempDir(), "missing.rules"))
	t.Setenv("OPENAI_API_KEY", "")

	services, err := Build(noopSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(services.Engine.Close)

	if services.Config.OpenAI.APIKey != "" {
		t.Fatalf("expected no classifier key")
	}
}
