package router

import (
	"context"
	"strings"

	"hotmic/internal/command"
	"hotmic/internal/domain"
	"hotmic/internal/ports"
)

// Router resolves one final transcript against a registry snapshot. Matching
// runs in three phases: free deterministic exact matching first, the
// network-backed classifier second, and the local fallback scorer only when
// the classifier fails. A classifier no-match is a legitimate negative, not
// a fault, and never reaches the fallback.
type Router struct {
	classifier      ports.Classifier
	fallbackEnabled bool
}

func New(classifier ports.Classifier, fallbackEnabled bool) *Router {
	return &Router{classifier: classifier, fallbackEnabled: fallbackEnabled}
}

// Normalize trims and case-folds a transcript for matching.
func Normalize(transcript string) string {
	return strings.ToLower(strings.TrimSpace(transcript))
}

// Route decides and executes exactly one command, or none. Soft no-match and
// classifier failure are steady-state outcomes and never surface as errors;
// the error return is reserved for context cancellation.
func (r *Router) Route(ctx context.Context, transcript string, snapshot []command.Definition) (domain.RouteOutcome, error) {
	normalized := Normalize(transcript)
	outcome := domain.RouteOutcome{Phase: domain.RoutePhaseNone, Transcript: normalized}
	if normalized == "" {
		return outcome, nil
	}

	if def, ok := exactMatch(normalized, snapshot); ok {
		invoke(def)
		outcome.Phase = domain.RoutePhaseExact
		outcome.CommandID = def.ID
		return outcome, nil
	}

	if r.classifier != nil {
		id, err := r.classify(ctx, normalized, snapshot)
		if err == nil {
			if def, ok := findByID(id, snapshot); ok {
				invoke(def)
				outcome.Phase = domain.RoutePhaseClassifier
				outcome.CommandID = def.ID
			}
			return outcome, nil
		}
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
	}

	// Classifier unavailable or failed.
	if !r.fallbackEnabled {
		return outcome, nil
	}
	if def, ok := bestFallback(normalized, snapshot); ok {
		invoke(def)
		outcome.Phase = domain.RoutePhaseFallback
		outcome.CommandID = def.ID
	}
	return outcome, nil
}

func (r *Router) classify(ctx context.Context, normalized string, snapshot []command.Definition) (string, error) {
	infos := make([]domain.CommandInfo, 0, len(snapshot))
	for _, def := range snapshot {
		infos = append(infos, def.Info())
	}
	return r.classifier.Classify(ctx, normalized, infos)
}

func exactMatch(normalized string, snapshot []command.Definition) (command.Definition, bool) {
	for _, def := range snapshot {
		if def.Phrase == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(def.Phrase), normalized) {
			return def, true
		}
	}
	return command.Definition{}, false
}

func findByID(id string, snapshot []command.Definition) (command.Definition, bool) {
	if id == "" {
		return command.Definition{}, false
	}
	for _, def := range snapshot {
		if def.ID == id {
			return def, true
		}
	}
	return command.Definition{}, false
}

func invoke(def command.Definition) {
	if def.Action != nil {
		def.Action()
	}
}
