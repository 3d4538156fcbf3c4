package usecase

import (
	"errors"
	"strings"
)

// ErrDictationFinalRequired rejects dictation sessions without a final
// callback; interim delivery is optional, final delivery is the point.
var ErrDictationFinalRequired = errors.New("dictation session requires a final callback")

// DictationSession diverts capture output to caller callbacks while active.
// A final transcript containing any exit phrase ends the session and is
// forwarded into routing, so the exit phrase can itself act as a command.
type DictationSession struct {
	OnInterim   func(text string)
	OnFinal     func(text string)
	ExitPhrases []string
}

func (s DictationSession) validate() error {
	if s.OnFinal == nil {
		return ErrDictationFinalRequired
	}
	return nil
}

func (s DictationSession) matchesExitPhrase(transcript string) bool {
	lowered := strings.ToLower(transcript)
	for _, phrase := range s.ExitPhrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
