package router

import (
	"strings"

	"hotmic/internal/command"
)

// fallbackThreshold is the minimum score a command needs to be eligible for
// a fallback match.
const fallbackThreshold = 2

// bestFallback runs the local scoring heuristic over the snapshot using only
// locally available text. Highest score wins; ties go to the first command
// seen in snapshot order.
func bestFallback(normalized string, snapshot []command.Definition) (command.Definition, bool) {
	var (
		best      command.Definition
		bestScore int
	)
	for _, def := range snapshot {
		score := fallbackScore(normalized, def)
		if score >= fallbackThreshold && score > bestScore {
			best = def
			bestScore = score
		}
	}
	return best, bestScore >= fallbackThreshold
}

// fallbackScore awards 3 points when the transcript contains the command
// identifier as a substring, and 1 point per transcript word longer than two
// characters that appears in the command's description or inside the
// identifier itself.
func fallbackScore(normalized string, def command.Definition) int {
	id := strings.ToLower(def.ID)
	description := strings.ToLower(def.Description)

	score := 0
	if strings.Contains(normalized, id) {
		score += 3
	}
	for _, word := range strings.Fields(normalized) {
		if len(word) <= 2 {
			continue
		}
		if strings.Contains(description, word) {
			score++
		}
		if strings.Contains(id, word) {
			score++
		}
	}
	return score
}
