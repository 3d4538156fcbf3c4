package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Engine rewrites dictated text using deterministic substitution rules from
// a user-editable file. Two rule forms are supported, one per line:
//
//	spoken text => replacement
//	s/pattern/replacement/flags
//
// Literal rules match case-insensitively. Regex rules default to
// case-insensitive and first-occurrence; flags i, g, m and s adjust that.
// Blank lines and lines starting with # are skipped.
type Engine struct {
	rules    []rule
	maxRound int
}

type rule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

// Load reads and compiles a rules file. An empty path or a missing file
// yields an identity engine.
func Load(path string, maxRound int) (*Engine, error) {
	if maxRound <= 0 {
		maxRound = 30
	}

	engine := &Engine{maxRound: maxRound}
	if strings.TrimSpace(path) == "" {
		return engine, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return engine, nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	for lineNo, raw := range strings.Split(string(contents), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		compiled, err := compileRule(line)
		if err != nil {
			return nil, fmt.Errorf("rules file %q line %d: %w", path, lineNo+1, err)
		}
		engine.rules = append(engine.rules, compiled)
	}
	return engine, nil
}

// Apply rewrites text until no rule changes it or the round limit is hit.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	result := text
	for round := 0; round < e.maxRound; round++ {
		changed := false
		for _, r := range e.rules {
			next := r.apply(result)
			if next != result {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result, nil
}

// Empty reports whether the engine carries no rules.
func (e *Engine) Empty() bool {
	return len(e.rules) == 0
}

func (r rule) apply(input string) string {
	if r.global {
		return r.re.ReplaceAllString(input, r.replacement)
	}
	loc := r.re.FindStringIndex(input)
	if loc == nil {
		return input
	}
	return input[:loc[0]] + r.re.ReplaceAllString(input[loc[0]:loc[1]], r.replacement) + input[loc[1]:]
}

func compileRule(line string) (rule, error) {
	if isSedRule(line) {
		return compileSedRule(line)
	}
	if strings.Contains(line, "=>") {
		return compileLiteralRule(line)
	}
	return rule{}, errors.New("unsupported rule format")
}

func compileLiteralRule(line string) (rule, error) {
	parts := strings.SplitN(line, "=>", 2)
	from := strings.TrimSpace(parts[0])
	if from == "" {
		return rule{}, errors.New("literal rule source cannot be empty")
	}

	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return rule{}, fmt.Errorf("invalid literal source: %w", err)
	}
	return rule{re: re, replacement: strings.TrimSpace(parts[1]), global: true}, nil
}

func isSedRule(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordByte(line[1])
}

func compileSedRule(line string) (rule, error) {
	delim := line[1]

	pattern, pos, err := readDelimited(line, 2, delim)
	if err != nil {
		return rule{}, fmt.Errorf("invalid pattern: %w", err)
	}
	replacement, pos, err := readDelimited(line, pos, delim)
	if err != nil {
		return rule{}, fmt.Errorf("invalid replacement: %w", err)
	}

	ignoreCase, global, multiLine, dotAll := true, false, false, false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
			ignoreCase = true
		case 'g':
			global = true
		case 'm':
			multiLine = true
		case 's':
			dotAll = true
		case ' ':
		default:
			return rule{}, fmt.Errorf("unsupported flag %q", flag)
		}
	}

	prefix := ""
	if ignoreCase {
		prefix += "i"
	}
	if multiLine {
		prefix += "m"
	}
	if dotAll {
		prefix += "s"
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return rule{}, fmt.Errorf("invalid regex: %w", err)
	}
	return rule{re: re, replacement: replacement, global: global}, nil
}

func readDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var b strings.Builder
	escaped := false
	for i := start; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			b.WriteByte(c)
			escaped = true
		case c == delim:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, errors.New("unterminated expression")
}

func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == ' ' || c == '\t'
}
