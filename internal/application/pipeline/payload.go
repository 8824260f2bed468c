package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

// ErrNoJSONObject is returned when a completion holds no parsable object.
var ErrNoJSONObject = errors.New("no JSON object found in completion")

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)```")

// IsolateJSON finds the JSON object in a model completion. It tries, in
// order: the whole completion, fenced code blocks, and balanced {...}
// objects, and returns the first one that parses.
func IsolateJSON(completion string) (string, error) {
	cands := jsonCandidates(completion)
	if len(cands) == 0 {
		return "", ErrNoJSONObject
	}
	return cands[0], nil
}

// jsonCandidates lists every well-formed object in completion, in the order
// IsolateJSON prefers them. Duplicates are dropped.
func jsonCandidates(completion string) []string {
	s := strings.TrimSpace(completion)
	if s == "" {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	add := func(c string) {
		if strings.HasPrefix(c, "{") && !seen[c] && json.Valid([]byte(c)) {
			seen[c] = true
			out = append(out, c)
		}
	}
	add(s)
	for _, m := range fenceRe.FindAllStringSubmatch(s, -1) {
		add(strings.TrimSpace(m[1]))
	}
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := balancedEnd(s, start); end > 0 {
			add(s[start:end])
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return out
}

// balancedEnd returns the index just past the brace closing s[start], or -1.
// Braces inside JSON strings are ignored.
func balancedEnd(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// ParseAnalysis isolates, schema-checks and decodes a completion. The first
// candidate object that matches the schema wins; when none does, the error
// describes the first well-formed one.
func ParseAnalysis(completion string) (report.AnalysisResult, error) {
	var result report.AnalysisResult
	cands := jsonCandidates(completion)
	if len(cands) == 0 {
		return result, ErrNoJSONObject
	}
	var firstErr error
	for _, raw := range cands {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("decode completion: %w", err)
			}
			continue
		}
		if err := validateAnalysis(v); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return report.AnalysisResult{}, fmt.Errorf("decode analysis: %w", err)
		}
		return result, nil
	}
	return result, firstErr
}
