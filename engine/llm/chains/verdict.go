package chains

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMalformedReply is returned when a model reply carries no usable verdict.
var ErrMalformedReply = errors.New("malformed model reply")

// extractJSON finds the JSON object in a reply that may be wrapped in a
// fenced code block or surrounded by prose.
func extractJSON(reply string) (string, error) {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "{") && gjson.Valid(s) {
		return s, nil
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in %q", ErrMalformedReply, truncate(s))
	}
	candidate := s[start : end+1]
	if !gjson.Valid(candidate) {
		return "", fmt.Errorf("%w: invalid JSON in %q", ErrMalformedReply, truncate(s))
	}
	return candidate, nil
}

// parseBinaryScore accepts true/false as JSON booleans or as yes/no strings.
func parseBinaryScore(reply string) (bool, error) {
	body, err := extractJSON(reply)
	if err != nil {
		return false, err
	}
	score := gjson.Get(body, "binary_score")
	switch score.Type {
	case gjson.True:
		return true, nil
	case gjson.False:
		return false, nil
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(score.Str)) {
		case "yes", "true":
			return true, nil
		case "no", "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: binary_score %q", ErrMalformedReply, score.Raw)
}

func parseDatasource(reply string) (string, error) {
	body, err := extractJSON(reply)
	if err != nil {
		return "", err
	}
	source := gjson.Get(body, "datasource")
	if source.Type != gjson.String {
		return "", fmt.Errorf("%w: datasource %q", ErrMalformedReply, source.Raw)
	}
	return strings.ToLower(strings.TrimSpace(source.Str)), nil
}

func truncate(s string) string {
	const limit = 120
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
