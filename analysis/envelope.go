package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRefusal      = errors.New("analysis: provider refused")
	ErrNoJSON       = errors.New("analysis: no JSON object in response")
	ErrInvalidShape = errors.New("analysis: response has invalid shape")
)

var refusalPrefixes = []string{
	"i'm sorry",
	"i am sorry",
	"sorry",
	"i apologize",
	"i can't",
	"i cannot",
	"i'm unable",
	"i am unable",
	"unfortunately, i",
}

// IsRefusal reports whether text opens with an apology or refusal.
func IsRefusal(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.ReplaceAll(t, "’", "'")
	for _, p := range refusalPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// Unwrap strips a Markdown code fence and any prose around the outermost
// JSON object.
func Unwrap(text string) (string, error) {
	t := strings.TrimSpace(text)
	if i := strings.Index(t, "```"); i >= 0 {
		inner := t[i+3:]
		// drop the info string ("json")
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
			inner = inner[nl+1:]
		}
		if j := strings.Index(inner, "```"); j >= 0 {
			inner = inner[:j]
		}
		t = inner
	}
	start := strings.IndexByte(t, '{')
	end := strings.LastIndexByte(t, '}')
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return t[start : end+1], nil
}

type validator interface{ Validate() error }

// Decode runs the whole envelope pipeline: refusal check, unwrap, decode and,
// when T has a Validate method, shape validation.
func Decode[T any](text string) (T, error) {
	var v T
	if IsRefusal(text) {
		return v, ErrRefusal
	}
	raw, err := Unwrap(text)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	if vv, ok := any(v).(validator); ok {
		if err := vv.Validate(); err != nil {
			return v, err
		}
	}
	return v, nil
}
