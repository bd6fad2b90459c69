// Package decode turns raw LLM output into validated Go values. Models wrap
// JSON in prose and code fences, so extraction happens before unmarshaling.
// Decoding returns a tagged Result rather than silently substituting defaults;
// each caller decides its own fail-open behavior explicitly.
package decode

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validator is implemented by decode targets that carry schema constraints
// beyond what encoding/json checks.
type Validator interface {
	Validate() error
}

// Result is the tagged outcome of a strict decode. Exactly one of Value or
// Err is meaningful, discriminated by OK.
type Result[T any] struct {
	Value T
	OK    bool
	Err   error
}

// Ok wraps a successfully decoded value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v, OK: true}
}

// ParseError wraps a decode failure with the reason preserved.
func ParseError[T any](err error) Result[T] {
	return Result[T]{OK: false, Err: err}
}

// OrElse returns the decoded value, or fallback when decoding failed.
// This is the explicit fail-open hook for call sites.
func (r Result[T]) OrElse(fallback T) T {
	if r.OK {
		return r.Value
	}
	return fallback
}

// Extract locates the outermost JSON object in raw model output. It strips
// markdown code fences first, then scans for a balanced brace pair, tracking
// string literals so braces inside strings do not confuse the balance.
func Extract(text string) (string, error) {
	text = stripFences(text)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in output")
}

func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.Contains(trimmed, "```") {
		return trimmed
	}
	// Prefer the first fenced block if one exists.
	open := strings.Index(trimmed, "```")
	rest := trimmed[open+3:]
	// Skip an optional language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}") {
			rest = rest[nl+1:]
		}
	}
	if closeIdx := strings.Index(rest, "```"); closeIdx >= 0 {
		return strings.TrimSpace(rest[:closeIdx])
	}
	return strings.TrimSpace(rest)
}

// Decode extracts, unmarshals and validates a value of type T from raw LLM
// output. Unknown fields are rejected so schema drift surfaces as a parse
// error instead of a zero value.
func Decode[T any](text string) Result[T] {
	payload, err := Extract(text)
	if err != nil {
		return ParseError[T](err)
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()

	var v T
	if err := dec.Decode(&v); err != nil {
		return ParseError[T](fmt.Errorf("unmarshal: %w", err))
	}

	if validator, ok := any(&v).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return ParseError[T](fmt.Errorf("validate: %w", err))
		}
	}

	return Ok(v)
}

// DecodeLenient behaves like Decode but tolerates unknown fields. Used for
// prompts where the model is allowed to add commentary keys.
func DecodeLenient[T any](text string) Result[T] {
	payload, err := Extract(text)
	if err != nil {
		return ParseError[T](err)
	}

	var v T
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return ParseError[T](fmt.Errorf("unmarshal: %w", err))
	}

	if validator, ok := any(&v).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return ParseError[T](fmt.Errorf("validate: %w", err))
		}
	}

	return Ok(v)
}
