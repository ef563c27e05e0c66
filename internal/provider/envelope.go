package provider

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Envelope is the unwrapped form of a CLI JSON result.
type Envelope struct {
	Output    string
	SessionID string
	IsError   bool
}

type rawEnvelope struct {
	Result           *string         `json:"result"`
	Content          *string         `json:"content"`
	StructuredOutput json.RawMessage `json:"structured_output"`
	SessionID        string          `json:"session_id"`
	IsError          bool            `json:"is_error"`
}

func (r rawEnvelope) recognized() bool {
	return r.Result != nil || r.Content != nil || r.SessionID != "" || hasValue(r.StructuredOutput)
}

// ParseEnvelope extracts the provider's final text and session id from CLI
// output. Output that is not a recognized envelope is returned as-is, so the
// gate parser can still look for a result object in it.
func ParseEnvelope(raw []byte) Envelope {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Envelope{}
	}

	var env rawEnvelope
	ok := json.Unmarshal(trimmed, &env) == nil && env.recognized()
	if !ok {
		if obj, found := ExtractJSON(string(trimmed)); found {
			env = rawEnvelope{}
			ok = json.Unmarshal([]byte(obj), &env) == nil && env.recognized()
		}
	}
	if !ok {
		return Envelope{Output: string(trimmed)}
	}

	out := Envelope{SessionID: env.SessionID, IsError: env.IsError}
	switch {
	case hasValue(env.StructuredOutput):
		out.Output = string(env.StructuredOutput)
	case env.Result != nil:
		out.Output = *env.Result
	case env.Content != nil:
		out.Output = *env.Content
	}
	return out
}

func hasValue(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON finds a JSON object in free text. A fenced code block wins;
// otherwise the first balanced top-level {...} is returned. Braces inside
// JSON strings are ignored.
func ExtractJSON(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); len(m) > 1 {
		if body := strings.TrimSpace(m[1]); strings.HasPrefix(body, "{") {
			return body, true
		}
	}

	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end := matchBrace(text, start); end > start {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index of the brace closing text[start], or -1.
func matchBrace(text string, start int) int {
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
				return i
			}
		}
	}
	return -1
}
