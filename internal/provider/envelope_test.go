package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantOutput  string
		wantSession string
		wantError   bool
	}{
		{
			name:        "result field",
			raw:         `{"type":"result","result":"{\"score\": 20}","session_id":"abc-123"}`,
			wantOutput:  `{"score": 20}`,
			wantSession: "abc-123",
		},
		{
			name:       "content field",
			raw:        `{"content":"Task completed","error":""}`,
			wantOutput: "Task completed",
		},
		{
			name:        "structured output wins",
			raw:         `{"result":"ignored","session_id":"s","structured_output":{"score":10}}`,
			wantOutput:  `{"score":10}`,
			wantSession: "s",
		},
		{
			name:        "structured output null falls through",
			raw:         `{"content":"via content","session_id":"s","structured_output":null}`,
			wantOutput:  "via content",
			wantSession: "s",
		},
		{
			name:        "noise before envelope",
			raw:         "Warning: something\n" + `{"result":"done","session_id":"mixed-456"}`,
			wantOutput:  "done",
			wantSession: "mixed-456",
		},
		{
			name:       "is_error flag",
			raw:        `{"result":"Claude AI usage limit reached|1700000000","is_error":true}`,
			wantOutput: "Claude AI usage limit reached|1700000000",
			wantError:  true,
		},
		{
			name:       "bare result object passes through",
			raw:        `{"score": 18, "findings": []}`,
			wantOutput: `{"score": 18, "findings": []}`,
		},
		{
			name:       "plain text",
			raw:        "plain text\n",
			wantOutput: "plain text",
		},
		{
			name: "empty",
			raw:  "  ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEnvelope([]byte(tt.raw))
			assert.Equal(t, tt.wantOutput, got.Output)
			assert.Equal(t, tt.wantSession, got.SessionID)
			assert.Equal(t, tt.wantError, got.IsError)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{"fenced json", "Result:\n```json\n{\"score\": 5}\n```\ntrailing {x}", `{"score": 5}`, true},
		{"fenced without language", "```\n{\"a\":1}\n```", `{"a":1}`, true},
		{"prose around object", `The result is {"score": 7, "findings": []} as requested.`, `{"score": 7, "findings": []}`, true},
		{"nested objects", `x {"a": {"b": {}}} y {"c": 1}`, `{"a": {"b": {}}}`, true},
		{"braces in strings", `{"title": "use } carefully", "n": 1}`, `{"title": "use } carefully", "n": 1}`, true},
		{"escaped quote", `{"t": "say \"}\"", "n": 2}`, `{"t": "say \"}\"", "n": 2}`, true},
		{"unbalanced then balanced", `{ broken {"ok": true}`, `{"ok": true}`, true},
		{"no object", "no json here", "", false},
		{"only open", "{ never closed", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.text)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
