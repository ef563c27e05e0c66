package provider

import (
	"fmt"
	"sort"
	"strings"
)

// Environment variables a provider backend reads for routing and credentials.
const (
	EnvBaseURL   = "ANTHROPIC_BASE_URL"
	EnvAPIKey    = "ANTHROPIC_API_KEY"
	EnvAuthToken = "ANTHROPIC_AUTH_TOKEN"
)

// ExecutionContext is the immutable per-call view of a provider: its label
// and the environment overrides (endpoint, credentials) the call must run
// with. Values are copied in and out, so concurrent calls never share a map.
type ExecutionContext struct {
	label string
	env   map[string]string
}

// NewExecutionContext copies env into a new ExecutionContext.
func NewExecutionContext(label string, env map[string]string) ExecutionContext {
	cp := make(map[string]string, len(env))
	for k, v := range env {
		cp[k] = v
	}
	return ExecutionContext{label: label, env: cp}
}

// Label names the provider the call is routed to.
func (e ExecutionContext) Label() string {
	return e.label
}

// Environ merges the overrides over base (KEY=VALUE entries) and returns a
// new slice. base is not modified.
func (e ExecutionContext) Environ(base []string) []string {
	out := make([]string, 0, len(base)+len(e.env))
	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if _, overridden := e.env[key]; overridden {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range e.sortedKeys() {
		out = append(out, k+"="+e.env[k])
	}
	return out
}

// String renders the context with credential values redacted.
func (e ExecutionContext) String() string {
	parts := make([]string, 0, len(e.env))
	for _, k := range e.sortedKeys() {
		v := e.env[k]
		if k != EnvBaseURL {
			v = "***"
		}
		parts = append(parts, k+"="+v)
	}
	return fmt.Sprintf("%s{%s}", e.label, strings.Join(parts, " "))
}

func (e ExecutionContext) sortedKeys() []string {
	keys := make([]string, 0, len(e.env))
	for k := range e.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
