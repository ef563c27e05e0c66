package provider

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionContext_CopiesInput(t *testing.T) {
	env := map[string]string{EnvBaseURL: "https://a.example"}
	ec := NewExecutionContext("a", env)

	env[EnvBaseURL] = "https://mutated.example"
	assert.Equal(t, []string{"ANTHROPIC_BASE_URL=https://a.example"}, ec.Environ(nil))
}

func TestExecutionContext_Environ(t *testing.T) {
	ec := NewExecutionContext("alt", map[string]string{
		EnvBaseURL: "https://alt.example",
		EnvAPIKey:  "sk-alt",
	})
	base := []string{"PATH=/usr/bin", "ANTHROPIC_API_KEY=sk-default", "HOME=/home/x"}

	got := ec.Environ(base)

	assert.Equal(t, []string{
		"PATH=/usr/bin",
		"HOME=/home/x",
		"ANTHROPIC_API_KEY=sk-alt",
		"ANTHROPIC_BASE_URL=https://alt.example",
	}, got)
	assert.Equal(t, "ANTHROPIC_API_KEY=sk-default", base[1], "base must not be modified")
}

func TestExecutionContext_EmptyInheritsBase(t *testing.T) {
	var ec ExecutionContext
	base := []string{"A=1", "B=2"}
	assert.Equal(t, base, ec.Environ(base))
	assert.Equal(t, "", ec.Label())
}

func TestExecutionContext_StringRedactsCredentials(t *testing.T) {
	ec := NewExecutionContext("alt", map[string]string{
		EnvBaseURL:   "https://alt.example",
		EnvAPIKey:    "sk-secret",
		EnvAuthToken: "tok-secret",
	})
	s := ec.String()
	assert.Contains(t, s, "https://alt.example")
	assert.NotContains(t, s, "sk-secret")
	assert.NotContains(t, s, "tok-secret")
}

func TestExecutionContext_ConcurrentEnviron(t *testing.T) {
	a := NewExecutionContext("a", map[string]string{EnvBaseURL: "https://a.example"})
	b := NewExecutionContext("b", map[string]string{EnvBaseURL: "https://b.example"})
	base := []string{"PATH=/bin"}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.Contains(t, a.Environ(base), "ANTHROPIC_BASE_URL=https://a.example")
		}()
		go func() {
			defer wg.Done()
			assert.Contains(t, b.Environ(base), "ANTHROPIC_BASE_URL=https://b.example")
		}()
	}
	wg.Wait()
}
