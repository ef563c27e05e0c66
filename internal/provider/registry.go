package provider

import (
	"fmt"
	"os"
	"sort"
)

// Spec configures one named provider.
type Spec struct {
	Name         string
	Command      string // CLI binary, "claude" when empty
	Model        string
	Endpoint     string // base URL override
	APIKeyEnv    string // process env var holding the API key
	AuthTokenEnv string // process env var holding a bearer token
}

// Backend builds the Provider for a Spec.
type Backend func(Spec) Provider

type entry struct {
	provider Provider
	exec     ExecutionContext
}

// Registry maps gates to providers. It is built once per run; credentials
// are resolved from the environment at construction and never re-read.
type Registry struct {
	entries     map[string]entry
	routing     map[string]string
	defaultName string
}

// RegistryOption customizes a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	lookupEnv func(string) (string, bool)
	backend   Backend
}

// WithLookupEnv replaces os.LookupEnv for credential resolution.
func WithLookupEnv(fn func(string) (string, bool)) RegistryOption {
	return func(o *registryOptions) {
		o.lookupEnv = fn
	}
}

// WithBackend replaces the default claude CLI backend.
func WithBackend(b Backend) RegistryOption {
	return func(o *registryOptions) {
		o.backend = b
	}
}

// NewRegistry builds a registry from provider specs and a gate→provider
// routing table. Gates without a route use defaultName.
func NewRegistry(specs []Spec, routing map[string]string, defaultName string, opts ...RegistryOption) (*Registry, error) {
	o := registryOptions{
		lookupEnv: os.LookupEnv,
		backend:   func(s Spec) Provider { return NewClaudeCLI(s) },
	}
	for _, opt := range opts {
		opt(&o)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	r := &Registry{
		entries:     make(map[string]entry, len(specs)),
		routing:     make(map[string]string, len(routing)),
		defaultName: defaultName,
	}

	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("provider with empty name")
		}
		if _, dup := r.entries[s.Name]; dup {
			return nil, fmt.Errorf("duplicate provider %q", s.Name)
		}
		env, err := resolveEnv(s, o.lookupEnv)
		if err != nil {
			return nil, err
		}
		r.entries[s.Name] = entry{
			provider: o.backend(s),
			exec:     NewExecutionContext(s.Name, env),
		}
	}

	if r.defaultName == "" && len(specs) == 1 {
		r.defaultName = specs[0].Name
	}
	if _, ok := r.entries[r.defaultName]; !ok {
		return nil, fmt.Errorf("default provider %q is not configured", r.defaultName)
	}

	for gate, name := range routing {
		if _, ok := r.entries[name]; !ok {
			return nil, fmt.Errorf("gate %q routed to unknown provider %q", gate, name)
		}
		r.routing[gate] = name
	}

	return r, nil
}

// NewStaticRegistry routes every gate to p under the given label.
func NewStaticRegistry(label string, p Provider) *Registry {
	return &Registry{
		entries:     map[string]entry{label: {provider: p, exec: NewExecutionContext(label, nil)}},
		routing:     map[string]string{},
		defaultName: label,
	}
}

// ClientForGate returns the provider and the execution context for one call.
// The returned ExecutionContext is a private copy.
func (r *Registry) ClientForGate(gate string) (Provider, ExecutionContext, error) {
	name, ok := r.routing[gate]
	if !ok {
		name = r.defaultName
	}
	e, ok := r.entries[name]
	if !ok {
		return nil, ExecutionContext{}, fmt.Errorf("no provider for gate %q", gate)
	}
	return e.provider, NewExecutionContext(e.exec.label, e.exec.env), nil
}

// Names lists configured providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func resolveEnv(s Spec, lookup func(string) (string, bool)) (map[string]string, error) {
	env := map[string]string{}
	if s.Endpoint != "" {
		env[EnvBaseURL] = s.Endpoint
	}
	if s.APIKeyEnv != "" {
		v, ok := lookup(s.APIKeyEnv)
		if !ok || v == "" {
			return nil, fmt.Errorf("provider %q: environment variable %s is not set", s.Name, s.APIKeyEnv)
		}
		env[EnvAPIKey] = v
	}
	if s.AuthTokenEnv != "" {
		v, ok := lookup(s.AuthTokenEnv)
		if !ok || v == "" {
			return nil, fmt.Errorf("provider %q: environment variable %s is not set", s.Name, s.AuthTokenEnv)
		}
		env[EnvAuthToken] = v
	}
	return env, nil
}
