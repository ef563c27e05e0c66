package platform

import (
	"context"
	"fmt"
	"os"
)

// Backend kinds.
const (
	KindAuto   = "auto"
	KindGH     = "gh"
	KindGitHub = "github"
)

// DefaultTokenEnv is read for the REST token when Options.TokenEnv is empty.
const DefaultTokenEnv = "GITHUB_TOKEN"

// Options selects and configures a backend.
type Options struct {
	Kind              string
	Repo              string
	TokenEnv          string
	RequestsPerSecond float64
	BaseURL           string

	LookupEnv func(string) (string, bool)
	Runner    CmdRunner
}

// New builds the configured Client, wrapped in Paced. With KindAuto the
// REST backend is used when a token and repo are available, otherwise gh.
// The returned note is non-empty when auto selection fell back to gh.
func New(ctx context.Context, opts Options) (Client, string, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	tokenEnv := opts.TokenEnv
	if tokenEnv == "" {
		tokenEnv = DefaultTokenEnv
	}
	token, _ := lookup(tokenEnv)

	runner := opts.Runner
	if runner == nil {
		runner = &ExecRunner{}
	}

	var inner Client
	var note string
	switch opts.Kind {
	case KindGH:
		inner = NewGH(runner, opts.Repo)
	case KindGitHub:
		rest, err := newREST(ctx, token, opts)
		if err != nil {
			return nil, "", err
		}
		inner = rest
	case "", KindAuto:
		if token != "" && opts.Repo != "" {
			rest, err := newREST(ctx, token, opts)
			if err != nil {
				return nil, "", err
			}
			inner = rest
		} else {
			note = fmt.Sprintf("%s not set - using gh CLI authentication", tokenEnv)
			if token != "" {
				note = "platform.repo not set - using gh CLI"
			}
			inner = NewGH(runner, opts.Repo)
		}
	default:
		return nil, "", fmt.Errorf("unknown platform kind %q", opts.Kind)
	}

	return NewPaced(inner, opts.RequestsPerSecond), note, nil
}

func newREST(ctx context.Context, token string, opts Options) (*REST, error) {
	var restOpts []RESTOption
	if opts.BaseURL != "" {
		restOpts = append(restOpts, WithBaseURL(opts.BaseURL))
	}
	return NewREST(ctx, token, opts.Repo, restOpts...)
}
