package cmd

import (
	"errors"
	"fmt"

	"github.com/idkit/mfactl/internal/credcache"
	"github.com/idkit/mfactl/lib"
)

// stack wires the core components for one command invocation. Everything
// hangs off the keyring and tenant config built in prerun.
type stack struct {
	client   *lib.Client
	tokens   *lib.TokenStore
	creds    *lib.Provider
	orch     *lib.Orchestrator
	enroller *lib.Enroller
	registry *lib.Registry
}

func newStack() *stack {
	tokens := &lib.TokenStore{Keyring: kr}
	creds := &lib.Provider{
		Source: &lib.RefreshTokenSource{Config: appConfig, Tokens: tokens},
		Cache:  &credcache.SingleKrItemStore{Keyring: kr},
	}
	stepUp := &lib.StepUp{
		Login:  &lib.BrowserLogin{Config: appConfig},
		Creds:  creds,
		Tokens: tokens,
	}
	client := lib.NewClient(appConfig.Domain)

	return &stack{
		client:   client,
		tokens:   tokens,
		creds:    creds,
		orch:     &lib.Orchestrator{StepUp: stepUp},
		enroller: &lib.Enroller{Client: client, Creds: creds},
		registry: &lib.Registry{
			Client:       client,
			Creds:        creds,
			Orchestrator: &lib.Orchestrator{StepUp: stepUp},
		},
	}
}

func audienceFor(scopes ...string) lib.ScopedAudience {
	return lib.NewScopedAudience(appConfig.Audience, scopes...)
}

// friendly unwraps an orchestrated failure to its user-facing message;
// the full cause stays in the debug log.
func friendly(err error) error {
	var fe *lib.FlowError
	if errors.As(err, &fe) {
		return fmt.Errorf("%s", fe.Message())
	}
	return err
}
