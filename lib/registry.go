package lib

import (
	"context"
)

// Registry reads and deletes already-enrolled authentication methods.
// List is unfiltered; filtering by type or confirmed state is the
// caller's job. Both operations are submitted through the same
// orchestrator as enrollment calls.
type Registry struct {
	Client       *Client
	Creds        CredentialProvider
	Orchestrator *Orchestrator
}

func (r *Registry) List(ctx context.Context, aud ScopedAudience) ([]AuthenticationMethod, error) {
	var methods []AuthenticationMethod
	_, err := r.Orchestrator.Run(ctx, aud, func(ctx context.Context) error {
		cred, err := r.Creds.Credentials(ctx, aud)
		if err != nil {
			return err
		}
		listed, err := r.Client.listMethods(ctx, cred)
		if err != nil {
			return err
		}
		methods = listed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return methods, nil
}

func (r *Registry) Delete(ctx context.Context, aud ScopedAudience, methodID string) error {
	_, err := r.Orchestrator.Run(ctx, aud, func(ctx context.Context) error {
		cred, err := r.Creds.Credentials(ctx, aud)
		if err != nil {
			return err
		}
		return r.Client.deleteMethod(ctx, cred, methodID)
	})
	return err
}
