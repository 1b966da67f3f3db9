package lib

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Enroller executes the two-phase enrollment protocol for any factor
// kind: start allocates a server-side challenge (and, for email/phone,
// dispatches the out-of-band code), confirm completes it with the
// user-supplied proof.
//
// Start is not idempotent: starting again for the same intent means the
// previous challenge must be discarded.
type Enroller struct {
	Client *Client
	Creds  CredentialProvider
}

func (e *Enroller) Start(ctx context.Context, aud ScopedAudience, req StartRequest) (*Challenge, error) {
	if !req.Kind.Valid() {
		return nil, errors.Errorf("unsupported factor kind %q", req.Kind)
	}

	cred, err := e.Creds.Credentials(ctx, aud)
	if err != nil {
		return nil, err
	}

	wire := enrollRequest{Type: string(req.Kind)}
	switch req.Kind {
	case FactorEmail:
		wire.Email = req.Email
	case FactorPhone:
		wire.PhoneNumber = req.PhoneNumber
		wire.PreferredAuthenticationMethod = req.Channel
		if wire.PreferredAuthenticationMethod == "" {
			wire.PreferredAuthenticationMethod = ChannelSMS
		}
	case FactorPasskey:
		wire.IdentityUserID = req.IdentityUserID
		wire.Connection = req.Connection
	}

	log.Debugf("Starting %s enrollment", req.Kind)
	resp, err := e.Client.startEnrollment(ctx, cred, wire)
	if err != nil {
		return nil, err
	}

	ch := &Challenge{
		Kind:             req.Kind,
		AuthenticationID: resp.ID,
		AuthSession:      resp.AuthSession,
	}
	switch req.Kind {
	case FactorTOTP:
		ch.TOTP = &TOTPChallenge{Secret: resp.Secret, BarcodeURI: resp.BarcodeURI}
	case FactorPasskey:
		ch.Passkey = &PasskeyChallenge{
			RelyingPartyID: resp.RelyingPartyID,
			UserID:         resp.UserID,
			UserName:       resp.UserName,
			Challenge:      resp.WebAuthnData,
		}
	case FactorRecoveryCode:
		ch.RecoveryCode = resp.RecoveryCode
	}
	return ch, nil
}

func (e *Enroller) Confirm(ctx context.Context, aud ScopedAudience, ch *Challenge, proof Proof) (*AuthenticationMethod, error) {
	cred, err := e.Creds.Credentials(ctx, aud)
	if err != nil {
		return nil, err
	}

	wire := verifyRequest{AuthSession: ch.AuthSession}
	switch ch.Kind {
	case FactorEmail, FactorPhone, FactorTOTP:
		wire.OTPCode = proof.OTPCode
	case FactorPasskey:
		if proof.Passkey == nil {
			return nil, errors.New("passkey confirmation requires a platform-created credential")
		}
		wire.AuthnResponse = proof.Passkey
	}
	// push and recovery-code confirm with the challenge session alone

	log.Debugf("Confirming %s enrollment %s", ch.Kind, ch.AuthenticationID)
	return e.Client.verifyEnrollment(ctx, cred, ch.AuthenticationID, wire)
}

// ChallengeRestartedError reports that a step-up interrupted a confirm:
// the stale challenge was discarded, enrollment was restarted, and the
// caller must collect a fresh proof for the new challenge.
type ChallengeRestartedError struct {
	Challenge *Challenge
}

func (e *ChallengeRestartedError) Error() string {
	return "challenge restarted after step-up; a new proof is required"
}

// Flow drives a complete enrollment for one audience through the
// recovery policy. It is what a screen-level controller talks to.
type Flow struct {
	Enroller     *Enroller
	Orchestrator *Orchestrator
	Audience     ScopedAudience
}

func (f *Flow) Start(ctx context.Context, req StartRequest) (*Challenge, error) {
	var ch *Challenge
	_, err := f.Orchestrator.Run(ctx, f.Audience, func(ctx context.Context) error {
		started, err := f.Enroller.Start(ctx, f.Audience, req)
		if err != nil {
			return err
		}
		ch = started
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Confirm completes the challenge with the supplied proof. If a step-up
// was needed mid-confirm, the old challenge is bound to the pre-upgrade
// token and cannot be resumed; Confirm then restarts from Start and
// returns a *ChallengeRestartedError carrying the fresh challenge.
func (f *Flow) Confirm(ctx context.Context, req StartRequest, ch *Challenge, proof Proof) (*AuthenticationMethod, error) {
	var method *AuthenticationMethod
	var restarted *Challenge

	op := func(ctx context.Context) error {
		confirmed, err := f.Enroller.Confirm(ctx, f.Audience, ch, proof)
		if err != nil {
			return err
		}
		method = confirmed
		return nil
	}
	retry := func(ctx context.Context) error {
		fresh, err := f.Enroller.Start(ctx, f.Audience, req)
		if err != nil {
			return err
		}
		restarted = fresh
		return nil
	}

	if _, err := f.Orchestrator.RunWithRetry(ctx, f.Audience, op, retry); err != nil {
		return nil, err
	}
	if restarted != nil {
		return nil, &ChallengeRestartedError{Challenge: restarted}
	}
	return method, nil
}
