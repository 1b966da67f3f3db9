package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	analytics "github.com/segmentio/analytics-go"
	"github.com/spf13/cobra"

	"github.com/idkit/mfactl/lib"
)

var (
	enrollEmail   string
	enrollPhone   string
	enrollChannel string
	enrollDerive  bool
)

// enrollCmd represents the enroll command
var enrollCmd = &cobra.Command{
	Use:   "enroll <email|phone|totp|push|passkey|recovery-code>",
	Short: "enroll a new authentication method on your account",
	Example: `  mfactl enroll email --email you@example.com
  mfactl enroll phone --phone +15551230000 --channel sms
  mfactl enroll totp --derive`,
	RunE: enrollRun,
}

func init() {
	RootCmd.AddCommand(enrollCmd)
	enrollCmd.Flags().StringVar(&enrollEmail, "email", "", "Email address to enroll")
	enrollCmd.Flags().StringVar(&enrollPhone, "phone", "", "Phone number to enroll, E.164 format")
	enrollCmd.Flags().StringVar(&enrollChannel, "channel", "", "Delivery channel for phone enrollment (sms or voice)")
	enrollCmd.Flags().BoolVar(&enrollDerive, "derive", false, "Derive the TOTP passcode from the enrollment secret instead of prompting")
}

func factorKindFromArg(arg string) (lib.FactorKind, error) {
	switch arg {
	case "email":
		return lib.FactorEmail, nil
	case "phone", "sms":
		return lib.FactorPhone, nil
	case "totp":
		return lib.FactorTOTP, nil
	case "push", "push-notification":
		return lib.FactorPush, nil
	case "passkey":
		return lib.FactorPasskey, nil
	case "recovery-code", "recovery":
		return lib.FactorRecoveryCode, nil
	}
	return "", fmt.Errorf("unknown factor %q", arg)
}

func enrollRun(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return ErrTooFewArguments
	}
	if len(args) > 1 {
		return ErrTooManyArguments
	}

	kind, err := factorKindFromArg(args[0])
	if err != nil {
		return err
	}

	req := lib.StartRequest{
		Kind:        kind,
		Email:       enrollEmail,
		PhoneNumber: enrollPhone,
		Channel:     enrollChannel,
	}

	s := newStack()
	flow := &lib.Flow{
		Enroller:     s.enroller,
		Orchestrator: s.orch,
		Audience:     audienceFor(lib.ScopeCreateMethods),
	}

	ctx := cmd.Context()
	challenge, err := flow.Start(ctx, req)
	if err != nil {
		return friendly(err)
	}

	// a step-up mid-confirm discards the challenge; one restart round is
	// all a well-behaved server ever needs
	var method *lib.AuthenticationMethod
	for round := 0; ; round++ {
		proof, err := collectProof(ctx, challenge)
		if err != nil {
			return err
		}

		method, err = flow.Confirm(ctx, req, challenge, proof)
		if err == nil {
			break
		}

		var restarted *lib.ChallengeRestartedError
		if errors.As(err, &restarted) && round == 0 {
			fmt.Println("Additional verification was required; a new challenge was issued.")
			challenge = restarted.Challenge
			continue
		}
		return friendly(err)
	}

	fmt.Printf("Enrolled %s method %s\n", method.Type, method.ID)
	track("Enrolled Method", analytics.NewProperties().Set("factor", string(kind)))
	return nil
}

func collectProof(ctx context.Context, ch *lib.Challenge) (lib.Proof, error) {
	switch ch.Kind {
	case lib.FactorEmail, lib.FactorPhone:
		code, err := lib.Prompt("Enter the passcode you received", false)
		return lib.Proof{OTPCode: code}, err

	case lib.FactorTOTP:
		fmt.Printf("Add this secret to your authenticator: %s\n", ch.TOTP.Secret)
		if ch.TOTP.BarcodeURI != "" {
			fmt.Printf("Or scan: %s\n", ch.TOTP.BarcodeURI)
		}
		if enrollDerive {
			code, err := lib.DeriveTOTPCode(ch.TOTP, time.Now())
			return lib.Proof{OTPCode: code}, err
		}
		code, err := lib.Prompt("Enter the passcode from your authenticator", false)
		return lib.Proof{OTPCode: code}, err

	case lib.FactorPush:
		_, err := lib.Prompt("Approve the request on your device, then press enter", false)
		return lib.Proof{}, err

	case lib.FactorPasskey:
		creator := &lib.U2FCredentialCreator{}
		passkey, err := creator.Create(ctx, ch.Passkey)
		if err != nil {
			return lib.Proof{}, err
		}
		return lib.Proof{Passkey: passkey}, nil

	case lib.FactorRecoveryCode:
		// print, don't log: the code must never hit log output
		fmt.Printf("Your recovery code (store it somewhere safe):\n\n  %s\n\n", ch.RecoveryCode)
		_, err := lib.Prompt("Press enter once you have saved it", false)
		return lib.Proof{}, err
	}

	return lib.Proof{}, fmt.Errorf("unsupported factor %q", ch.Kind)
}
