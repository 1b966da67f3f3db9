package lib

import (
	"context"
	"time"
)

// FactorKind tags the authentication method type on challenges, enrolled
// methods and start requests. The values match the wire `type` field.
type FactorKind string

const (
	FactorEmail        FactorKind = "email"
	FactorPhone        FactorKind = "phone"
	FactorTOTP         FactorKind = "totp"
	FactorPush         FactorKind = "push-notification"
	FactorPasskey      FactorKind = "passkey"
	FactorRecoveryCode FactorKind = "recovery-code"
)

func (k FactorKind) Valid() bool {
	switch k {
	case FactorEmail, FactorPhone, FactorTOTP, FactorPush, FactorPasskey, FactorRecoveryCode:
		return true
	}
	return false
}

// Delivery channel for phone enrollment.
const (
	ChannelSMS   = "sms"
	ChannelVoice = "voice"
)

// AuthenticationMethod is a confirmed or pending enrolled factor.
//
// Identity is the ID alone: two records with the same ID are the same
// method regardless of drift in the other fields. List consumers rely on
// this for stable diffing, so compare with Equal, not ==.
type AuthenticationMethod struct {
	ID         string     `json:"id"`
	Type       FactorKind `json:"type"`
	Confirmed  bool       `json:"confirmed"`
	CreatedAt  time.Time  `json:"created_at"`
	LastAuthAt *time.Time `json:"last_auth_at,omitempty"`
}

func (m AuthenticationMethod) Equal(other AuthenticationMethod) bool {
	return m.ID == other.ID
}

// StartRequest carries the factor-specific inputs for starting an
// enrollment. Only the fields relevant to Kind are read.
type StartRequest struct {
	Kind FactorKind

	// email enrollment
	Email string

	// phone enrollment; Channel defaults to sms
	PhoneNumber string
	Channel     string

	// optional passkey hints
	IdentityUserID string
	Connection     string
}

// Challenge is the single-use server-issued state needed to complete an
// enrollment. A confirm call must carry exactly the AuthenticationID and
// AuthSession issued by the matching start call; challenges are never
// persisted and are discarded after one confirm attempt.
type Challenge struct {
	Kind             FactorKind
	AuthenticationID string
	AuthSession      string

	// set when Kind == FactorTOTP
	TOTP *TOTPChallenge
	// set when Kind == FactorPasskey
	Passkey *PasskeyChallenge
	// set when Kind == FactorRecoveryCode. Plaintext; must never be logged.
	RecoveryCode string
}

type TOTPChallenge struct {
	Secret     string
	BarcodeURI string
}

type PasskeyChallenge struct {
	RelyingPartyID string
	UserID         []byte
	UserName       string
	Challenge      []byte
}

// PasskeyCredential is the opaque value a platform credential provider
// hands back after creating a passkey for a challenge.
type PasskeyCredential struct {
	CredentialID    string `json:"id"`
	ClientData      string `json:"client_data"`
	AttestationData string `json:"attestation_data"`
}

// PasskeyProvider creates a platform credential for a passkey challenge.
// Implementations are interactive and must honor ctx cancellation.
type PasskeyProvider interface {
	Create(ctx context.Context, ch *PasskeyChallenge) (*PasskeyCredential, error)
}

// Proof is the user-supplied half of a confirm call. OTPCode for
// email/phone/totp, Passkey for passkey; push and recovery-code confirm
// with the challenge session alone.
type Proof struct {
	OTPCode string
	Passkey *PasskeyCredential
}
