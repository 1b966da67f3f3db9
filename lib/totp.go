package lib

import (
	"time"

	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// DeriveTOTPCode computes the passcode for a TOTP challenge at the given
// time, so an enrollment can be confirmed without a separate
// authenticator app. Falls back to parsing the barcode URI when the
// challenge carries no bare secret.
func DeriveTOTPCode(ch *TOTPChallenge, at time.Time) (string, error) {
	secret := ch.Secret
	if secret == "" {
		if ch.BarcodeURI == "" {
			return "", errors.New("challenge carries no totp secret")
		}
		key, err := otp.NewKeyFromURL(ch.BarcodeURI)
		if err != nil {
			return "", errors.Wrap(err, "parsing barcode uri")
		}
		secret = key.Secret()
	}
	return totp.GenerateCode(secret, at)
}
