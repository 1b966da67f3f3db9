package lib

import (
	"context"
	"encoding/base64"
	"time"

	u2f "github.com/marshallbrekka/go-u2fhost"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// U2FCredentialCreator creates the enrollment credential on an attached
// FIDO hardware key. It satisfies PasskeyProvider for environments
// without a platform authenticator.
type U2FCredentialCreator struct {
	// Facet defaults to https://<relying party id>
	Facet string
}

func (c *U2FCredentialCreator) Create(ctx context.Context, ch *PasskeyChallenge) (*PasskeyCredential, error) {
	facet := c.Facet
	if facet == "" {
		facet = "https://" + ch.RelyingPartyID
	}
	req := &u2f.RegisterRequest{
		Challenge: base64.RawURLEncoding.EncodeToString(ch.Challenge),
		AppId:     ch.RelyingPartyID,
		Facet:     facet,
	}

	devices := u2f.Devices()
	log.Debugf("Found %d device(s)", len(devices))

	openDevices := []u2f.Device{}
	for i, device := range devices {
		if err := device.Open(); err != nil {
			log.Warnf("Failed opening device : %s", err)
			continue
		}
		openDevices = append(openDevices, u2f.Device(devices[i]))
		defer func(i int) {
			devices[i].Close()
		}(i)
		version, err := device.Version()
		if err != nil {
			log.Debugf("Device version error: %s", err.Error())
		} else {
			log.Debugf("Device version: %s", version)
		}
	}

	if len(openDevices) == 0 {
		return nil, errors.New("no U2F devices found")
	}

	timeout := time.After(time.Second * 25)
	interval := time.NewTicker(time.Millisecond * 250)
	defer interval.Stop()

	log.Infof("Touch the flashing U2F device to register...")
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, errors.New("no registration response after 25 seconds")
		case <-interval.C:
			for _, device := range openDevices {
				response, err := device.Register(req)
				if err == nil {
					// the key handle rides inside the registration data;
					// the server extracts the credential id itself
					return &PasskeyCredential{
						ClientData:      response.ClientData,
						AttestationData: response.RegistrationData,
					}, nil
				}
				log.Debugf("Got status response %s", err)
			}
		}
	}
}
