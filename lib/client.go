package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/idkit/mfactl/internal/credcache"
)

const accountAPIBasePath = "me/v1"

// Client issues the account-management API calls. It is a thin wrapper
// over one HTTP call per operation; retry and step-up policy live in the
// Orchestrator, not here.
type Client struct {
	Domain     string
	HTTPClient *http.Client
}

func NewClient(domain string) *Client {
	return &Client{
		Domain: domain,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError is a non-2xx response from the API, decoded best-effort.
type apiError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
	// some endpoints use `message` instead of `error_description`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	desc := e.Description
	if desc == "" {
		desc = e.Message
	}
	if e.Code == "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, desc)
	}
	return fmt.Sprintf("api error %s (status %d): %s", e.Code, e.StatusCode, desc)
}

func (e *apiError) text() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Message
}

// decodeError marks a response that could not be parsed into the
// expected model.
type decodeError struct {
	cause error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %s", e.cause)
}

func (e *decodeError) Unwrap() error {
	return e.cause
}

func (c *Client) do(ctx context.Context, method, path string, cred *credcache.Credential, body, recv interface{}) error {
	u, err := url.Parse(fmt.Sprintf("https://%s/%s/%s", c.Domain, accountAPIBasePath, path))
	if err != nil {
		return errors.Wrap(err, "building request url")
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set("Authorization", fmt.Sprintf("%s %s", cred.TokenType, cred.AccessToken))

	log.Debugf("%s %s", method, u.Path)
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return decodeAPIError(res)
	}

	if recv != nil {
		if err := json.NewDecoder(res.Body).Decode(recv); err != nil {
			return &decodeError{cause: err}
		}
	}
	return nil
}

func decodeAPIError(res *http.Response) error {
	apiErr := apiError{StatusCode: res.StatusCode}
	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err == nil {
		// tolerate non-JSON error bodies; status code still classifies
		_ = json.Unmarshal(data, &apiErr)
	}
	log.Debugf("api error: status=%d code=%s", apiErr.StatusCode, apiErr.Code)
	return &apiErr
}

// wire shapes

type enrollRequest struct {
	Type                          string `json:"type"`
	Email                         string `json:"email,omitempty"`
	PhoneNumber                   string `json:"phone_number,omitempty"`
	PreferredAuthenticationMethod string `json:"preferred_authentication_method,omitempty"`
	IdentityUserID                string `json:"identity_user_id,omitempty"`
	Connection                    string `json:"connection,omitempty"`
}

type challengeResponse struct {
	ID          string `json:"id"`
	AuthSession string `json:"auth_session"`
	Type        string `json:"type"`

	// totp
	Secret     string `json:"secret,omitempty"`
	BarcodeURI string `json:"barcode_uri,omitempty"`

	// passkey
	RelyingPartyID string `json:"relying_party_id,omitempty"`
	UserID         []byte `json:"user_id,omitempty"`
	UserName       string `json:"user_name,omitempty"`
	WebAuthnData   []byte `json:"challenge,omitempty"`

	// recovery code
	RecoveryCode string `json:"recovery_code,omitempty"`
}

type verifyRequest struct {
	AuthSession   string             `json:"auth_session"`
	OTPCode       string             `json:"otp_code,omitempty"`
	AuthnResponse *PasskeyCredential `json:"authn_response,omitempty"`
}

func (c *Client) listMethods(ctx context.Context, cred *credcache.Credential) ([]AuthenticationMethod, error) {
	var methods []AuthenticationMethod
	if err := c.do(ctx, "GET", "authentication-methods", cred, nil, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

func (c *Client) deleteMethod(ctx context.Context, cred *credcache.Credential, id string) error {
	return c.do(ctx, "DELETE", "authentication-methods/"+url.PathEscape(id), cred, nil, nil)
}

func (c *Client) startEnrollment(ctx context.Context, cred *credcache.Credential, req enrollRequest) (*challengeResponse, error) {
	var resp challengeResponse
	if err := c.do(ctx, "POST", "authentication-methods", cred, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) verifyEnrollment(ctx context.Context, cred *credcache.Credential, id string, req verifyRequest) (*AuthenticationMethod, error) {
	var method AuthenticationMethod
	path := "authentication-methods/" + url.PathEscape(id) + "/verify"
	if err := c.do(ctx, "POST", path, cred, req, &method); err != nil {
		return nil, err
	}
	return &method, nil
}
