package lib

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registryServer fakes the list/delete half of the account API over an
// in-memory method set.
type registryServer struct {
	methods []AuthenticationMethod
}

func (s *registryServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == "GET" && r.URL.Path == "/me/v1/authentication-methods":
		writeJSON(w, 200, s.methods)

	case r.Method == "DELETE" && strings.HasPrefix(r.URL.Path, "/me/v1/authentication-methods/"):
		id := strings.TrimPrefix(r.URL.Path, "/me/v1/authentication-methods/")
		for i, m := range s.methods {
			if m.ID == id {
				s.methods = append(s.methods[:i], s.methods[i+1:]...)
				w.WriteHeader(204)
				return
			}
		}
		writeJSON(w, 404, map[string]string{"message": "authentication method not found"})

	default:
		writeJSON(w, 404, map[string]string{"message": "not found"})
	}
}

func newTestRegistry(t *testing.T, server *registryServer, creds CredentialProvider, stepUp StepUpAuthenticator) *Registry {
	client, _ := newTestClient(t, server)
	return &Registry{
		Client:       client,
		Creds:        creds,
		Orchestrator: &Orchestrator{StepUp: stepUp},
	}
}

func seedMethods() []AuthenticationMethod {
	created := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return []AuthenticationMethod{
		{ID: "am_email_1", Type: FactorEmail, Confirmed: true, CreatedAt: created},
		{ID: "am_totp_1", Type: FactorTOTP, Confirmed: true, CreatedAt: created.Add(time.Hour)},
		{ID: "am_phone_1", Type: FactorPhone, Confirmed: false, CreatedAt: created.Add(2 * time.Hour)},
	}
}

func TestRegistryList(t *testing.T) {
	server := &registryServer{methods: seedMethods()}
	registry := newTestRegistry(t, server, &staticCreds{cred: validCred()}, &fakeStepUp{})
	ctx := context.Background()

	methods, err := registry.List(ctx, testAudience())
	require.NoError(t, err)
	require.Len(t, methods, 3)

	// list is unfiltered: unconfirmed methods come back too
	assert.False(t, methods[2].Confirmed)

	// listing is idempotent
	again, err := registry.List(ctx, testAudience())
	require.NoError(t, err)
	assert.Equal(t, methods, again)
}

func TestRegistryDeleteThenList(t *testing.T) {
	server := &registryServer{methods: seedMethods()}
	registry := newTestRegistry(t, server, &staticCreds{cred: validCred()}, &fakeStepUp{})
	ctx := context.Background()

	require.NoError(t, registry.Delete(ctx, testAudience(), "am_totp_1"))

	methods, err := registry.List(ctx, testAudience())
	require.NoError(t, err)
	require.Len(t, methods, 2)
	for _, m := range methods {
		assert.NotEqual(t, "am_totp_1", m.ID)
	}
}

func TestRegistryDeleteMissing(t *testing.T) {
	server := &registryServer{methods: seedMethods()}
	registry := newTestRegistry(t, server, &staticCreds{cred: validCred()}, &fakeStepUp{})

	err := registry.Delete(context.Background(), testAudience(), "am_nope")
	var fe *FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindUnknown, fe.Kind)
}

func TestRegistryListStepsUp(t *testing.T) {
	server := &registryServer{methods: seedMethods()}
	creds := &staticCreds{
		cred:     validCred(),
		failWith: &apiError{StatusCode: 403, Code: "mfa_required"},
		failures: 1,
	}
	stepUp := &fakeStepUp{}
	registry := newTestRegistry(t, server, creds, stepUp)

	methods, err := registry.List(context.Background(), testAudience())
	require.NoError(t, err)
	assert.Equal(t, 1, stepUp.calls)
	assert.Len(t, methods, 3)
}

func TestAuthenticationMethodEqual(t *testing.T) {
	now := time.Now()
	a := AuthenticationMethod{ID: "am_1", Type: FactorEmail, Confirmed: false, CreatedAt: now}
	b := AuthenticationMethod{ID: "am_1", Type: FactorEmail, Confirmed: true, CreatedAt: now.Add(time.Minute), LastAuthAt: &now}
	c := AuthenticationMethod{ID: "am_2", Type: FactorEmail, Confirmed: false, CreatedAt: now}

	// identity is the id alone
	assert.True(t, a.Equal(a))
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
}
