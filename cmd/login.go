package cmd

import (
	"fmt"
	"strings"
	"time"

	analytics "github.com/segmentio/analytics-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/idkit/mfactl/lib"
)

var loginTimeout time.Duration

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "login authenticates you in the browser and stores your session in the keyring",
	RunE:  loginRun,
}

func init() {
	RootCmd.AddCommand(loginCmd)
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 5*time.Minute, "How long to wait for the browser login to complete")
}

func loginRun(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return ErrTooManyArguments
	}

	// the initial login asks for everything the CLI can do, plus
	// offline_access so follow-up commands can mint scoped credentials
	// without another browser round-trip
	aud := lib.ScopedAudience{
		Audience: appConfig.Audience,
		Scope: strings.Join([]string{
			"openid",
			"offline_access",
			lib.ScopeReadMethods,
			lib.ScopeCreateMethods,
			lib.ScopeDeleteMethods,
		}, " "),
	}

	login := &lib.BrowserLogin{Config: appConfig, Timeout: loginTimeout}
	result, err := login.Login(cmd.Context(), aud)
	if err != nil {
		return err
	}

	s := newStack()
	if result.RefreshToken == "" {
		log.Warn("provider issued no refresh token; you will be asked to log in again next time")
	} else if err := s.tokens.StoreRefreshToken(result.RefreshToken); err != nil {
		return err
	}
	if err := s.creds.Store(aud, &result.Credential); err != nil {
		log.Warnf("failed to cache session credential: %s", err)
	}

	fmt.Println("Logged in.")
	track("Logged In", analytics.NewProperties())
	return nil
}
