package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
	analytics "github.com/segmentio/analytics-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/idkit/mfactl/lib"
)

// Errors returned from frontend commands
var (
	ErrTooManyArguments = errors.New("too many arguments")
	ErrTooFewArguments  = errors.New("too few arguments")
)

// global flags
var (
	backend string
	debug   bool
	tenant  string
)

// shared state built in prerun
var (
	kr        keyring.Keyring
	appConfig *lib.Config

	analyticsEnabled bool
	analyticsClient  analytics.Client
	username         string
	version          string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:               "mfactl",
	Short:             "mfactl manages the multi-factor authentication methods on your account",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prerun,
	PersistentPostRun: postrun,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute(vers string, writeKey string) {
	version = vers
	if writeKey != "" {
		client, err := analytics.NewWithConfig(writeKey, analytics.Config{BatchSize: 1})
		if err == nil {
			analyticsClient = client
			analyticsEnabled = true
			username = os.Getenv("USER")
		}
	}

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		switch err {
		case ErrTooFewArguments, ErrTooManyArguments:
			RootCmd.Usage()
		}
		os.Exit(1)
	}
}

func prerun(cmd *cobra.Command, args []string) error {
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	switch cmd.Name() {
	case "help", "version":
		return nil
	}

	// Load backend from env var if not set as a flag
	if !cmd.Flags().Lookup("backend").Changed {
		if backendFromEnv, ok := os.LookupEnv("MFACTL_BACKEND"); ok {
			backend = backendFromEnv
		}
	}

	var allowedBackends []keyring.BackendType
	if backend != "" {
		allowedBackends = append(allowedBackends, keyring.BackendType(backend))
	}
	ring, err := keyring.Open(keyring.Config{
		AllowedBackends:          allowedBackends,
		KeychainTrustApplication: true,
		ServiceName:              "mfactl",
		LibSecretCollectionName:  "mfactl",
	})
	if err != nil {
		return err
	}
	kr = ring

	config, err := lib.NewConfigFromEnv()
	if err != nil {
		return err
	}
	tenants, err := config.Parse()
	if err != nil {
		return err
	}
	appConfig, err = lib.NewConfig(tenants, tenant)
	if err != nil {
		return fmt.Errorf("no usable tenant config for %q: %s", tenant, err)
	}

	return nil
}

func postrun(cmd *cobra.Command, args []string) {
	if analyticsEnabled {
		analyticsClient.Close()
	}
}

func track(event string, properties analytics.Properties) {
	if !analyticsEnabled || analyticsClient == nil {
		return
	}
	analyticsClient.Enqueue(analytics.Track{
		UserId: username,
		Event:  event,
		Properties: properties.
			Set("backend", backend).
			Set("mfactl-version", version),
	})
}

func init() {
	backendsAvailable := []string{}
	for _, backendType := range keyring.AvailableBackends() {
		backendsAvailable = append(backendsAvailable, string(backendType))
	}
	RootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", fmt.Sprintf("Secret backend to use %s", backendsAvailable))
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	RootCmd.PersistentFlags().StringVarP(&tenant, "tenant", "t", lib.DefaultTenant, "Tenant section of the config file to use")
}
