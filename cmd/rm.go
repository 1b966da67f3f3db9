package cmd

import (
	"fmt"

	analytics "github.com/segmentio/analytics-go"
	"github.com/spf13/cobra"

	"github.com/idkit/mfactl/lib"
)

// rmCmd represents the rm command
var rmCmd = &cobra.Command{
	Use:   "rm <method-id>",
	Short: "rm removes an authentication method from your account",
	RunE:  rmRun,
}

func init() {
	RootCmd.AddCommand(rmCmd)
}

func rmRun(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return ErrTooFewArguments
	}
	if len(args) > 1 {
		return ErrTooManyArguments
	}
	methodID := args[0]

	s := newStack()
	if err := s.registry.Delete(cmd.Context(), audienceFor(lib.ScopeDeleteMethods), methodID); err != nil {
		return friendly(err)
	}

	fmt.Printf("Removed method %s\n", methodID)
	track("Removed Method", analytics.NewProperties())
	return nil
}
