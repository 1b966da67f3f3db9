package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/idkit/mfactl/lib"
)

var (
	listType string
	listAll  bool
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list will show you the authentication methods on your account",
	RunE:  listRun,
}

func init() {
	RootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listType, "type", "", "Only show methods of this factor type")
	listCmd.Flags().BoolVar(&listAll, "all", false, "Include unconfirmed methods")
}

func listRun(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return ErrTooManyArguments
	}

	s := newStack()
	methods, err := s.registry.List(cmd.Context(), audienceFor(lib.ScopeReadMethods))
	if err != nil {
		return friendly(err)
	}

	shown := methods[:0]
	for _, m := range methods {
		if listType != "" && string(m.Type) != listType {
			continue
		}
		// unconfirmed passkeys still show up: the browser ceremony may
		// have finished out-of-band and the user needs to see the id
		if !listAll && !m.Confirmed && m.Type != lib.FactorPasskey {
			continue
		}
		shown = append(shown, m)
	}

	sort.Slice(shown, func(i, j int) bool {
		if shown[i].Type != shown[j].Type {
			return shown[i].Type < shown[j].Type
		}
		return shown[i].CreatedAt.Before(shown[j].CreatedAt)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, "ID\tTYPE\tCONFIRMED\tCREATED\tLAST USED")
	for _, m := range shown {
		lastUsed := "never"
		if m.LastAuthAt != nil {
			lastUsed = m.LastAuthAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n",
			m.ID, m.Type, m.Confirmed, m.CreatedAt.Format("2006-01-02 15:04"), lastUsed)
	}
	return w.Flush()
}
