package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/hooks/internal/errors"
)

func explainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain [code]",
		Short: "Describe an error code",
		Long: `Print the long-form description of a hook error code such as H001.

Without an argument, list every registered code with its category and
message.

Examples:
  hookrun explain
  hookrun explain H004`,
		Args: cobra.MaximumNArgs(1),
		// Explain needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.noColor {
				errors.DisableColors()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, code := range errors.GetAllCodes() {
					t, _ := errors.GetTemplate(code)
					fmt.Fprintf(out, "%s  %-9s  %s\n", code, t.Category, t.Message)
				}
				return nil
			}

			code := strings.ToUpper(args[0])
			if _, ok := errors.GetTemplate(code); !ok {
				return errors.New("H140").
					WithDetailf("unknown error code %q", args[0]).
					WithSuggestion("Run 'hookrun explain' to list the registered codes.")
			}
			fmt.Fprint(out, errors.New(code).Format())
			return nil
		},
	}
	return cmd
}
