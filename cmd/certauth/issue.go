package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newIssueCmd(a *app) *cobra.Command {
	var (
		subject string
		extra   map[string]string
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token for a subject and print it",
		Example: `  certauth issue --sub alice
  certauth issue --sub alice --claim role=admin --claim tier=2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return fmt.Errorf("--sub is required")
			}
			engine, release, err := a.engine()
			if err != nil {
				return err
			}
			defer release()

			claims := make(map[string]any, len(extra)+1)
			for k, v := range extra {
				claims[k] = claimValue(v)
			}
			claims["sub"] = subject

			tok, err := engine.Issue(cmd.Context(), claims)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok.Raw)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "subject claim")
	cmd.Flags().StringToStringVar(&extra, "claim", nil, "additional claim key=value (repeatable)")
	return cmd
}

// claimValue keeps integers and booleans typed; everything else is a string.
func claimValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
