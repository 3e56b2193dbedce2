package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/certauth"
	"github.com/MrEthical07/certauth/jwt"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		mode string
		at   string
	)
	cmd := &cobra.Command{
		Use:   "verify [token|-]",
		Short: "Validate a token and print its claims",
		Long: `Validate a token with the configured policy. With "-" or no argument the
token is read from stdin. On rejection the reason is printed and the command
fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			routeMode := certauth.ModeInherit
			if mode != "" {
				if routeMode, err = certauth.ParseValidationMode(mode); err != nil {
					return err
				}
			}
			now := time.Now()
			if at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}

			engine, release, err := a.engine()
			if err != nil {
				return err
			}
			defer release()

			p, err := engine.ValidateAt(cmd.Context(), token, routeMode, now)
			if err != nil {
				if reason := jwt.ReasonOf(err); reason != nil {
					return fmt.Errorf("rejected: %w", reason)
				}
				return fmt.Errorf("rejected: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p.Claims.Map())
		},
	}
	cmd.Flags().StringVar(&mode, "route-mode", "", "override validation mode for this check: jwt_only or strict")
	cmd.Flags().StringVar(&at, "at", "", "validate as of an RFC 3339 instant instead of now")
	return cmd
}

func readToken(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return strings.TrimSpace(args[0]), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", certauth.ErrTokenMissing
	}
	return token, nil
}
