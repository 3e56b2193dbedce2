package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/certauth"
)

// inspectView is the serialisable form of a security report.
type inspectView struct {
	Subject          string        `json:"subject" yaml:"subject"`
	Thumbprint       string        `json:"thumbprint" yaml:"thumbprint"`
	KeyID            string        `json:"kid" yaml:"kid"`
	Algorithm        string        `json:"algorithm" yaml:"algorithm"`
	Key              string        `json:"key" yaml:"key"`
	NotAfter         time.Time     `json:"not_after" yaml:"not_after"`
	Mode             string        `json:"mode" yaml:"mode"`
	TokenTTL         string        `json:"token_ttl" yaml:"token_ttl"`
	AudienceChecked  bool          `json:"audience_checked" yaml:"audience_checked"`
	IssuerChecked    bool          `json:"issuer_checked" yaml:"issuer_checked"`
	ClockSkew        string        `json:"clock_skew" yaml:"clock_skew"`
	ExtractionSource string        `json:"extraction_source" yaml:"extraction_source"`
	Revocation       bool          `json:"revocation" yaml:"revocation"`
	Warnings         []warningView `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type warningView struct {
	Code     string `json:"code" yaml:"code"`
	Severity string `json:"severity" yaml:"severity"`
	Message  string `json:"message" yaml:"message"`
}

func newInspectView(e *certauth.Engine) inspectView {
	r := e.SecurityReport()
	meta := e.Certificate()
	v := inspectView{
		Subject:          meta.Subject,
		Thumbprint:       meta.Thumbprint,
		KeyID:            r.KeyID,
		Algorithm:        r.SigningAlgorithm,
		Key:              fmt.Sprintf("%s %d", r.KeyType, r.KeyBits),
		NotAfter:         r.CertificateExpiry.UTC(),
		Mode:             r.ValidationMode.String(),
		TokenTTL:         r.TokenTTL.String(),
		AudienceChecked:  r.AudienceChecked,
		IssuerChecked:    r.IssuerChecked,
		ClockSkew:        r.ClockSkew.String(),
		ExtractionSource: r.ExtractionSource,
		Revocation:       r.RevocationActive,
	}
	for _, w := range r.Warnings {
		v.Warnings = append(v.Warnings, warningView{Code: w.Code, Severity: w.Severity.String(), Message: w.Message})
	}
	return v
}

func newInspectCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load the certificate and print the effective security posture",
		Example: `  certauth inspect --cert identity.p12
  certauth inspect -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, release, err := a.engine()
			if err != nil {
				return err
			}
			defer release()
			return renderInspect(cmd.OutOrStdout(), output, newInspectView(engine))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, yaml or json")
	return cmd
}

func renderInspect(w io.Writer, format string, v inspectView) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Property", "Value"})
	t.AppendRows([]table.Row{
		{"Subject", v.Subject},
		{"Thumbprint", v.Thumbprint},
		{"Key ID", v.KeyID},
		{"Algorithm", v.Algorithm},
		{"Key", v.Key},
		{"Not after", v.NotAfter.Format(time.RFC3339)},
		{"Mode", v.Mode},
		{"Token TTL", v.TokenTTL},
		{"Audience checked", v.AudienceChecked},
		{"Issuer checked", v.IssuerChecked},
		{"Clock skew", v.ClockSkew},
		{"Extraction", v.ExtractionSource},
		{"Revocation", v.Revocation},
	})
	s := table.StyleRounded
	s.Format.Header = text.FormatDefault
	t.SetStyle(s)
	t.Render()

	if len(v.Warnings) == 0 {
		return nil
	}
	wt := table.NewWriter()
	wt.SetOutputMirror(w)
	wt.AppendHeader(table.Row{"Severity", "Code", "Message"})
	for _, warn := range v.Warnings {
		wt.AppendRow(table.Row{warn.Severity, warn.Code, warn.Message})
	}
	wt.SetStyle(s)
	wt.Render()
	return nil
}
