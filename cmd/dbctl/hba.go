package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/hba"
)

func newHBACmd(d deps, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "hba",
		Short: "Locate pg_hba.conf and suggest loopback rules",
		Long: `Asks the server for its pg_hba.conf location (needs superuser or
pg_read_all_settings) and falls back to the usual install paths for this OS.
The file is only read; suggested rules must be added by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			logger, err := stepLogger(cmd, flags)
			if err != nil {
				return err
			}

			var q hba.Querier
			if admin, err := d.open(cmd.Context(), cfg.Database.Admin()); err != nil {
				logger.Info("server not reachable, using default locations", "error", err)
			} else {
				defer admin.Close()
				q = admin
			}

			rep, err := hba.Inspect(cmd.Context(), d.locator, q, cfg.Database.App().DBName, cfg.Database.User)
			if flags.json {
				writeJSON(cmd.OutOrStdout(), hbaJSON(rep, err))
			} else {
				printHBA(cmd.OutOrStdout(), rep, err)
			}
			if err != nil {
				return errReported
			}
			return nil
		},
	}
}

type hbaOutput struct {
	Path       string     `json:"path,omitempty"`
	Source     string     `json:"source,omitempty"`
	Rules      []hba.Rule `json:"rules,omitempty"`
	IPv4Method string     `json:"ipv4_method,omitempty"`
	IPv6Method string     `json:"ipv6_method,omitempty"`
	OK         bool       `json:"ok"`
	Suggestion string     `json:"suggestion,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func hbaJSON(rep hba.Report, err error) hbaOutput {
	out := hbaOutput{Path: rep.Location.Path, Source: string(rep.Location.Source)}
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Rules = rep.Rules
	out.IPv4Method = rep.Analysis.IPv4Method
	out.IPv6Method = rep.Analysis.IPv6Method
	out.OK = rep.Analysis.OK()
	out.Suggestion = rep.Analysis.Suggestion
	return out
}

func printHBA(w io.Writer, rep hba.Report, err error) {
	fmt.Fprintln(w, titleStyle.Render("pg_hba.conf"))
	if rep.Location.Path != "" {
		fmt.Fprintf(w, "  file: %s %s\n", rep.Location.Path, mutedStyle.Render("("+string(rep.Location.Source)+")"))
	}
	if err != nil {
		fmt.Fprintf(w, "  %s %s\n", failStyle.Render("✗"), err)
		fmt.Fprintln(w, hintStyle.Render("Run dbctl hba on the database host as a user that can read the file."))
		return
	}

	for _, r := range rep.Rules {
		if !r.IsHost() {
			continue
		}
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  %4d  %-8s %-12s %-12s %-18s %s",
			r.Line, r.Type, r.Database, r.User, r.Address, r.Method)))
	}

	a := rep.Analysis
	fmt.Fprintf(w, "  IPv4 loopback: %s\n", methodOrMissing(a.HasIPv4Loopback, a.IPv4Method))
	fmt.Fprintf(w, "  IPv6 loopback: %s\n", methodOrMissing(a.HasIPv6Loopback, a.IPv6Method))
	if a.OK() {
		fmt.Fprintln(w, okStyle.Render("Loopback rules look fine."))
		return
	}
	for _, line := range strings.Split(strings.TrimRight(a.Suggestion, "\n"), "\n") {
		fmt.Fprintln(w, hintStyle.Render(line))
	}
}

func methodOrMissing(found bool, method string) string {
	if !found {
		return failStyle.Render("no matching rule")
	}
	if method == "trust" || method == "reject" {
		return warnStyle.Render(method)
	}
	return okStyle.Render(method)
}
