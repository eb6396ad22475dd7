package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/diagnostics"
)

func newDiagnoseCmd(d deps, flags *globalFlags) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Run read-only checks against the environment and database",
		Long: `Reports, in order: connection environment variables, a local postgres
process, the maintenance and application database connections, the expected
table, the schema version and the pg_hba.conf loopback rules.

Nothing is created or modified. A missing DB_PASSWORD is reported and the
remaining checks still run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}

			rep := diagnostics.New(cfg.Database,
				diagnostics.WithEnv(d.env),
				diagnostics.WithScanner(d.scanner),
				diagnostics.WithOpener(d.open),
				diagnostics.WithHBALocator(d.locator),
				diagnostics.WithExpectedTable(table),
			).Run(cmd.Context())

			if flags.json {
				writeJSON(cmd.OutOrStdout(), struct {
					OK bool `json:"ok"`
					diagnostics.Report
				}{OK: rep.OK(), Report: rep})
			} else {
				printReport(cmd.OutOrStdout(), rep)
			}
			if !rep.OK() {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "users", "Table that must exist in the application database")
	return cmd
}

func printReport(w io.Writer, rep diagnostics.Report) {
	fmt.Fprintln(w, titleStyle.Render("Database diagnostics"))
	for _, c := range rep.Checks {
		fmt.Fprintf(w, "  %s  %s %s\n", badge(c.Status), nameStyle.Render(c.Name), c.Message)
		if c.Hint != "" {
			for _, line := range strings.Split(strings.TrimRight(c.Hint, "\n"), "\n") {
				fmt.Fprintln(w, hintStyle.Render(line))
			}
		}
	}

	if failed := rep.Failed(); len(failed) > 0 {
		fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("%d check(s) failed.", len(failed))))
		return
	}
	fmt.Fprintln(w, okStyle.Render("All checks passed."))
}
