package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/config"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/database"
)

func newBootstrapCmd(d deps, flags *globalFlags) *cobra.Command {
	var schemaFile, migrationsDir string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the application database if missing and apply the schema",
		Long: `Connects to the maintenance database, creates the application database
when it does not exist, then applies the schema. Safe to run repeatedly.

By default the embedded migrations are applied with goose. --schema-file applies
a single SQL file instead, once per distinct file content.`,
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

			var schema database.SchemaApplier
			if schemaFile != "" {
				schema = database.NewScriptApplier(schemaFile)
			} else {
				schema, err = database.NewMigrationApplier(migrationsDir)
				if err != nil {
					return err
				}
			}

			res, runErr := database.NewBootstrapper(cfg.Database, schema, logger, database.WithOpener(d.open)).
				Run(cmd.Context())

			if flags.json {
				writeJSON(cmd.OutOrStdout(), bootstrapJSON(res, cfg.Database))
			} else {
				printBootstrap(cmd.OutOrStdout(), res, cfg.Database)
			}
			if runErr != nil {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaFile, "schema-file", "", "Apply this SQL file instead of the embedded migrations")
	cmd.Flags().StringVar(&migrationsDir, "migrations-dir", "", "Apply goose migrations from this directory instead of the embedded ones")
	cmd.MarkFlagsMutuallyExclusive("schema-file", "migrations-dir")
	return cmd
}

type bootstrapOutput struct {
	Success         bool    `json:"success"`
	Database        string  `json:"database"`
	Connected       bool    `json:"connected"`
	ServerVersion   string  `json:"server_version,omitempty"`
	DatabaseExisted bool    `json:"database_existed"`
	DatabaseCreated bool    `json:"database_created"`
	SchemaStatus    string  `json:"schema_status,omitempty"`
	SchemaVersion   int64   `json:"schema_version,omitempty"`
	Applied         []int64 `json:"applied,omitempty"`
	Error           string  `json:"error,omitempty"`
	ErrorKind       string  `json:"error_kind,omitempty"`
	Hint            string  `json:"hint,omitempty"`
}

func bootstrapJSON(res database.BootstrapResult, cfg config.DatabaseConfig) bootstrapOutput {
	out := bootstrapOutput{
		Success:         res.Succeeded(),
		Database:        cfg.App().DBName,
		Connected:       res.Connected,
		ServerVersion:   res.ServerVersion,
		DatabaseExisted: res.DatabaseExisted,
		DatabaseCreated: res.DatabaseCreated,
		SchemaStatus:    string(res.Schema.Status),
		SchemaVersion:   res.Schema.Version,
		Applied:         res.Schema.Applied,
	}
	if res.Err != nil {
		kind := database.ClassifyError(res.Err)
		out.Error = database.Describe(res.Err)
		out.ErrorKind = string(kind)
		out.Hint = database.Remediation(kind, hintConfig(res, cfg))
	}
	return out
}

// hintConfig picks the connection the failure happened on.
func hintConfig(res database.BootstrapResult, cfg config.DatabaseConfig) config.DatabaseConfig {
	if res.Connected {
		return cfg.App()
	}
	return cfg.Admin()
}

func printBootstrap(w io.Writer, res database.BootstrapResult, cfg config.DatabaseConfig) {
	fmt.Fprintln(w, titleStyle.Render("Database bootstrap"))

	if res.Connected {
		fmt.Fprintf(w, "  %s connected to %s\n", okStyle.Render("✓"), cfg.Admin().URL())
		fmt.Fprintf(w, "    %s\n", mutedStyle.Render(res.ServerVersion))
		switch {
		case res.DatabaseCreated:
			fmt.Fprintf(w, "  %s created database %q\n", okStyle.Render("✓"), cfg.App().DBName)
		case res.DatabaseExisted:
			fmt.Fprintf(w, "  %s database %q already exists\n", okStyle.Render("✓"), cfg.App().DBName)
		}
	}

	switch res.Schema.Status {
	case database.SchemaApplied:
		fmt.Fprintf(w, "  %s schema applied%s\n", okStyle.Render("✓"), schemaDetail(res.Schema))
	case database.SchemaAlreadyApplied:
		fmt.Fprintf(w, "  %s schema already applied%s\n", okStyle.Render("✓"), schemaDetail(res.Schema))
	}

	if res.Err != nil {
		kind := database.ClassifyError(res.Err)
		fmt.Fprintf(w, "  %s %s\n", failStyle.Render("✗"), database.Describe(res.Err))
		if hint := database.Remediation(kind, hintConfig(res, cfg)); hint != "" {
			fmt.Fprintln(w, hintStyle.Render(hint))
		}
		fmt.Fprintln(w, failStyle.Render("Bootstrap failed."))
		return
	}
	fmt.Fprintln(w, okStyle.Render("Bootstrap complete."))
}

func schemaDetail(s database.SchemaResult) string {
	switch {
	case s.Version > 0:
		return fmt.Sprintf(" (version %d)", s.Version)
	case s.Checksum != "":
		return fmt.Sprintf(" (sha256 %.12s)", s.Checksum)
	default:
		return ""
	}
}

func writeJSON(w io.Writer, v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}
