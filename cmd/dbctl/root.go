package main

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/config"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/database"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/diagnostics"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/hba"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/logging"
)

// errReported means the command already printed its failure; main only sets the exit code.
var errReported = errors.New("failed")

// deps are the seams tests replace.
type deps struct {
	loadConfig func() (*config.Config, error)
	env        diagnostics.EnvLookup
	open       database.Opener
	scanner    diagnostics.ProcessScanner
	locator    *hba.Locator
}

func defaultDeps() deps {
	return deps{
		loadConfig: config.Load,
		env:        os.LookupEnv,
		open:       database.Connect,
		scanner:    diagnostics.NewGopsutilScanner(),
		locator:    hba.NewLocator(runtime.GOOS),
	}
}

type globalFlags struct {
	json     bool
	logLevel string
}

func newRootCmd(d deps) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "dbctl",
		Short: "Provision and inspect the AquaguardAI database",
		Long: `dbctl prepares the PostgreSQL database the AquaguardAI dashboard runs on.

Connection settings come from the environment or a .env file:
  DB_USER      (default postgres)
  DB_HOST      (default localhost)
  DB_PORT      (default 5432)
  DB_PASSWORD  (required)

Exit status is 0 on success and 1 on any failure.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&flags.json, "json", false, "Output JSON instead of human-readable text")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level for progress messages (debug, info, warn, error)")

	root.AddCommand(
		newBootstrapCmd(d, &flags),
		newDiagnoseCmd(d, &flags),
		newHBACmd(d, &flags),
	)
	return root
}

// stepLogger writes progress to stderr so stdout stays parseable with --json.
func stepLogger(cmd *cobra.Command, flags *globalFlags) (*slog.Logger, error) {
	var w io.Writer = cmd.ErrOrStderr()
	return logging.New(logging.Options{Level: flags.logLevel, Writer: w})
}
