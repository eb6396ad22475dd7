// Package diagnostics runs read-only health checks against the environment
// and the Postgres server, reporting each result with a remediation hint.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/config"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/database"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/hba"
)

type Status string

const (
	StatusPass         Status = "pass"
	StatusFail         Status = "fail"
	StatusUndetermined Status = "undetermined"
	StatusSkipped      Status = "skipped"
)

// Check names, in run order.
const (
	CheckEnvironment      = "environment"
	CheckProcess          = "process"
	CheckAdminConnection  = "admin-connection"
	CheckTargetConnection = "target-connection"
	CheckExpectedTable    = "expected-table"
	CheckSchemaVersion    = "schema-version"
	CheckHBA              = "pg_hba"
)

type CheckResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

type Report struct {
	Checks []CheckResult `json:"checks"`
}

func (r Report) Failed() []CheckResult {
	var failed []CheckResult
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			failed = append(failed, c)
		}
	}
	return failed
}

func (r Report) OK() bool { return len(r.Failed()) == 0 }

func (r Report) Get(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// EnvLookup matches os.LookupEnv.
type EnvLookup func(key string) (string, bool)

type Diagnoser struct {
	cfg           config.DatabaseConfig
	env           EnvLookup
	scanner       ProcessScanner
	open          database.Opener
	locator       *hba.Locator
	expectedTable string
	indicator     string
}

type Option func(*Diagnoser)

func WithEnv(env EnvLookup) Option { return func(d *Diagnoser) { d.env = env } }
func WithScanner(s ProcessScanner) Option { return func(d *Diagnoser) { d.scanner = s } }
func WithOpener(open database.Opener) Option { return func(d *Diagnoser) { d.open = open } }
func WithHBALocator(l *hba.Locator) Option { return func(d *Diagnoser) { d.locator = l } }
func WithExpectedTable(name string) Option { return func(d *Diagnoser) { d.expectedTable = name } }
func WithProcessIndicator(s string) Option { return func(d *Diagnoser) { d.indicator = s } }

func New(cfg config.DatabaseConfig, opts ...Option) *Diagnoser {
	d := &Diagnoser{
		cfg:           cfg,
		env:           os.LookupEnv,
		scanner:       NewGopsutilScanner(),
		open:          database.Connect,
		locator:       hba.NewLocator(runtime.GOOS),
		expectedTable: "users",
		indicator:     "postgres",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes every check in order. It never returns an error; failures are
// reported per check. An unreachable server skips the remaining database checks.
func (d *Diagnoser) Run(ctx context.Context) Report {
	var rep Report
	add := func(name string, fn func() CheckResult) CheckResult {
		res := safely(name, fn)
		rep.Checks = append(rep.Checks, res)
		return res
	}

	add(CheckEnvironment, d.checkEnvironment)
	add(CheckProcess, func() CheckResult { return d.checkProcess(ctx) })

	var admin *sqlx.DB
	adminRes := add(CheckAdminConnection, func() CheckResult {
		var res CheckResult
		admin, res = d.checkAdmin(ctx)
		return res
	})
	if admin != nil {
		defer admin.Close()
	}

	if adminRes.Status != StatusPass {
		for _, name := range []string{CheckTargetConnection, CheckExpectedTable, CheckSchemaVersion} {
			rep.Checks = append(rep.Checks, skipped(name, CheckAdminConnection))
		}
		// pg_hba is still worth reading from the default locations: a
		// rejected login is often a missing loopback rule.
		add(CheckHBA, func() CheckResult { return d.checkHBA(ctx, nil) })
		return rep
	}

	var app *sqlx.DB
	targetRes := add(CheckTargetConnection, func() CheckResult {
		var res CheckResult
		app, res = d.checkTarget(ctx)
		return res
	})
	if app != nil {
		defer app.Close()
	}

	if targetRes.Status == StatusPass {
		add(CheckExpectedTable, func() CheckResult { return d.checkTable(ctx, app) })
		add(CheckSchemaVersion, func() CheckResult { return d.checkSchemaVersion(ctx, app) })
	} else {
		rep.Checks = append(rep.Checks,
			skipped(CheckExpectedTable, CheckTargetConnection),
			skipped(CheckSchemaVersion, CheckTargetConnection))
	}

	add(CheckHBA, func() CheckResult {
		var q hba.Querier
		if admin != nil {
			q = admin
		}
		return d.checkHBA(ctx, q)
	})

	return rep
}

func safely(name string, fn func() CheckResult) (res CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			res = CheckResult{Name: name, Status: StatusFail, Message: fmt.Sprintf("check panicked: %v", r)}
		}
	}()
	res = fn()
	res.Name = name
	return res
}

func skipped(name, cause string) CheckResult {
	return CheckResult{Name: name, Status: StatusSkipped, Message: "skipped: " + cause + " failed"}
}

type envVar struct {
	key    string
	def    string
	secret bool
}

var envVars = []envVar{
	{key: "DB_USER", def: "postgres"},
	{key: "DB_HOST", def: "localhost"},
	{key: "DB_PORT", def: "5432"},
	{key: "DB_PASSWORD", secret: true},
}

func (d *Diagnoser) checkEnvironment() CheckResult {
	var parts []string
	res := CheckResult{Status: StatusPass}

	for _, v := range envVars {
		value, ok := d.env(v.key)
		set := ok && value != ""
		switch {
		case v.secret && set:
			parts = append(parts, v.key+"=SET")
		case v.secret:
			parts = append(parts, v.key+"=NOT SET")
			res.Status = StatusFail
			res.Hint = fmt.Sprintf("Add %s=<password> to .env (or export it) and rerun.", v.key)
		case set:
			parts = append(parts, v.key+"="+value)
		default:
			parts = append(parts, fmt.Sprintf("%s not set (default %s)", v.key, v.def))
		}
	}

	res.Message = strings.Join(parts, ", ")
	return res
}

func (d *Diagnoser) checkProcess(ctx context.Context) CheckResult {
	if d.scanner == nil {
		return CheckResult{Status: StatusUndetermined, Message: "process scanning not available"}
	}

	scan, err := d.scanner.Scan(ctx, d.indicator)
	switch {
	case err != nil:
		return CheckResult{Status: StatusUndetermined, Message: "could not list processes: " + err.Error()}
	case !scan.Supported:
		return CheckResult{Status: StatusUndetermined, Message: "process scanning is not supported on this platform"}
	case scan.Found:
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%d %s process(es) running", len(scan.Matches), d.indicator)}
	default:
		return CheckResult{
			Status:  StatusUndetermined,
			Message: fmt.Sprintf("no %s process found on this machine", d.indicator),
			Hint:    "If PostgreSQL runs locally, start it (e.g. `sudo systemctl start postgresql` or `brew services start postgresql`). Containers and remote hosts are not visible here.",
		}
	}
}

func (d *Diagnoser) checkAdmin(ctx context.Context) (*sqlx.DB, CheckResult) {
	cfg := d.cfg.Admin()
	db, err := d.open(ctx, cfg)
	if err != nil {
		return nil, connFailure(err, cfg)
	}

	var version string
	if err := db.GetContext(ctx, &version, `SELECT version()`); err != nil {
		_ = db.Close()
		return nil, connFailure(err, cfg)
	}
	return db, CheckResult{Status: StatusPass, Message: "connected to " + cfg.URL() + ": " + version}
}

func (d *Diagnoser) checkTarget(ctx context.Context) (*sqlx.DB, CheckResult) {
	cfg := d.cfg.App()
	db, err := d.open(ctx, cfg)
	if err != nil {
		return nil, connFailure(err, cfg)
	}
	return db, CheckResult{Status: StatusPass, Message: "connected to " + cfg.URL()}
}

func connFailure(err error, cfg config.DatabaseConfig) CheckResult {
	kind := database.ClassifyError(err)
	hint := database.Remediation(kind, cfg)
	if hint == "" {
		hint = fmt.Sprintf("Check that PostgreSQL is reachable at %s:%s with the credentials in .env.", cfg.Host, cfg.Port)
	}
	return CheckResult{Status: StatusFail, Message: database.Describe(err), Hint: hint}
}

func (d *Diagnoser) checkTable(ctx context.Context, db *sqlx.DB) CheckResult {
	ok, err := database.TableExists(ctx, db, d.expectedTable)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: "table lookup failed: " + err.Error()}
	}
	if !ok {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("table %q does not exist", d.expectedTable),
			Hint:    "Apply the schema: dbctl bootstrap",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("table %q exists", d.expectedTable)}
}

func (d *Diagnoser) checkSchemaVersion(ctx context.Context, db *sqlx.DB) CheckResult {
	version, ok, err := database.SchemaVersion(ctx, db)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: "schema version lookup failed: " + err.Error()}
	}
	if ok {
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("schema at version %d", version)}
	}

	// Databases bootstrapped with --schema-file record a script hash instead.
	script, ok, err := database.LatestScript(ctx, db)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: "schema script lookup failed: " + err.Error()}
	}
	if ok {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("schema file %s applied (sha256 %.12s)", script.Name, script.Checksum),
		}
	}
	return CheckResult{
		Status:  StatusFail,
		Message: "no schema migrations recorded",
		Hint:    "Apply the schema: dbctl bootstrap",
	}
}

func (d *Diagnoser) checkHBA(ctx context.Context, q hba.Querier) CheckResult {
	if d.locator == nil {
		return CheckResult{Status: StatusUndetermined, Message: "pg_hba.conf lookup disabled"}
	}

	rep, err := hba.Inspect(ctx, d.locator, q, d.cfg.App().DBName, d.cfg.User)
	if err != nil {
		return CheckResult{Status: StatusUndetermined, Message: err.Error(),
			Hint: "Run `dbctl hba` on the database host (as a user that can read pg_hba.conf)."}
	}
	if rep.Analysis.OK() {
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s has loopback rules (IPv4 %s, IPv6 %s)",
			rep.Location.Path, rep.Analysis.IPv4Method, rep.Analysis.IPv6Method)}
	}
	return CheckResult{Status: StatusUndetermined, Message: rep.Location.Path + " is missing recommended loopback rules",
		Hint: rep.Analysis.Suggestion}
}
