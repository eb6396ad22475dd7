// Package hba locates and reads the server's pg_hba.conf and suggests the
// loopback rules the dashboard needs. It never modifies the file.
package hba

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Querier is the subset of *sqlx.DB used to ask the server where its file lives.
type Querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type Source string

const (
	SourceServer  Source = "server"
	SourceDefault Source = "default"
)

type Location struct {
	Path   string
	Source Source
}

// DefaultPaths are glob patterns tried, in order, when the server cannot be asked.
var DefaultPaths = map[string][]string{
	"linux": {
		"/etc/postgresql/*/main/pg_hba.conf",
		"/var/lib/pgsql/data/pg_hba.conf",
		"/var/lib/pgsql/*/data/pg_hba.conf",
		"/var/lib/postgresql/data/pg_hba.conf",
	},
	"darwin": {
		"/opt/homebrew/var/postgresql@*/pg_hba.conf",
		"/opt/homebrew/var/postgres/pg_hba.conf",
		"/usr/local/var/postgresql@*/pg_hba.conf",
		"/usr/local/var/postgres/pg_hba.conf",
		"/Library/PostgreSQL/*/data/pg_hba.conf",
	},
	"windows": {
		`C:\Program Files\PostgreSQL\*\data\pg_hba.conf`,
	},
}

type Locator struct {
	GOOS string
	Glob func(pattern string) ([]string, error)
}

func NewLocator(goos string) *Locator {
	return &Locator{GOOS: goos, Glob: filepath.Glob}
}

// Locate asks the server first (SHOW hba_file needs superuser or
// pg_read_all_settings) and falls back to DefaultPaths for l.GOOS.
func (l *Locator) Locate(ctx context.Context, q Querier) (Location, error) {
	if q != nil {
		var path string
		if err := q.GetContext(ctx, &path, `SHOW hba_file`); err == nil && path != "" {
			return Location{Path: path, Source: SourceServer}, nil
		}
	}

	patterns, ok := DefaultPaths[l.GOOS]
	if !ok {
		return Location{}, fmt.Errorf("no default pg_hba.conf locations known for %s", l.GOOS)
	}
	for _, pattern := range patterns {
		matches, err := l.Glob(pattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		// Highest version directory first.
		sort.Sort(sort.Reverse(sort.StringSlice(matches)))
		return Location{Path: matches[0], Source: SourceDefault}, nil
	}
	return Location{}, fmt.Errorf("pg_hba.conf not found in default locations for %s", l.GOOS)
}

type Rule struct {
	Line     int
	Type     string
	Database string
	User     string
	Address  string
	Method   string
}

func (r Rule) IsHost() bool { return strings.HasPrefix(r.Type, "host") }

// Parse reads pg_hba.conf records. Comments, blank lines and include directives are skipped.
func Parse(r io.Reader) ([]Rule, error) {
	var rules []Rule
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch typ := fields[0]; {
		case typ == "local":
			if len(fields) < 4 {
				continue
			}
			rules = append(rules, Rule{Line: n, Type: typ, Database: fields[1], User: fields[2], Method: fields[3]})
		case strings.HasPrefix(typ, "host"):
			if len(fields) < 5 {
				continue
			}
			rule := Rule{Line: n, Type: typ, Database: fields[1], User: fields[2], Address: fields[3], Method: fields[4]}
			// Address and netmask in separate columns.
			if len(fields) >= 6 && net.ParseIP(fields[4]) != nil {
				rule.Address = withMask(fields[3], fields[4])
				rule.Method = fields[5]
			}
			rules = append(rules, rule)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func withMask(addr, mask string) string {
	m := net.ParseIP(mask)
	if m == nil {
		return addr
	}
	if v4 := m.To4(); v4 != nil {
		m = v4
	}
	ones, bits := net.IPMask(m).Size()
	if bits == 0 {
		return addr
	}
	return fmt.Sprintf("%s/%d", addr, ones)
}

type Analysis struct {
	HasIPv4Loopback bool
	HasIPv6Loopback bool
	IPv4Method      string
	IPv6Method      string
	Suggestion      string
}

func (a Analysis) OK() bool { return a.Suggestion == "" }

var (
	loopbackV4 = net.ParseIP("127.0.0.1")
	loopbackV6 = net.ParseIP("::1")
)

// Analyze finds the first host rule that would match a loopback connection
// from user to database, per address family, and builds a suggestion when
// a family is uncovered or relies on trust/reject.
func Analyze(rules []Rule, database, user string) Analysis {
	var a Analysis
	for _, r := range rules {
		if !r.IsHost() || !matchesName(r.Database, database) || !matchesName(r.User, user) {
			continue
		}
		if !a.HasIPv4Loopback && covers(r.Address, loopbackV4) {
			a.HasIPv4Loopback = true
			a.IPv4Method = r.Method
		}
		if !a.HasIPv6Loopback && covers(r.Address, loopbackV6) {
			a.HasIPv6Loopback = true
			a.IPv6Method = r.Method
		}
	}
	a.Suggestion = suggest(a)
	return a
}

func matchesName(field, name string) bool {
	for _, v := range strings.Split(field, ",") {
		if v == "all" || v == name || v == "sameuser" || v == "samerole" {
			return true
		}
	}
	return false
}

func covers(address string, ip net.IP) bool {
	switch address {
	case "all", "samehost", "samenet":
		return true
	}
	_, network, err := net.ParseCIDR(address)
	if err != nil {
		return false
	}
	return network.Contains(ip)
}

func suggest(a Analysis) string {
	var b strings.Builder
	if !a.HasIPv4Loopback {
		b.WriteString("Add an IPv4 loopback rule:\n  host    all    all    127.0.0.1/32    scram-sha-256\n")
	}
	if !a.HasIPv6Loopback {
		b.WriteString("Add an IPv6 loopback rule:\n  host    all    all    ::1/128         scram-sha-256\n")
	}
	for _, m := range []struct{ family, method string }{{"IPv4", a.IPv4Method}, {"IPv6", a.IPv6Method}} {
		switch m.method {
		case "trust":
			fmt.Fprintf(&b, "%s loopback uses trust: any password is accepted. Use scram-sha-256 (or md5) instead.\n", m.family)
		case "reject":
			fmt.Fprintf(&b, "%s loopback connections are rejected. Change the method to scram-sha-256.\n", m.family)
		}
	}
	if b.Len() > 0 {
		b.WriteString("Reload PostgreSQL after editing (SELECT pg_reload_conf();).")
	}
	return b.String()
}

type Report struct {
	Location Location
	Rules    []Rule
	Analysis Analysis
}

// Inspect locates, reads and analyzes the file in one go.
func Inspect(ctx context.Context, l *Locator, q Querier, database, user string) (Report, error) {
	loc, err := l.Locate(ctx, q)
	if err != nil {
		return Report{}, err
	}

	f, err := os.Open(loc.Path)
	if err != nil {
		return Report{Location: loc}, fmt.Errorf("read %s: %w", loc.Path, err)
	}
	defer f.Close()

	rules, err := Parse(f)
	if err != nil {
		return Report{Location: loc}, fmt.Errorf("parse %s: %w", loc.Path, err)
	}

	return Report{Location: loc, Rules: rules, Analysis: Analyze(rules, database, user)}, nil
}
