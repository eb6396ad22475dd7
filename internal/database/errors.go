package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/config"
)

// Bootstrap step failures. The underlying driver error is wrapped alongside.
var (
	ErrConnection     = errors.New("database connection failed")
	ErrExistenceCheck = errors.New("database existence check failed")
	ErrCreateDatabase = errors.New("create database failed")
	ErrSchema         = errors.New("schema application failed")
)

type ErrorKind string

const (
	KindConnectionRefused ErrorKind = "connection-refused"
	KindAuthentication    ErrorKind = "authentication"
	KindDatabaseMissing   ErrorKind = "database-missing"
	KindTimeout           ErrorKind = "timeout"
	KindUnknown           ErrorKind = "unknown"
)

// Postgres SQLSTATE codes we give specific advice for.
const (
	codeInvalidPassword      = "28P01"
	codeInvalidAuthorization = "28000"
	codeInvalidCatalogName   = "3D000"
)

// ClassifyError maps a connection or query error onto an ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectionRefused
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeInvalidPassword, codeInvalidAuthorization:
			return KindAuthentication
		case codeInvalidCatalogName:
			return KindDatabaseMissing
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	// Some platforms surface refused dials only as text.
	if strings.Contains(err.Error(), "connection refused") {
		return KindConnectionRefused
	}

	return KindUnknown
}

// Remediation returns an operator-facing hint for kind, or "" when there is nothing specific to say.
func Remediation(kind ErrorKind, cfg config.DatabaseConfig) string {
	switch kind {
	case KindConnectionRefused:
		return fmt.Sprintf("Nothing is accepting connections on %s:%s. Start PostgreSQL, or fix DB_HOST/DB_PORT in .env.", cfg.Host, cfg.Port)
	case KindAuthentication:
		return fmt.Sprintf("PostgreSQL rejected user %q. Check DB_USER/DB_PASSWORD in .env and the host rules in pg_hba.conf (run: dbctl hba).", cfg.User)
	case KindDatabaseMissing:
		return fmt.Sprintf("Database %q does not exist. Run: dbctl bootstrap", cfg.DBName)
	case KindTimeout:
		return fmt.Sprintf("Timed out reaching %s:%s. Check the host is reachable and raise DB_CONNECT_TIMEOUT if the network is slow.", cfg.Host, cfg.Port)
	default:
		return ""
	}
}

// Describe renders err for console output, prefixed with its classification when known.
func Describe(err error) string {
	switch ClassifyError(err) {
	case KindConnectionRefused:
		return "connection refused: " + err.Error()
	case KindAuthentication:
		return "authentication failed: " + err.Error()
	case KindDatabaseMissing:
		return "database does not exist: " + err.Error()
	case KindTimeout:
		return "timed out: " + err.Error()
	default:
		return err.Error()
	}
}
