package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// SQLSTATE codes that mean "another transaction got in the way"
var pgConflictCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// classifyError maps driver errors onto domain errors the application
// layer understands. Domain errors and context errors pass through.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgConflictCodes[pgErr.Code] {
			return invoicing.ErrStorageConflict.WithCause(err)
		}
		// class 08: connection exception, 57P0x: server shutting down
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0") {
			return shared.ErrUnavailable.WithCause(err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return shared.ErrUnavailable.WithCause(err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return shared.ErrUnavailable.WithCause(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return shared.ErrUnavailable.WithCause(err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return invoicing.ErrStorageConflict.WithCause(err)
		}
		return err
	}
	if strings.Contains(err.Error(), "database is locked") {
		return invoicing.ErrStorageConflict.WithCause(err)
	}

	return err
}
