// Package repository persists hiring requests and responses.  Failures are
// reported with the typed errors from package apperr so that the service and
// handler layers can tell a missing row from a lost race:
// apperr.ErrNotFound when a row does not exist and apperr.ErrConflict when
// a guarded update found the request no longer active or a unique key was
// violated.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/hiring-negotiation/internal/apperr"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// translate maps driver errors onto the typed errors callers check for.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return apperr.ErrConflict.WithMessage(me.Message)
	}
	return err
}
