package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/dbroute/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errTooManyConns      = 1040
	errDBAccessDenied    = 1044
	errAccessDenied      = 1045
	errUnknownDatabase   = 1049
	errBadField          = 1054
	errDuplicateEntry    = 1062
	errParse             = 1064
	errNoSuchTable       = 1146
	errUserLimitReached  = 1203
	errLockWaitTimeout   = 1205
	errReadOnlyTx        = 1792
	errQueryInterrupted  = 3024
	errRowIsReferenced   = 1451
	errNoReferencedRow   = 1452
	errTableAccessDenied = 1142
)

// mapError translates go-sql-driver/mysql errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errAccessDenied, errDBAccessDenied, errTableAccessDenied:
		return errs.ErrKindPermissionDenied
	case errTooManyConns, errUserLimitReached, errUnknownDatabase:
		return errs.ErrKindConnectionFailed
	case errLockWaitTimeout, errQueryInterrupted:
		return errs.ErrKindTimeout
	case errDuplicateEntry, errRowIsReferenced, errNoReferencedRow:
		return errs.ErrKindInvalidInput
	case errBadField, errParse, errNoSuchTable, errReadOnlyTx:
		return errs.ErrKindQueryFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
