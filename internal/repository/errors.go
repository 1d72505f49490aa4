// Package repository implements the MySQL-backed stores.  Each repo wraps a
// *sql.DB and exposes `...Tx` methods that run inside a caller-supplied
// transaction; Store composes them into the atomic operations the
// services need.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the store reacts to.
const (
	mysqlErrDuplicateKey    = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrCheckConstraint = 3819
)

// isTransient reports whether err is a lock conflict that succeeds when
// the whole transaction is replayed.
func isTransient(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWaitTimeout
}

// isDuplicateKey reports a unique constraint violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDuplicateKey
}

// isCheckViolation reports a CHECK constraint failure, which the capacity
// table uses as a last line of defence.
func isCheckViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrCheckConstraint
}
