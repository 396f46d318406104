// Package repository defines the MySQL data access layer and the error
// types reused across repositories.  These sentinel values allow higher
// layers to distinguish failure scenarios without inspecting driver
// errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique key
// (MySQL error 1062), e.g. a second account with the same email.
var ErrDuplicate = errors.New("duplicate")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be performed
// because of dependent rows (MySQL error 1451), such as deleting a reward
// that has already been redeemed.
var ErrConflict = errors.New("conflict")

// ErrAlreadyClaimed is returned when a user redeems the same reward twice.
var ErrAlreadyClaimed = errors.New("reward already claimed")

// ErrInsufficientBalance is returned when a debit would make the balance
// negative.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrAlreadyClosed is returned when closing a card that is not open.
var ErrAlreadyClosed = errors.New("card already closed")

const (
	mysqlDupEntry        = 1062
	mysqlRowIsReferenced = 1451
)

func isMySQLError(err error, number uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == number
}

func isDuplicate(err error) bool { return isMySQLError(err, mysqlDupEntry) }

func isReferenced(err error) bool { return isMySQLError(err, mysqlRowIsReferenced) }
