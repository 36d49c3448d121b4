package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Sentinel errors returned by catalog operations. Storage failures wrap the
// underlying sqlite3.Error as well, so both errors.Is against these values
// and errors.As into sqlite3.Error work.
var (
	// ErrTransientBusy is returned when the database stayed busy or locked
	// through every retry.
	ErrTransientBusy = errors.New("database busy")

	// ErrUniqueViolation is returned when an insert or update collides with a
	// UNIQUE or PRIMARY KEY constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a referenced row does not exist.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrInvalidEnum is returned for a value outside a closed set, such as an
	// element type other than 2D, 3D or Toolset.
	ErrInvalidEnum = errors.New("invalid enum value")

	// ErrInvalidSearchProperty is returned when a search names a property
	// outside the allow-list, or an unknown match type.
	ErrInvalidSearchProperty = errors.New("invalid search property")

	// ErrListNotFound is returned when an operation scoped to a list names a
	// list that does not exist.
	ErrListNotFound = errors.New("list not found")

	// ErrListStackMismatch is returned when a sub-list's parent belongs to a
	// different stack.
	ErrListStackMismatch = errors.New("parent list belongs to a different stack")

	// ErrInvalidStatus is returned when an ingestion record has a status other
	// than success or error.
	ErrInvalidStatus = errors.New("invalid ingestion status")
)

// isBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	// Errors surfaced through database/sql wrappers can lose their type.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// classify maps constraint failures onto the package sentinels while keeping
// the driver error reachable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return err
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
	case sqlite3.ErrConstraintCheck:
		return fmt.Errorf("%w: %w", ErrInvalidEnum, err)
	}
	return err
}
