package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ExpandDDL replaces the column type placeholders {{timestamp}} and {{money}}
// with the driver's native types. Money is kept as TEXT on sqlite because a
// NUMERIC column there silently coerces decimals to floating point.
func ExpandDDL(driver, ddl string) string {
	var r *strings.Replacer
	switch driver {
	case DriverSQLite:
		r = strings.NewReplacer("{{timestamp}}", "TIMESTAMP", "{{money}}", "TEXT")
	default:
		r = strings.NewReplacer("{{timestamp}}", "TIMESTAMPTZ", "{{money}}", "NUMERIC")
	}
	return r.Replace(ddl)
}

// IsUniqueViolation reports whether err is a unique/primary key constraint
// failure from either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
