package sqlite

import (
	"database/sql/driver"
	"fmt"

	"golang.org/x/text/cases"
	sqlitedriver "modernc.org/sqlite"
)

// casefold(x) is a Unicode case fold for case-insensitive matching.
// SQLite's built-in lower() only maps ASCII letters, so "Über" and "über"
// would not match with it. Header and name searches compare
// casefold(column) LIKE casefold(pattern).
//
// Functions must be registered before the first connection is opened.
func init() {
	sqlitedriver.MustRegisterDeterministicScalarFunction("casefold", 1, casefold)
}

func casefold(_ *sqlitedriver.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return foldString(v), nil
	case []byte:
		return foldString(string(v)), nil
	default:
		return nil, fmt.Errorf("casefold: unsupported argument type %T", v)
	}
}

// foldString returns the full Unicode case fold of s. A Caser keeps state,
// so a fresh one is built per call.
func foldString(s string) string {
	return cases.Fold().String(s)
}
