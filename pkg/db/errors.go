package db

import "strings"

// IsUniqueViolation reports whether the error references a Postgres unique
// violation. When constraintName is provided the helper looks for that
// constraint in the error text, which also matches sqlite's message shape
// in tests.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
