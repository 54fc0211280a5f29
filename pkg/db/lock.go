package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row lock to the statement on dialects that support it.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if IsSQLite(tx) {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockSuffix returns the row lock clause for raw SELECT statements, or an
// empty string on dialects without row locks.
func LockSuffix(tx *gorm.DB) string {
	if IsSQLite(tx) {
		return ""
	}
	return " FOR UPDATE"
}
