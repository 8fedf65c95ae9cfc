package history

import (
	"database/sql"
)

// TB is the part of testing.TB OpenTestDB needs. Both *testing.T and
// GinkgoT() satisfy it.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
	Cleanup(func())
}

// OpenTestDB opens an in-memory history database with all migrations
// applied. The database is closed when the test finishes.
func OpenTestDB(t TB) *sql.DB {
	t.Helper()
	db, err := Open(memoryDSN)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
