// Package testdb provides helpers for PostgreSQL integration tests.
//
// Tests obtain a migrated connection with GetTestDBWithT, which skips the
// test when no database URL is configured, and isolate their writes with
// WithTx:
//
//	func TestPaperStore(t *testing.T) {
//		db := testdb.GetTestDBWithT(t)
//		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//			papers := postgres.NewPaperStore(tx, nil)
//			// ...
//		})
//	}
package testdb
