// Package history keeps a SQLite ledger of extraction runs.
//
// Every finished run, successful or not, appends one row with its outcome,
// headline counts, and report location. The CLI lists the ledger with
// `keyframer history`. The database is a convenience record: schema changes
// bump the version in schema.go and users delete or clear the database to
// adopt them.
package history
