// Package queue persists cleaning jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages the database connection, schema initialization, stats
// queries, heartbeat tracking, and stale-job recovery. A job records the input
// path, the classifier overrides it was queued with, its progress, and the unit
// counts of the finished run so degraded results stay visible after the fact.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
