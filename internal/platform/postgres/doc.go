// Package postgres provides PostgreSQL implementations of the storage
// interfaces used by the generation scheduler: a key-value store for the
// persisted task list, and the paper and vocabulary collaborators the worker
// reads from and writes to. Schema migrations are embedded and applied with
// goose.
package postgres
