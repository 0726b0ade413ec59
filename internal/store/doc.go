// Package store defines the persistence contracts used by the scheduler.
// The task store keeps its authoritative state in memory and flushes it
// through the minimal KVStore interface defined here, so the durable backend
// (PostgreSQL, DynamoDB, or memory in tests) stays swappable.
package store
