// Package task implements the generation task scheduler.
//
// A GenerationTask asks for AI content to be generated for one paper. The
// Store owns the task list and persists it through a store.KVStore, one
// value per task plus an index of task ids. The
// Scheduler runs a dispatch loop that promotes pending tasks, oldest first,
// while the number of processing tasks stays under the configured limit.
// Each promoted task is executed by the Worker, which calls the external
// generator and re-checks the task at two checkpoints so that cancellation
// requested while the call was in flight discards the result. The Controller
// is the command surface: enqueue, cancel, retry, clear and settings changes.
package task
