package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/englishprint/papergen/internal/store"
	"github.com/google/uuid"
)

// DefaultPersistenceKey is the KV key of the task index. Each task is
// stored under the index key followed by "/" and its id.
const DefaultPersistenceKey = "generation-tasks"

// Store is the authoritative list of generation tasks. Every mutation runs
// under one mutex and is written to the KV store before the lock is
// released; a failed write rolls the change back.
//
// The KV layout is one value per task plus an index value holding the task
// ids in insertion order, so no single value grows with the task history.
type Store struct {
	mu     sync.Mutex
	kv     store.KVStore
	key    string
	tasks  []GenerationTask // insertion order
	dirty  map[uuid.UUID]struct{}
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store backed by kv under key.
func NewStore(kv store.KVStore, key string, logger *slog.Logger) (*Store, error) {
	if kv == nil {
		return nil, ErrNilStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if key == "" {
		key = DefaultPersistenceKey
	}
	return &Store{
		kv:     kv,
		key:    key,
		dirty:  make(map[uuid.UUID]struct{}),
		logger: logger.With("component", "task_store"),
		now:    time.Now,
	}, nil
}

// Load replaces the in-memory list with the persisted one. Tasks found in
// processing were interrupted by a previous shutdown: they are moved to
// error, logged, and returned. They are never resumed.
func (s *Store) Load(ctx context.Context) ([]GenerationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.tasks = nil
			s.logger.InfoContext(ctx, "no persisted tasks found", "key", s.key)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read task index: %w", err)
	}

	var ids []uuid.UUID
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode task index: %w", err)
	}

	tasks := make([]GenerationTask, 0, len(ids))
	for _, id := range ids {
		t, err := s.readTask(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "indexed task has no stored record, skipping", "task_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	var interrupted []GenerationTask
	now := s.now().UTC()
	for i := range tasks {
		if tasks[i].Status != StatusProcessing {
			continue
		}
		tasks[i].Status = StatusError
		tasks[i].Error = InterruptedMessage
		tasks[i].EndTime = &now
		if err := s.writeTask(ctx, tasks[i]); err != nil {
			return nil, err
		}
		interrupted = append(interrupted, tasks[i])

		s.logger.WarnContext(ctx, "task was processing when the process stopped, marking as error",
			"task_id", tasks[i].ID,
			"paper_id", tasks[i].PaperID,
			"started_at", tasks[i].StartTime)
	}

	s.tasks = tasks
	clear(s.dirty)

	s.logger.InfoContext(ctx, "loaded persisted tasks",
		"task_count", len(tasks),
		"interrupted_count", len(interrupted))

	return interrupted, nil
}

// Insert appends t. A paper may have at most one active task.
func (s *Store) Insert(ctx context.Context, t GenerationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(t.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTaskID, t.ID)
	}
	if t.Status.IsActive() && s.activeForPaperLocked(t.PaperID, uuid.Nil) {
		return ErrActiveTaskExists
	}

	t.committing = false
	if err := s.writeTask(ctx, t); err != nil {
		return err
	}
	previous := s.snapshotLocked()
	s.tasks = append(s.tasks, t)
	if err := s.writeIndexLocked(ctx); err != nil {
		s.tasks = previous
		s.removeRecord(ctx, t.ID)
		return err
	}
	s.retryDirtyLocked(ctx)
	return nil
}

// Get returns the task with id.
func (s *Store) Get(id uuid.UUID) (GenerationTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i], true
	}
	return GenerationTask{}, false
}

// FindLatestByPaper returns the paper's task with the latest StartTime.
// Among equal start times the later inserted task wins.
func (s *Store) FindLatestByPaper(paperID uuid.UUID) (GenerationTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := -1
	for i, t := range s.tasks {
		if t.PaperID != paperID {
			continue
		}
		if found < 0 || !t.StartTime.Before(s.tasks[found].StartTime) {
			found = i
		}
	}
	if found < 0 {
		return GenerationTask{}, false
	}
	return s.tasks[found], true
}

// Update applies mutate to a copy of the task and stores the result. It
// returns (nil, nil) when no task has id. Errors returned by mutate abort
// the update. The task id cannot be changed, and a task in a terminal
// status is never modified: a mutation that would change it returns
// ErrTerminalStatus.
func (s *Store) Update(ctx context.Context, id uuid.UUID, mutate func(t *GenerationTask) error) (*GenerationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, nil
	}

	current := s.tasks[i]
	updated := cloneTask(current)
	if err := mutate(&updated); err != nil {
		return nil, err
	}
	updated.ID = current.ID

	if current.Status.IsTerminal() {
		if !sameRecord(current, updated) {
			return nil, fmt.Errorf("%w: %s", ErrTerminalStatus, current.Status)
		}
		result := current
		return &result, nil
	}
	if updated.Status.IsActive() && updated.PaperID != current.PaperID &&
		s.activeForPaperLocked(updated.PaperID, id) {
		return nil, ErrActiveTaskExists
	}

	if err := s.writeTask(ctx, updated); err != nil {
		return nil, err
	}
	s.tasks[i] = updated
	s.retryDirtyLocked(ctx)

	result := updated
	return &result, nil
}

// Remove deletes the task with id. Unknown ids are ignored.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := s.RemoveIf(ctx, func(t GenerationTask) bool { return t.ID == id })
	return err
}

// RemoveIf deletes every task matching pred and returns the removed tasks.
func (s *Store) RemoveIf(ctx context.Context, pred func(t GenerationTask) bool) ([]GenerationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []GenerationTask
	kept := make([]GenerationTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if pred(t) {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	if len(removed) == 0 {
		return nil, nil
	}

	previous := s.tasks
	s.tasks = kept
	if err := s.writeIndexLocked(ctx); err != nil {
		s.tasks = previous
		return nil, err
	}
	for _, t := range removed {
		delete(s.dirty, t.ID)
		s.removeRecord(ctx, t.ID)
	}
	s.retryDirtyLocked(ctx)
	return removed, nil
}

// List returns the tasks matching f ordered by StartTime, oldest first.
func (s *Store) List(f Filter) []GenerationTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []GenerationTask
	for _, t := range s.tasks {
		if f.matches(t) {
			out = append(out, t)
		}
	}
	sortByStartTime(out)
	return out
}

// ClaimNextPending promotes the oldest pending task to processing, provided
// fewer than limit tasks are processing. A limit of 0 means unlimited. It
// returns nil when nothing was claimed.
func (s *Store) ClaimNextPending(ctx context.Context, limit int) (*GenerationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	processing := 0
	next := -1
	for i, t := range s.tasks {
		switch t.Status {
		case StatusProcessing:
			processing++
		case StatusPending:
			if next < 0 || t.StartTime.Before(s.tasks[next].StartTime) {
				next = i
			}
		}
	}
	if next < 0 || (limit > 0 && processing >= limit) {
		return nil, nil
	}

	claimed := s.tasks[next]
	claimed.Status = StatusProcessing
	if err := s.writeTask(ctx, claimed); err != nil {
		return nil, err
	}
	s.tasks[next] = claimed
	s.retryDirtyLocked(ctx)
	return &claimed, nil
}

// FailPending moves every pending task to error with message and returns
// the updated tasks. Tasks are written one at a time; on a write failure
// the tasks already written are returned along with the error and the rest
// stay pending.
func (s *Store) FailPending(ctx context.Context, message string) ([]GenerationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var failed []GenerationTask
	for i := range s.tasks {
		if s.tasks[i].Status != StatusPending {
			continue
		}
		t := s.tasks[i]
		t.Status = StatusError
		t.Error = message
		t.EndTime = &now
		if err := s.writeTask(ctx, t); err != nil {
			sortByStartTime(failed)
			return failed, err
		}
		s.tasks[i] = t
		failed = append(failed, t)
	}
	if len(failed) == 0 {
		return nil, nil
	}

	s.retryDirtyLocked(ctx)
	sortByStartTime(failed)
	return failed, nil
}

// MarkCommitting flags a processing task as committing so that it can no
// longer be cancelled. It reports false if the task is gone or no longer
// processing.
func (s *Store) MarkCommitting(id uuid.UUID) (GenerationTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 || s.tasks[i].Status != StatusProcessing {
		return GenerationTask{}, false
	}
	s.tasks[i].committing = true
	return s.tasks[i], true
}

// ForceError moves a processing task to error even when the KV store
// rejects the write. The in-memory record becomes terminal at once, which
// frees its concurrency slot, and the write is retried after later
// successful mutations. If the process stops first, Load reports the task
// as interrupted. It reports false if the task is gone or no longer
// processing.
func (s *Store) ForceError(ctx context.Context, id uuid.UUID, message string) (GenerationTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 || s.tasks[i].Status != StatusProcessing {
		return GenerationTask{}, false
	}

	now := s.now().UTC()
	t := s.tasks[i]
	t.Status = StatusError
	t.Error = message
	t.Result = nil
	t.EndTime = &now
	t.committing = false
	s.tasks[i] = t

	if err := s.writeTask(ctx, t); err != nil {
		s.dirty[id] = struct{}{}
		s.logger.ErrorContext(ctx, "task moved to error in memory only, write will be retried",
			"task_id", id,
			"error", err)
	}
	return t, true
}

func (s *Store) indexLocked(id uuid.UUID) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) activeForPaperLocked(paperID, except uuid.UUID) bool {
	for _, t := range s.tasks {
		if t.PaperID == paperID && t.ID != except && t.Status.IsActive() {
			return true
		}
	}
	return false
}

func (s *Store) snapshotLocked() []GenerationTask {
	return append([]GenerationTask(nil), s.tasks...)
}

func (s *Store) taskKey(id uuid.UUID) string {
	return s.key + "/" + id.String()
}

func (s *Store) readTask(ctx context.Context, id uuid.UUID) (GenerationTask, error) {
	data, err := s.kv.Get(ctx, s.taskKey(id))
	if err != nil {
		return GenerationTask{}, fmt.Errorf("failed to read task %s: %w", id, err)
	}
	var t GenerationTask
	if err := json.Unmarshal(data, &t); err != nil {
		return GenerationTask{}, fmt.Errorf("failed to decode task %s: %w", id, err)
	}
	return t, nil
}

func (s *Store) writeTask(ctx context.Context, t GenerationTask) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", t.ID, err)
	}
	key := s.taskKey(t.ID)
	if err := s.kv.Set(ctx, key, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist task", "error", err, "key", key)
		return fmt.Errorf("%w %s: %w", ErrPersistence, t.ID, err)
	}
	return nil
}

func (s *Store) writeIndexLocked(ctx context.Context) error {
	ids := make([]uuid.UUID, len(s.tasks))
	for i, t := range s.tasks {
		ids[i] = t.ID
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode task index: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist task index", "error", err, "key", s.key)
		return fmt.Errorf("%w: index: %w", ErrPersistence, err)
	}
	return nil
}

// removeRecord deletes a task value that is no longer indexed. Failures
// leave an unreferenced value behind and are only logged.
func (s *Store) removeRecord(ctx context.Context, id uuid.UUID) {
	if err := s.kv.Remove(ctx, s.taskKey(id)); err != nil {
		s.logger.WarnContext(ctx, "failed to remove task record", "task_id", id, "error", err)
	}
}

// retryDirtyLocked writes tasks that ForceError could not persist.
func (s *Store) retryDirtyLocked(ctx context.Context) {
	for id := range s.dirty {
		i := s.indexLocked(id)
		if i < 0 {
			delete(s.dirty, id)
			continue
		}
		if err := s.writeTask(ctx, s.tasks[i]); err != nil {
			return
		}
		delete(s.dirty, id)
		s.logger.InfoContext(ctx, "persisted task recorded in memory only", "task_id", id)
	}
}

// cloneTask copies t so that a mutation cannot reach the stored record
// through its pointer fields.
func cloneTask(t GenerationTask) GenerationTask {
	if t.EndTime != nil {
		end := *t.EndTime
		t.EndTime = &end
	}
	if t.CourseID != nil {
		id := *t.CourseID
		t.CourseID = &id
	}
	if t.RetryOf != nil {
		id := *t.RetryOf
		t.RetryOf = &id
	}
	return t
}

// sameRecord reports whether b carries the same persisted state as a.
// Result is compared by identity: a mutation replacing or clearing it
// changes the record.
func sameRecord(a, b GenerationTask) bool {
	return a.ID == b.ID &&
		a.PaperID == b.PaperID &&
		a.PaperTitle == b.PaperTitle &&
		equalPtr(a.CourseID, b.CourseID) &&
		equalPtr(a.RetryOf, b.RetryOf) &&
		a.Status == b.Status &&
		a.StartTime.Equal(b.StartTime) &&
		equalTime(a.EndTime, b.EndTime) &&
		a.Error == b.Error &&
		a.Result == b.Result
}

func equalPtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sortByStartTime(tasks []GenerationTask) {
	slices.SortStableFunc(tasks, func(a, b GenerationTask) int {
		return a.StartTime.Compare(b.StartTime)
	})
}
