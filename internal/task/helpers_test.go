package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/englishprint/papergen/internal/domain"
	"github.com/englishprint/papergen/internal/events"
	"github.com/englishprint/papergen/internal/generation"
	"github.com/englishprint/papergen/internal/store"
	"github.com/englishprint/papergen/internal/task/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePapers is an in-memory PaperService.
type fakePapers struct {
	mu      sync.Mutex
	papers  map[uuid.UUID]*domain.Paper
	applied map[uuid.UUID]int
	applyFn func(paperID uuid.UUID) error
}

func newFakePapers() *fakePapers {
	return &fakePapers{
		papers:  make(map[uuid.UUID]*domain.Paper),
		applied: make(map[uuid.UUID]int),
	}
}

func (f *fakePapers) add(title, coreWords string) *domain.Paper {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &domain.Paper{ID: uuid.New(), Title: title, CoreWords: coreWords, KeySentences: title + " sentence."}
	f.papers[p.ID] = p
	return p
}

func (f *fakePapers) GetPaper(ctx context.Context, paperID uuid.UUID) (*domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.papers[paperID]
	if !ok {
		return nil, store.ErrPaperNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePapers) ListPapers(ctx context.Context) ([]*domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Paper, 0, len(f.papers))
	for _, p := range f.papers {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakePapers) ApplyGeneratedContent(ctx context.Context, paperID uuid.UUID, content *domain.GeneratedContent) error {
	if f.applyFn != nil {
		if err := f.applyFn(paperID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.papers[paperID]
	if !ok {
		return store.ErrPaperNotFound
	}
	p.Content = content
	f.applied[paperID]++
	return nil
}

func (f *fakePapers) appliedCount(paperID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied[paperID]
}

// blockingGenerator blocks each call until its paper is released.
type blockingGenerator struct {
	mu        sync.Mutex
	gates     map[string]chan struct{}
	calls     map[string]int
	active    int
	maxActive int
	result    func(inputs generation.Inputs) (*domain.GeneratedContent, error)
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{
		gates: make(map[string]chan struct{}),
		calls: make(map[string]int),
	}
}

func (g *blockingGenerator) gate(unit string) chan struct{} {
	ch, ok := g.gates[unit]
	if !ok {
		ch = make(chan struct{})
		g.gates[unit] = ch
	}
	return ch
}

func (g *blockingGenerator) Generate(ctx context.Context, inputs generation.Inputs) (*domain.GeneratedContent, error) {
	g.mu.Lock()
	g.calls[inputs.Unit]++
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	gate := g.gate(inputs.Unit)
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.active--
		g.mu.Unlock()
	}()

	select {
	case <-gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if g.result != nil {
		return g.result(inputs)
	}
	return &domain.GeneratedContent{PreClassGuide: "guide for " + inputs.Unit}, nil
}

// release lets the pending and future calls for paper return.
func (g *blockingGenerator) release(paper *domain.Paper) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := g.gate(generation.UnitText(paper))
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (g *blockingGenerator) callCount(paper *domain.Paper) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[generation.UnitText(paper)]
}

func (g *blockingGenerator) activeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func (g *blockingGenerator) maxActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxActive
}

// recorder collects emitted transitions.
type recorder struct {
	mu     sync.Mutex
	events []events.TransitionEvent
}

func (r *recorder) HandleEvent(ctx context.Context, event *events.TransitionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

// transitions returns "from->to" for every event of the task.
func (r *recorder) transitions(taskID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.TaskID == taskID {
			out = append(out, fmt.Sprintf("%s->%s", e.From, e.To))
		}
	}
	return out
}

// flakyKV wraps MemoryKV and fails writes while failing is set.
type flakyKV struct {
	*store.MemoryKV
	mu      sync.Mutex
	failing bool
}

func newFlakyKV() *flakyKV {
	return &flakyKV{MemoryKV: store.NewMemoryKV()}
}

func (k *flakyKV) setFailing(v bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failing = v
}

func (k *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	failing := k.failing
	k.mu.Unlock()
	if failing {
		return errors.New("kv unavailable")
	}
	return k.MemoryKV.Set(ctx, key, value)
}

// countingDispatcher counts dispatch requests.
type countingDispatcher struct {
	mu    sync.Mutex
	count int
}

func (d *countingDispatcher) RequestDispatch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
}

func (d *countingDispatcher) requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// seedTasks persists tasks as a previous process would have left them.
func seedTasks(t *testing.T, kv store.KVStore, tasks ...GenerationTask) {
	t.Helper()
	s, err := NewStore(kv, "", testLogger())
	require.NoError(t, err)
	for _, task := range tasks {
		require.NoError(t, s.Insert(context.Background(), task))
	}
}

// persistedTasks reads back what a restarted process would load.
func persistedTasks(t *testing.T, kv store.KVStore) []GenerationTask {
	t.Helper()
	s, err := NewStore(kv, "", testLogger())
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	return s.List(Filter{})
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(store.NewMemoryKV(), "", testLogger())
	require.NoError(t, err)
	return s
}

// harness wires a running scheduler over in-memory collaborators.
type harness struct {
	kv         store.KVStore
	store      *Store
	settings   *Settings
	papers     *fakePapers
	generator  *blockingGenerator
	validator  *mocks.Validator
	recorder   *recorder
	scheduler  *Scheduler
	controller *Controller
}

type harnessOption func(h *harness, cfg *ControllerConfig, gen *generation.Generator)

func withControllerConfig(c ControllerConfig) harnessOption {
	return func(h *harness, cfg *ControllerConfig, gen *generation.Generator) { *cfg = c }
}

func withGenerator(g generation.Generator) harnessOption {
	return func(h *harness, cfg *ControllerConfig, gen *generation.Generator) { *gen = g }
}

func withKV(kv store.KVStore) harnessOption {
	return func(h *harness, cfg *ControllerConfig, gen *generation.Generator) { h.kv = kv }
}

func withPapers(p *fakePapers) harnessOption {
	return func(h *harness, cfg *ControllerConfig, gen *generation.Generator) { h.papers = p }
}

func newHarness(t *testing.T, maxConcurrent int, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		kv:        store.NewMemoryKV(),
		papers:    newFakePapers(),
		generator: newBlockingGenerator(),
		validator: &mocks.Validator{},
		recorder:  &recorder{},
	}
	var cfg ControllerConfig
	var gen generation.Generator = h.generator
	for _, opt := range opts {
		opt(h, &cfg, &gen)
	}

	logger := testLogger()
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(h.recorder)

	var err error
	h.store, err = NewStore(h.kv, "", logger)
	require.NoError(t, err)
	h.settings, err = NewSettings(maxConcurrent)
	require.NoError(t, err)

	worker, err := NewWorker(h.store, h.papers, &mocks.VocabularyService{}, gen, h.validator, emitter, logger)
	require.NoError(t, err)
	worker.outcomeBackoff = time.Millisecond
	h.scheduler, err = NewScheduler(h.store, h.settings, worker, emitter, logger)
	require.NoError(t, err)
	h.controller, err = NewController(h.store, h.papers, h.settings, h.scheduler, emitter, cfg, logger)
	require.NoError(t, err)

	require.NoError(t, h.scheduler.Start(context.Background()))
	t.Cleanup(h.scheduler.Stop)
	return h
}

func (h *harness) status(id uuid.UUID) Status {
	t, ok := h.store.Get(id)
	if !ok {
		return ""
	}
	return t.Status
}

func (h *harness) waitStatus(t *testing.T, id uuid.UUID, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return h.status(id) == want }, waitFor, tick,
		"task %s should reach %s, is %s", id, want, h.status(id))
}
