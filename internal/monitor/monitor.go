package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"blockcheck/internal/catalog"
	"blockcheck/internal/metrics"
	"blockcheck/internal/models"
	"blockcheck/internal/probe"
)

// DefaultConcurrency caps the number of probes in flight.
const DefaultConcurrency = 64

// ErrSuperseded is returned by RunHandle.Wait when a reset or a newer run
// replaced the run before it finished.
var ErrSuperseded = errors.New("run superseded")

// Recorder persists finished runs.
type Recorder interface {
	Append(models.RunRecord) error
}

// Options tunes a Monitor.
type Options struct {
	// Concurrency bounds probes in flight. Values below 1 use DefaultConcurrency.
	Concurrency int
	// LaunchRate limits probe starts per second. Zero means unlimited.
	LaunchRate float64
	// Interval schedules periodic runs after Start. Zero disables them.
	Interval time.Duration
	// Recorder receives every finished run. Optional.
	Recorder Recorder
}

// Snapshot is a consistent read-only view of the live catalog.
type Snapshot struct {
	State      models.RunState   `json:"state"`
	Categories []models.Category `json:"categories"`
	Metrics    models.Metrics    `json:"metrics"`
}

// Monitor owns the live catalog and orchestrates test runs against it.
type Monitor struct {
	prober      probe.Prober
	concurrency int
	limiter     *rate.Limiter
	interval    time.Duration
	recorder    Recorder

	mu      sync.RWMutex
	seed    *catalog.Seed
	table   *catalog.Table
	state   models.RunState
	current *RunHandle
	cancel  context.CancelFunc
	subs    map[chan struct{}]struct{}

	ctx      context.Context
	shutdown context.CancelFunc
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// result is the message one probe sends to the run's consumer.
type result struct {
	generation     uint64
	key            catalog.Key
	classification models.Classification
}

// New creates an idle monitor over a fresh copy of seed.
func New(seed *catalog.Seed, prober probe.Prober, opts Options) *Monitor {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	limit, burst := rate.Inf, 1
	if opts.LaunchRate > 0 {
		limit = rate.Limit(opts.LaunchRate)
		if opts.LaunchRate > 1 {
			burst = int(opts.LaunchRate)
		}
	}

	table := catalog.NewTable(seed)
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		prober:      prober,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(limit, burst),
		interval:    opts.Interval,
		recorder:    opts.Recorder,
		seed:        seed,
		table:       table,
		state:       models.RunState{Phase: models.PhaseIdle, Total: table.Len()},
		subs:        make(map[chan struct{}]struct{}),
		ctx:         ctx,
		shutdown:    cancel,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches periodic runs when an interval is configured.
func (m *Monitor) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	if m.interval <= 0 {
		close(m.doneCh)
		return
	}
	go m.run()
}

// Stop ends periodic scheduling, supersedes any run in flight and cancels
// its probes.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	if m.started.Load() {
		<-m.doneCh
	}

	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
	m.shutdown()
	m.notify()
}

// SetSeed replaces the catalog definition. It takes effect on the next
// StartRun or Reset.
func (m *Monitor) SetSeed(seed *catalog.Seed) {
	m.mu.Lock()
	m.seed = seed
	m.mu.Unlock()
}

// StartRun resets the catalog and probes every domain. A run in flight is
// superseded and its late results are discarded.
func (m *Monitor) StartRun() *RunHandle {
	m.mu.Lock()
	m.supersedeLocked()
	m.table = catalog.NewTable(m.seed)
	m.state = models.RunState{
		ID:         uuid.NewString(),
		Generation: m.state.Generation + 1,
		Phase:      models.PhaseRunning,
		Total:      m.table.Len(),
		StartedAt:  time.Now().UTC(),
	}

	handle := newRunHandle(m.state.ID, m.state.Generation)
	targets := make([]catalog.Key, m.table.Len())
	for i := range targets {
		targets[i] = m.table.Key(i)
	}

	if len(targets) == 0 {
		record := m.finishLocked()
		state := m.state
		m.mu.Unlock()
		m.notify()
		m.record(record)
		handle.finish(state, false)
		return handle
	}

	runCtx, cancel := context.WithCancel(m.ctx)
	m.current = handle
	m.cancel = cancel
	m.mu.Unlock()

	log.Printf("run %s started (%d domains)", handle.ID, len(targets))
	m.notify()
	go m.execute(runCtx, handle, targets)
	return handle
}

// Reset discards the current run and returns every domain to pending.
func (m *Monitor) Reset() models.RunState {
	m.mu.Lock()
	m.resetLocked()
	state := m.state
	m.mu.Unlock()

	m.notify()
	return state
}

// State returns the current run state.
func (m *Monitor) State() models.RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns the catalog, run state and metrics as of one instant.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	categories := m.table.Snapshot()
	state := m.state
	m.mu.RUnlock()

	return Snapshot{
		State:      state,
		Categories: categories,
		Metrics:    metrics.Aggregate(categories),
	}
}

// Subscribe returns a channel signalled after every state change. Signals
// are coalesced; readers should take a fresh Snapshot on each one.
func (m *Monitor) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
		})
	}
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	m.StartRun()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if m.State().Phase == models.PhaseRunning {
				log.Printf("scheduled run skipped: previous run still in progress")
				continue
			}
			m.StartRun()
		case <-m.stopCh:
			return
		}
	}
}

// execute is the single consumer for one run's probe results.
func (m *Monitor) execute(ctx context.Context, h *RunHandle, targets []catalog.Key) {
	results := make(chan result, len(targets))
	go m.launch(ctx, h.Generation, targets, results)

	for res := range results {
		m.apply(res)
	}

	m.mu.Lock()
	stalled := m.current == h
	if stalled {
		// Launching stopped before every probe started, e.g. on shutdown.
		m.resetLocked()
	}
	m.mu.Unlock()
	if stalled {
		m.notify()
	}
}

func (m *Monitor) launch(ctx context.Context, generation uint64, targets []catalog.Key, results chan<- result) {
	defer close(results)

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for _, key := range targets {
		if err := m.limiter.Wait(ctx); err != nil {
			break
		}
		key := key // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			results <- result{
				generation:     generation,
				key:            key,
				classification: m.prober.Probe(ctx, key.Domain),
			}
			return nil
		})
	}
	_ = g.Wait()
}

// apply writes one result and bumps the counter in a single step. Results
// from a superseded generation are dropped.
func (m *Monitor) apply(res result) {
	m.mu.Lock()
	if res.generation != m.state.Generation || m.state.Phase != models.PhaseRunning {
		m.mu.Unlock()
		return
	}
	i, ok := m.table.Lookup(res.key)
	if !ok || !m.table.Resolve(i, res.classification.Status()) {
		m.mu.Unlock()
		return
	}
	m.state.TestedSoFar++

	if m.state.TestedSoFar < m.state.Total {
		m.mu.Unlock()
		m.notify()
		return
	}

	handle := m.current
	record := m.finishLocked()
	state := m.state
	m.mu.Unlock()

	log.Printf("run %s finished: %d/%d blocked (%d%%)",
		record.ID, record.Metrics.Blocked, record.Metrics.Total, record.Metrics.BlockedPercentage)
	m.notify()
	m.record(record)
	if handle != nil {
		handle.finish(state, false)
	}
}

func (m *Monitor) finishLocked() models.RunRecord {
	m.state.Phase = models.PhaseFinished
	m.state.FinishedAt = time.Now().UTC()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.current = nil

	return models.RunRecord{
		ID:         m.state.ID,
		StartedAt:  m.state.StartedAt,
		FinishedAt: m.state.FinishedAt,
		Metrics:    metrics.Aggregate(m.table.Snapshot()),
		Results:    m.table.Results(),
	}
}

// resetLocked supersedes the current run and starts a new idle generation
// over a fresh copy of the seed.
func (m *Monitor) resetLocked() {
	m.supersedeLocked()
	m.table = catalog.NewTable(m.seed)
	m.state = models.RunState{
		Generation: m.state.Generation + 1,
		Phase:      models.PhaseIdle,
		Total:      m.table.Len(),
	}
}

func (m *Monitor) supersedeLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.current != nil {
		log.Printf("run %s superseded at %d/%d", m.current.ID, m.state.TestedSoFar, m.state.Total)
		m.current.finish(m.state, true)
		m.current = nil
	}
}

func (m *Monitor) record(rec models.RunRecord) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Append(rec); err != nil {
		log.Printf("persist run %s: %v", rec.ID, err)
	}
}

func (m *Monitor) notify() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
