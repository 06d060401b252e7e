package auction

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jkap86/ht-mvp-backend-sub000/log"
	"github.com/jkap86/ht-mvp-backend-sub000/metrics"
)

// DefaultMonitorInterval is the scan cadence of the deadline monitor.
const DefaultMonitorInterval = time.Second

// taskKind discriminates deadline work items.
type taskKind int

const (
	taskSettle taskKind = iota
	taskAutoNominate
)

// task is one unit of deadline work for a draft.
type task struct {
	kind    taskKind
	draftID uuid.UUID
	lotID   uuid.UUID // settle only
}

// Monitor is the deadline monitor (one per process). On each tick it scans
// for active lots whose bid deadline passed and in-progress drafts whose
// nominator clock passed with no active lot, and dispatches settlements and
// auto-nominations. Work is processed serially per draft; the DRAFT lock
// would serialize concurrent workers anyway, but serial dispatch avoids
// wasted contention. Items are best-effort: when state has already advanced
// by the time an item runs, the locked re-read no-ops.
type Monitor struct {
	service  *Service
	runner   Runner
	clock    Clock
	interval time.Duration
	logger   *log.Logger
	syncMode bool

	mu      sync.Mutex
	workers map[uuid.UUID]*draftWorker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInterval sets the scan cadence.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.interval = d }
}

// WithMonitorClock sets the monitor's time source.
func WithMonitorClock(c Clock) MonitorOption {
	return func(m *Monitor) { m.clock = c }
}

// WithMonitorLogger sets the monitor logger.
func WithMonitorLogger(l *log.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

// WithSyncMode processes work inline on Tick instead of dispatching to
// per-draft workers. For tests.
func WithSyncMode(sync bool) MonitorOption {
	return func(m *Monitor) { m.syncMode = sync }
}

// NewMonitor creates a deadline monitor over the service and its runner.
func NewMonitor(service *Service, runner Runner, opts ...MonitorOption) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		service:  service,
		runner:   runner,
		clock:    SystemClock{},
		interval: DefaultMonitorInterval,
		logger:   log.Default().Module("monitor"),
		workers:  make(map[uuid.UUID]*draftWorker),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the scan loop.
func (m *Monitor) Start() {
	if m.syncMode {
		m.logger.Info("monitor_started", "sync_mode", true)
		return
	}
	m.wg.Add(1)
	go m.run()
	m.logger.Info("monitor_started", "interval", m.interval.String())
}

// Stop shuts the monitor down and waits for in-flight work to finish.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	workers := make([]*draftWorker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.workers = make(map[uuid.UUID]*draftWorker)
	m.mu.Unlock()

	for _, w := range workers {
		w.stop()
	}
	metrics.MonitorWorkersActive.Set(0)
	m.logger.Info("monitor_stopped")
}

func (m *Monitor) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Tick(m.ctx)
		}
	}
}

// Tick performs one scan and dispatches the work it finds. Exposed so tests
// and sync mode can drive the monitor deterministically.
func (m *Monitor) Tick(ctx context.Context) {
	metrics.MonitorTicksTotal.Inc()
	now := m.clock.Now()

	var tasks []task
	err := m.runner.Read(ctx, func(ctx context.Context, st Stores) error {
		lots, err := st.Lots().Expired(ctx, now)
		if err != nil {
			return err
		}
		for _, lot := range lots {
			tasks = append(tasks, task{kind: taskSettle, draftID: lot.DraftID, lotID: lot.ID})
		}
		drafts, err := st.Drafts().ExpiredNominations(ctx, now)
		if err != nil {
			return err
		}
		for _, d := range drafts {
			tasks = append(tasks, task{kind: taskAutoNominate, draftID: d.ID})
		}
		return nil
	})
	if err != nil {
		m.logger.Error("monitor_scan_failed", "err", err)
		return
	}

	for _, t := range tasks {
		if m.syncMode {
			m.process(ctx, t)
			continue
		}
		m.worker(t.draftID).submit(t)
	}
}

// worker returns the serial worker for a draft, creating it on first use.
func (m *Monitor) worker(draftID uuid.UUID) *draftWorker {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[draftID]
	if !ok {
		w = newDraftWorker(draftID, m)
		m.workers[draftID] = w
		w.start()
		metrics.MonitorWorkersActive.Set(float64(len(m.workers)))
	}
	return w
}

// process executes one work item against the service.
func (m *Monitor) process(ctx context.Context, t task) {
	var err error
	switch t.kind {
	case taskSettle:
		err = m.service.SettleExpiredLot(ctx, t.draftID, t.lotID)
	case taskAutoNominate:
		_, err = m.service.AutoNominate(ctx, t.draftID)
	}
	if err != nil {
		m.logger.Error("monitor_task_failed",
			"draft_id", t.draftID,
			"kind", int(t.kind),
			"err", err,
		)
	}
}

// Stats reports the monitor's dispatch state for the debug endpoint.
func (m *Monitor) Stats() MonitorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := MonitorStats{ActiveWorkers: len(m.workers)}
	for id, w := range m.workers {
		stats.Queues = append(stats.Queues, DraftQueueStats{
			DraftID:    id,
			QueueDepth: len(w.queue),
		})
	}
	return stats
}

// MonitorStats is the monitor's debug view.
type MonitorStats struct {
	ActiveWorkers int               `json:"active_workers"`
	Queues        []DraftQueueStats `json:"queues,omitempty"`
}

// DraftQueueStats is one draft's queue line in the debug view.
type DraftQueueStats struct {
	DraftID    uuid.UUID `json:"draft_id"`
	QueueDepth int       `json:"queue_depth"`
}

// draftWorker processes one draft's deadline work serially.
type draftWorker struct {
	draftID uuid.UUID
	monitor *Monitor
	queue   chan task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newDraftWorker(draftID uuid.UUID, m *Monitor) *draftWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &draftWorker{
		draftID: draftID,
		monitor: m,
		queue:   make(chan task, 64),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *draftWorker) start() {
	w.wg.Add(1)
	go w.run()
}

func (w *draftWorker) stop() {
	w.cancel()
	w.wg.Wait()
}

// submit enqueues a task without blocking; a full queue drops the item, which
// is safe because the next tick rediscovers outstanding deadlines.
func (w *draftWorker) submit(t task) {
	select {
	case w.queue <- t:
		metrics.MonitorQueueDepth.Inc()
	default:
	}
}

func (w *draftWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			metrics.MonitorQueueDepth.Dec()
			w.monitor.process(w.ctx, t)
		}
	}
}
