package dispatchgate

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Job representa el procesamiento de un evento de canal para una conversación
type Job struct {
	TenantID  string
	ChannelID string
	Number    string // normalized counterpart number
	Handler   func(ctx context.Context) error
}

func (j Job) key() string {
	return j.TenantID + "|" + j.ChannelID + "|" + j.Number
}

// GateStats contiene métricas en tiempo real del gate
type GateStats struct {
	NumWorkers      int            `json:"num_workers"`
	QueueSize       int            `json:"queue_size"`
	ActiveWorkers   int            `json:"active_workers"`
	TotalDispatched int64          `json:"total_dispatched"`
	TotalProcessed  int64          `json:"total_processed"`
	TotalDropped    int64          `json:"total_dropped"`
	TotalErrors     int64          `json:"total_errors"`
	WorkerStats     []WorkerStats  `json:"worker_stats"`
	ActiveKeys      map[string]int `json:"active_keys"` // tenant|channel|number -> worker_id
}

// WorkerStats contiene métricas por worker individual
type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

type activeKeyEntry struct {
	workerID  int
	updatedAt time.Time
}

// Gate serializa todas las operaciones de una misma conversación: los jobs de
// una clave (tenant, channel, number) van siempre al mismo worker y se
// procesan en orden de llegada; claves distintas avanzan en paralelo.
type Gate struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32
	stopCh     chan struct{}

	// Métricas
	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64
	activeKeysMu    sync.RWMutex
	activeKeys      map[string]activeKeyEntry
	startTime       time.Time
}

// worker representa un worker individual con su cola FIFO
type worker struct {
	id            int
	jobQueue      chan Job
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32 // atomic: 1 if processing, 0 if idle
	jobsProcessed int64 // atomic counter
	gate          *Gate
}

// New crea un gate con el número de workers y tamaño de cola indicados
func New(numWorkers, queueSize int) *Gate {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	return &Gate{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
		activeKeys: make(map[string]activeKeyEntry),
		stopCh:     make(chan struct{}),
		startTime:  time.Now(),
	}
}

// Start inicia todos los workers del gate
func (g *Gate) Start(ctx context.Context) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-g.stopCh:
				return
			case <-ticker.C:
				now := time.Now()
				g.activeKeysMu.Lock()
				for k, v := range g.activeKeys {
					if !v.updatedAt.IsZero() && now.Sub(v.updatedAt) > 2*time.Second {
						delete(g.activeKeys, k)
					}
				}
				g.activeKeysMu.Unlock()
			}
		}
	}()

	for i := 0; i < g.numWorkers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:       i,
			jobQueue: make(chan Job, g.queueSize),
			ctx:      workerCtx,
			cancel:   cancel,
			gate:     g,
		}
		g.workers[i] = w

		g.wg.Add(1)
		go w.run(&g.wg)
	}

	logrus.Infof("[GATE] Started with %d workers, queue size: %d", g.numWorkers, g.queueSize)
}

// TryDispatch encola un job en el worker de su clave (no bloqueante) y
// retorna si pudo encolarse. Útil para aplicar backpressure en el webhook.
func (g *Gate) TryDispatch(job Job) bool {
	if atomic.LoadInt32(&g.stopped) == 1 {
		atomic.AddInt64(&g.totalDropped, 1)
		return false
	}

	shard := g.shardForKey(job.key())
	atomic.AddInt64(&g.totalDispatched, 1)

	key := job.key()
	g.activeKeysMu.Lock()
	g.activeKeys[key] = activeKeyEntry{workerID: shard, updatedAt: time.Now()}
	g.activeKeysMu.Unlock()

	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case g.workers[shard].jobQueue <- job:
			return true
		default:
			return false
		}
	}()

	if sent {
		return true
	}
	g.activeKeysMu.Lock()
	delete(g.activeKeys, key)
	g.activeKeysMu.Unlock()

	atomic.AddInt64(&g.totalDropped, 1)
	logrus.Warnf("[GATE] Worker %d queue full (or stopped), dropping job for %s", shard, key)
	return false
}

// Dispatch encola un job en el worker de su clave (no bloqueante)
func (g *Gate) Dispatch(job Job) {
	_ = g.TryDispatch(job)
}

// Stop detiene el gate de forma graceful
func (g *Gate) Stop() {
	g.stopOnce.Do(func() {
		atomic.StoreInt32(&g.stopped, 1)
		close(g.stopCh)
		logrus.Info("[GATE] Stopping workers...")

		for _, w := range g.workers {
			w.cancel()
			close(w.jobQueue)
		}

		g.wg.Wait()

		logrus.Info("[GATE] All workers stopped")
	})
}

// shardForKey calcula el worker para una clave usando hash consistente
func (g *Gate) shardForKey(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(g.numWorkers))
}

// GetStats retorna estadísticas en tiempo real del gate
func (g *Gate) GetStats() GateStats {
	workerStats := make([]WorkerStats, len(g.workers))
	activeWorkers := 0

	for i, w := range g.workers {
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}

		workerStats[i] = WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		}
	}

	now := time.Now()
	g.activeKeysMu.Lock()
	activeKeysSnapshot := make(map[string]int, len(g.activeKeys))
	for k, v := range g.activeKeys {
		if !v.updatedAt.IsZero() && now.Sub(v.updatedAt) > 2*time.Second {
			delete(g.activeKeys, k)
			continue
		}
		activeKeysSnapshot[k] = v.workerID
	}
	g.activeKeysMu.Unlock()

	return GateStats{
		NumWorkers:      g.numWorkers,
		QueueSize:       g.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&g.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&g.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&g.totalDropped),
		TotalErrors:     atomic.LoadInt64(&g.totalErrors),
		WorkerStats:     workerStats,
		ActiveKeys:      activeKeysSnapshot,
	}
}

// run ejecuta el loop principal del worker
func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	logrus.Debugf("[GATE] Worker %d started", w.id)

	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				logrus.Debugf("[GATE] Worker %d shutting down", w.id)
				return
			}

			// Procesar job con defer para garantizar limpieza
			func() {
				atomic.StoreInt32(&w.isProcessing, 1)
				defer func() {
					if r := recover(); r != nil {
						atomic.AddInt64(&w.gate.totalErrors, 1)
						logrus.Errorf("[GATE] Worker %d panic for %s: %v", w.id, job.key(), r)
					}
					atomic.StoreInt32(&w.isProcessing, 0)
					atomic.AddInt64(&w.jobsProcessed, 1)
					atomic.AddInt64(&w.gate.totalProcessed, 1)
				}()

				if err := job.Handler(w.ctx); err != nil {
					atomic.AddInt64(&w.gate.totalErrors, 1)
					logrus.WithError(err).Errorf("[GATE] Worker %d job failed for %s", w.id, job.key())
				}
			}()

		case <-w.ctx.Done():
			// Contexto cancelado, procesar jobs restantes antes de terminar
			logrus.Debugf("[GATE] Worker %d context cancelled, draining queue...", w.id)
			w.drainQueue()
			return
		}
	}
}

// drainQueue procesa jobs pendientes antes del shutdown
func (w *worker) drainQueue() {
	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				return
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						atomic.AddInt64(&w.gate.totalErrors, 1)
						logrus.Errorf("[GATE] Worker %d drain panic: %v", w.id, r)
					}
				}()
				if err := job.Handler(w.ctx); err != nil {
					logrus.WithError(err).Errorf("[GATE] Worker %d drain job failed", w.id)
				}
			}()
		default:
			return
		}
	}
}
