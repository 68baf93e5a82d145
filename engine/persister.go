package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"trading-journal/monitoring"
)

const (
	persistTimeout = 10 * time.Second
	// how long submit waits for queue space before writing out of band
	overflowWait = 50 * time.Millisecond
)

type persistJob struct {
	op    string
	write func(ctx context.Context) error
}

// persister applies writes in submission order on a single goroutine so that
// successive versions of the same alert reach storage in order.
type persister struct {
	jobs     chan persistJob
	logger   *zap.Logger
	wg       sync.WaitGroup
	overflow sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

func newPersister(queueSize int, logger *zap.Logger) *persister {
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &persister{
		jobs:   make(chan persistJob, queueSize),
		logger: logger,
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *persister) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.apply(job)
	}
}

func (p *persister) apply(job persistJob) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := job.write(ctx); err != nil {
		monitoring.PersistenceFailures.Inc()
		p.logger.Error("persistence write failed", zap.String("op", job.op), zap.Error(err))
	}
}

// submit waits up to overflowWait for queue space. After that the write runs
// on its own goroutine and may overtake queued writes; the alert store skips
// writes older than the stored version, so an alert never moves backwards.
func (p *persister) submit(op string, write func(ctx context.Context) error) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("persistence write after close dropped", zap.String("op", op))
		return false
	}

	job := persistJob{op: op, write: write}
	select {
	case p.jobs <- job:
		return true
	default:
	}

	timer := time.NewTimer(overflowWait)
	defer timer.Stop()
	select {
	case p.jobs <- job:
	case <-timer.C:
		p.logger.Warn("persistence queue full, writing out of band", zap.String("op", op))
		p.overflow.Add(1)
		go func() {
			defer p.overflow.Done()
			p.apply(job)
		}()
	}
	return true
}

// close drains queued writes and stops the worker
func (p *persister) close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
	p.overflow.Wait()
}

// flush waits until every write submitted before the call has been applied
func (p *persister) flush() {
	done := make(chan struct{})
	if p.submit("flush", func(context.Context) error {
		close(done)
		return nil
	}) {
		<-done
	}
	p.overflow.Wait()
}
