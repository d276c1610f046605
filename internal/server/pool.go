package server

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/lexiqai/tldr/internal/observability"
	"github.com/lexiqai/tldr/internal/queue"
)

// ItemHandler handles one queued connection to completion
type ItemHandler func(workerID int, item queue.Item)

// Pool runs a fixed number of workers draining a queue
type Pool struct {
	queue   *queue.Queue
	size    int
	handle  ItemHandler
	logger  zerolog.Logger
	wg      sync.WaitGroup
	busy    atomic.Int32
	started atomic.Bool
}

// NewPool creates a pool of size workers. Size below one is raised to one.
func NewPool(q *queue.Queue, size int, handle ItemHandler) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		queue:  q,
		size:   size,
		handle: handle,
		logger: observability.GetLogger().With().Str("component", "pool").Logger(),
	}
}

// Start launches the workers. Calling it again has no effect.
func (p *Pool) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.wg.Add(p.size)
	for id := 0; id < p.size; id++ {
		go p.worker(id)
	}
}

// Wait blocks until every worker has returned, which happens once the queue
// is closed and drained.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Busy returns the number of workers currently handling an item
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.logger.Debug().Int("worker", id).Msg("Worker started")

	for {
		item, ok := p.queue.Receive()
		if !ok {
			p.logger.Debug().Int("worker", id).Msg("Worker shutting down")
			return
		}
		observability.SetQueueDepth(p.queue.Len())
		p.run(id, item)
	}
}

// run shields the worker loop from a panicking handler
func (p *Pool) run(id int, item queue.Item) {
	p.busy.Add(1)
	observability.WorkerStarted()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Int("worker", id).
				Str("request_id", item.RequestID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Worker recovered from panic")
			observability.RecordError("panic", "pool")
			if item.Conn != nil {
				item.Conn.Close()
			}
		}
		observability.WorkerFinished()
		p.busy.Add(-1)
	}()

	p.handle(id, item)
}
