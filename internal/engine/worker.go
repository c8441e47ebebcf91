package engine

import (
	"context"
	"sync"
	"time"

	"github.com/salonhq/booking-assistant/pkg/logging"
)

const (
	defaultWorkerCount = 2
	defaultTurnBudget  = 30 * time.Second
	receiveWaitSecs    = 2
	receiveBatchSize   = 5
)

// Worker drains the inbound queue and runs each job through the engine.
// Every turn gets its own deadline so one stuck model call cannot wedge a
// worker.
type Worker struct {
	engine  *Engine
	queue   queueClient
	workers int
	budget  time.Duration
	logger  *logging.Logger
	wg      sync.WaitGroup
}

// NewWorker creates a worker pool of the given size.
func NewWorker(engine *Engine, queue queueClient, workers int, budget time.Duration, logger *logging.Logger) *Worker {
	if engine == nil {
		panic("engine: engine required")
	}
	if queue == nil {
		panic("engine: queue required")
	}
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	if budget <= 0 {
		budget = defaultTurnBudget
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{engine: engine, queue: queue, workers: workers, budget: budget, logger: logger}
}

// Start launches the pool. Workers run until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting conversation workers", "count", w.workers)
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			w.run(ctx, id)
		}(i)
	}
}

// Wait blocks until every worker has exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping", "worker", id)
			return
		default:
		}

		msgs, err := w.queue.Receive(ctx, receiveBatchSize, receiveWaitSecs)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping", "worker", id)
				return
			}
			w.logger.Error("queue receive failed", "worker", id, "error", err)
			continue
		}

		for _, m := range msgs {
			payload, err := decodePayload(m.Body)
			if err != nil {
				w.logger.Error("dropping undecodable job", "worker", id, "error", err)
				continue
			}
			turnCtx, cancel := context.WithTimeout(ctx, w.budget)
			err = w.engine.ProcessInbound(turnCtx, payload.Inbound)
			cancel()
			if err != nil {
				w.logger.Error("turn failed",
					"worker", id,
					"platform", payload.Inbound.Platform,
					"sender_id", payload.Inbound.SenderID,
					"error", err,
				)
			}
		}
	}
}
