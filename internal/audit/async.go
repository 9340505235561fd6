// Package audit decouples audit-log persistence from the request path. The
// request handler enqueues and moves on; workers drain the queue into the
// durable sink. A full queue drops the record rather than blocking a request.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pappertech/dispatch-core/internal/core/domain"
	"github.com/pappertech/dispatch-core/internal/metrics"
	"github.com/pappertech/dispatch-core/internal/port"
)

const writeTimeout = 5 * time.Second

// AsyncSink wraps a durable port.AuditSink with a buffered queue and a worker
// pool. It implements port.AuditSink itself, so callers cannot tell the two
// apart.
type AsyncSink struct {
	sink   port.AuditSink
	queue  chan domain.AuditRecord
	wg     sync.WaitGroup
	logger *zap.Logger

	closeOnce sync.Once
}

func NewAsyncSink(sink port.AuditSink, queueSize, workers int, logger *zap.Logger) *AsyncSink {
	s := &AsyncSink{
		sink:   sink,
		queue:  make(chan domain.AuditRecord, queueSize),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.workerLoop(id)
		}(i)
	}
	return s
}

// Record enqueues rec. It never blocks: when the queue is full the record is
// dropped and counted.
func (s *AsyncSink) Record(_ context.Context, rec domain.AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	select {
	case s.queue <- rec:
	default:
		metrics.AuditEventsDroppedTotal.Inc()
		s.logger.Warn("audit queue full, dropping record",
			zap.String("action", rec.Action))
	}
	return nil
}

func (s *AsyncSink) workerLoop(id int) {
	for rec := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.sink.Record(ctx, rec); err != nil {
			metrics.AuditWriteFailuresTotal.Inc()
			s.logger.Error("audit write failed",
				zap.Int("worker", id),
				zap.String("action", rec.Action),
				zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting records and waits for the workers to drain the queue.
func (s *AsyncSink) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
}
