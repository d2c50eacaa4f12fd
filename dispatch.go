package kafkanet

import (
	"time"

	"github.com/nrandell/kafka-net/internal/metrics"
)

// run is the dispatch loop of spec.md §4.C: the single long-running
// consumer that drives the ingress queue to completion. It exits only
// once the queue is sealed and empty.
func (p *Producer) run() {
	defer close(p.done)

	for !p.queue.IsCompleted() {
		start := time.Now()

		batch, err := p.queue.TakeBatch(p.config.BatchSize, p.config.BatchDelayTime, p.stopCh)
		if err != nil {
			// Cancelled: treat as an empty batch and fall through to the
			// sealed-residual check below, exactly like the pseudocode's
			// "batch := TakeBatch(...) // may return null on cancel".
			batch = nil
		}

		if p.queue.IsSealed() && p.queue.Count() > 0 {
			batch = append(batch, p.queue.Drain()...)
		}

		if len(batch) > 0 {
			metrics.BatchSize.Observe(float64(len(batch)))
			p.dispatchBatch(batch)
			metrics.DispatchCycleDuration.Observe(time.Since(start).Seconds())
		}

		metrics.QueueDepth.Set(float64(p.queue.Count()))
	}
}

// dispatchBatch runs produceAndSend behind a recover so that an unexpected
// panic anywhere in fan-out/demux is logged and swallowed rather than
// killing the dispatch loop (spec §7's dispatch-internal class), while
// still guaranteeing every submission in the batch receives a terminal
// result.
func (p *Producer) dispatchBatch(batch []*submission) {
	defer p.recoverDispatchInternal(batch)
	p.produceAndSend(batch)
}
