package kafkanet

import "sync/atomic"

// Stats is a point-in-time snapshot of the producer's health, grounded in
// the teacher's KafkaSink.GetStats/Dispatcher.GetStats pattern: a way for
// callers to poll health without scraping Prometheus.
type Stats struct {
	QueueDepth     int
	QueueSealed    bool
	QueueCompleted bool
	ActiveMessages int64
}

// Stats returns a snapshot of the producer's queue and active-message
// counter.
func (p *Producer) Stats() Stats {
	return Stats{
		QueueDepth:     p.queue.Count(),
		QueueSealed:    p.queue.IsSealed(),
		QueueCompleted: p.queue.IsCompleted(),
		ActiveMessages: atomic.LoadInt64(&p.active),
	}
}
