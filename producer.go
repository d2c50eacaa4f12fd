package kafkanet

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nrandell/kafka-net/internal/metrics"
	"github.com/nrandell/kafka-net/internal/tracing"
	producererrors "github.com/nrandell/kafka-net/pkg/errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Producer is the producer core's public handle: the submission API, the
// dispatch loop, and the lifecycle operations described in spec.md §§4.B,
// 4.C, 4.F, wired to an external Router.
type Producer struct {
	config Config
	router Router
	logger *logrus.Logger
	tracer *tracing.Manager

	queue *ingressQueue

	active int64 // atomic; sum of |messages| between enqueue and send hand-off

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	stopping int32 // atomic bool; set by Stop before sealing the queue
}

// Option configures optional Producer collaborators at construction time.
type Option func(*Producer)

// WithLogger overrides the default standard logrus logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(p *Producer) { p.logger = logger }
}

// WithTracer installs an OpenTelemetry tracing manager. Without this
// option the producer runs with a noop tracer.
func WithTracer(tracer *tracing.Manager) Option {
	return func(p *Producer) { p.tracer = tracer }
}

// NewProducer is the Start operation of spec.md §4.F: it constructs the
// ingress queue and spawns the dispatch loop. The returned Producer is
// immediately usable via Send.
func NewProducer(config Config, router Router, opts ...Option) *Producer {
	p := &Producer{
		config: config,
		router: router,
		logger: logrus.StandardLogger(),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer, _ = tracing.NewManager(tracing.Config{Enabled: false}, p.logger)
	}
	p.queue = newIngressQueue(config.MaximumMessageBuffer)

	go p.run()
	return p
}

// SendOption customizes a single Send call's acks/timeout/codec away from
// the producer's configured defaults.
type SendOption func(*submission)

// WithAcks overrides the broker acknowledgement requirement for one Send.
func WithAcks(acks int16) SendOption {
	return func(s *submission) { s.acks = acks }
}

// WithTimeout overrides the broker-side wait duration for one Send.
func WithTimeout(timeout time.Duration) SendOption {
	return func(s *submission) { s.timeoutMs = int32(timeout / time.Millisecond) }
}

// WithCodec overrides the compression selector for one Send.
func WithCodec(codec string) SendOption {
	return func(s *submission) { s.codec = codec }
}

// Send is the Submission API of spec.md §4.B: it snapshots messages,
// enqueues a submission (blocking under backpressure), and returns a
// Future resolved once the broker has answered or the attempt has failed.
//
// Send fails synchronously with *producer-disposed* if the lifecycle is
// stopping, and with *ingress-sealed* on the rare race where sealing
// happens between that check and the enqueue attempt. Every other failure
// is delivered through the returned Future, never thrown synchronously.
func (p *Producer) Send(topic string, messages []Message, opts ...SendOption) (Future, error) {
	if atomic.LoadInt32(&p.stopping) != 0 {
		return Future{}, producererrors.Disposed("Send")
	}

	snapshot := append([]Message(nil), messages...)

	s := &submission{
		topic:      topic,
		messages:   snapshot,
		acks:       p.config.DefaultAcks,
		timeoutMs:  int32(p.config.DefaultTimeout / time.Millisecond),
		codec:      p.config.DefaultCodec,
		completion: newCompletion(),
		enqueuedAt: time.Now(),
		id:         uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := p.queue.Add(s); err != nil {
		return Future{}, err
	}

	atomic.AddInt64(&p.active, int64(len(snapshot)))
	metrics.ActiveMessages.Set(float64(atomic.LoadInt64(&p.active)))
	metrics.QueueDepth.Set(float64(p.queue.Count()))
	if p.config.MaximumMessageBuffer > 0 {
		metrics.QueueUtilization.Set(float64(p.queue.Count()) / float64(p.config.MaximumMessageBuffer))
	}

	p.logger.WithFields(logrus.Fields{
		"submission_id": s.id,
		"topic":         topic,
		"messages":      len(snapshot),
		"acks":          s.acks,
	}).Debug("submission enqueued")

	return Future{c: s.completion}, nil
}

// Stop begins graceful shutdown: the ingress queue is sealed, the shared
// stop signal is tripped (unblocking any in-flight TakeBatch), and, if
// waitForInFlight is set, Stop blocks for the dispatch loop to drain,
// bounded by maxWait (config.MaxDisposeWait if maxWait <= 0).
//
// Stop is idempotent and safe to call concurrently or multiple times.
func (p *Producer) Stop(waitForInFlight bool, maxWait time.Duration) {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopping, 1)
		p.queue.Seal()
		close(p.stopCh)
	})

	if !waitForInFlight {
		return
	}
	if maxWait <= 0 {
		maxWait = p.config.MaxDisposeWait
	}

	select {
	case <-p.done:
	case <-time.After(maxWait):
		p.logger.WithField("max_wait", maxWait).Warn("dispatch loop did not drain before max wait elapsed")
	}
}

// Dispose idempotently calls Stop(false, 0). Safe to call after Stop.
func (p *Producer) Dispose() {
	p.Stop(false, 0)
}

func (p *Producer) recoverDispatchInternal(batch []*submission) {
	if r := recover(); r != nil {
		err := producererrors.DispatchInternal(fmt.Errorf("panic: %v", r))
		p.logger.WithError(err).Error("dispatch loop recovered from panic, failing batch")
		failAll(batch, err)
	}
}
