// Package kafkanet implements the producer core of a client library for a
// partitioned, replicated, log-based messaging system: a bounded ingress
// queue, Nagle-style time+size batching, per-(acks,timeout) and
// per-(route,topic,codec) regrouping, fan-out to broker connections, and a
// topic-keyed response demultiplexer that resolves each caller's pending
// completion exactly once.
//
// The broker router and connection are external collaborators, consumed
// here as the Router and Connection interfaces; a concrete sarama-backed
// implementation lives in the broker subpackage.
package kafkanet

import (
	"sync/atomic"
	"time"
)

// Message is one wire-level record: an optional key and a payload value.
type Message struct {
	Key   []byte
	Value []byte
}

// PartitionResponse is the broker's answer for one topic-partition within a
// produce request.
type PartitionResponse struct {
	Topic     string
	Partition int32
	Offset    int64
	ErrorCode int16
}

// Route is the opaque product of Router.SelectBrokerRoute: a partition id
// and the connection that can reach that partition's leader.
type Route struct {
	PartitionID int32
	Connection  Connection
	// Description is a short human-readable identifier ("orders:3") used
	// in logs and in send-failed errors. The fan-out stage also uses it
	// as the route's identity when forming (route, topic, codec) inner
	// groups, so two routes with the same Description share a request.
	Description string
}

// ProduceRequest is the wire-shaped request built by the fan-out stage for
// one inner group. Acks and TimeoutMs come from the enclosing outer group.
type ProduceRequest struct {
	Acks      int16
	TimeoutMs int32
	Payloads  []Payload
}

// Payload is one topic-partition's worth of messages within a
// ProduceRequest.
type Payload struct {
	Topic     string
	Partition int32
	Codec     string
	Messages  []Message
}

// Router resolves a (topic, key) pair to the route responsible for it.
// Router implementations must be safe for concurrent use: route selection
// runs concurrently across outer groups, and connection dispatch across
// inner groups.
type Router interface {
	SelectBrokerRoute(topic string, key []byte) (Route, error)
}

// Connection sends one produce request over the wire and returns the
// broker's per-partition responses. Implementations own retries at the
// transport level, if any; the producer core never retries.
type Connection interface {
	SendAsync(req ProduceRequest) ([]PartitionResponse, error)
}

// completion is the single-shot future backing a Submission. It is
// resolved exactly once; subsequent resolutions are ignored.
type completion struct {
	done chan struct{}
	once doOnce

	responses []PartitionResponse
	err       error
}

// doOnce is a minimal do-once guard, kept local rather than reaching for
// sync.Once so resolve() can report whether it actually fired.
type doOnce struct {
	fired int32
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// resolve completes the future with responses or err (never both
// meaningfully populated). Returns false if the future was already
// resolved, in which case the call is a no-op.
func (c *completion) resolve(responses []PartitionResponse, err error) bool {
	if !c.once.do() {
		return false
	}
	c.responses = responses
	c.err = err
	close(c.done)
	return true
}

func (c *doOnce) do() bool {
	return atomic.CompareAndSwapInt32(&c.fired, 0, 1)
}

// Future is the caller-facing handle returned by Send. It carries exactly
// one terminal result: a response list on success, or an error.
type Future struct {
	c *completion
}

// Wait blocks until the submission resolves and returns its result.
func (f Future) Wait() ([]PartitionResponse, error) {
	<-f.c.done
	return f.c.responses, f.c.err
}

// Done returns a channel that closes when the submission resolves, for
// callers that want to select on multiple futures or a context deadline.
func (f Future) Done() <-chan struct{} {
	return f.c.done
}

// Result returns the resolved value without blocking; ok is false if the
// future has not resolved yet.
func (f Future) Result() (responses []PartitionResponse, err error, ok bool) {
	select {
	case <-f.c.done:
		return f.c.responses, f.c.err, true
	default:
		return nil, nil, false
	}
}

// submission is one caller-level Send invocation in flight through the
// core. It is created by the Submission API, queued, flattened into
// messages during fan-out, and destroyed once its completion resolves.
type submission struct {
	topic      string
	messages   []Message
	acks       int16
	timeoutMs  int32
	codec      string
	completion *completion

	enqueuedAt time.Time
	id         string
}
