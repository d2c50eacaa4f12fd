package kafkanet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdleProducer(conn *fakeConnection, router *fakeRouter) *Producer {
	return &Producer{
		config: testConfig(),
		router: router,
		logger: testLogger(),
		queue:  newIngressQueue(testConfig().MaximumMessageBuffer),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func TestProduceAndSendGroupsByAcksAndTimeout(t *testing.T) {
	conn := &fakeConnection{}
	router := newFakeRouter(conn)
	p := newIdleProducer(conn, router)
	setNoopTracer(t, p)

	a1 := &submission{topic: "orders", messages: []Message{{Value: []byte("a")}}, acks: 1, timeoutMs: 100, completion: newCompletion()}
	a2 := &submission{topic: "orders", messages: []Message{{Value: []byte("b")}}, acks: 1, timeoutMs: 100, completion: newCompletion()}
	b1 := &submission{topic: "orders", messages: []Message{{Value: []byte("c")}}, acks: -1, timeoutMs: 500, completion: newCompletion()}

	p.produceAndSend([]*submission{a1, a2, b1})

	for _, s := range []*submission{a1, a2, b1} {
		_, err := (Future{c: s.completion}).Wait()
		require.NoError(t, err)
	}
	assert.Equal(t, 2, conn.requestCount(), "two distinct (acks,timeout) groups should issue two requests")
}

func TestProduceAndSendRegroupsByRouteTopicCodec(t *testing.T) {
	conn := &fakeConnection{}
	router := newFakeRouter(conn)
	p := newIdleProducer(conn, router)
	setNoopTracer(t, p)

	s1 := &submission{topic: "orders", messages: []Message{{Value: []byte("a")}}, acks: 1, codec: "none", completion: newCompletion()}
	s2 := &submission{topic: "payments", messages: []Message{{Value: []byte("b")}}, acks: 1, codec: "none", completion: newCompletion()}

	p.produceAndSend([]*submission{s1, s2})

	require.NoError(t, waitFuture(t, s1))
	require.NoError(t, waitFuture(t, s2))
	assert.Equal(t, 2, conn.requestCount(), "different topics must not share an inner group")
}

func TestProduceAndSendSendFailureFailsEveryOuterGroupMember(t *testing.T) {
	conn := &fakeConnection{sendErr: assertAnError}
	router := newFakeRouter(conn)
	p := newIdleProducer(conn, router)
	setNoopTracer(t, p)

	s1 := &submission{topic: "orders", messages: []Message{{Value: []byte("a")}}, completion: newCompletion()}
	s2 := &submission{topic: "orders", messages: []Message{{Value: []byte("b")}}, completion: newCompletion()}

	p.produceAndSend([]*submission{s1, s2})

	for _, s := range []*submission{s1, s2} {
		err := waitFuture(t, s)
		require.Error(t, err)
	}
}

func TestProduceAndSendOuterGroupIsolation(t *testing.T) {
	conn := &fakeConnection{
		onSend: func(req ProduceRequest) ([]PartitionResponse, error) {
			if req.Acks == -1 {
				return nil, assertAnError
			}
			var responses []PartitionResponse
			for _, p := range req.Payloads {
				responses = append(responses, PartitionResponse{Topic: p.Topic, Partition: p.Partition})
			}
			return responses, nil
		},
	}
	router := newFakeRouter(conn)
	p := newIdleProducer(conn, router)
	setNoopTracer(t, p)

	good := &submission{topic: "orders", messages: []Message{{Value: []byte("a")}}, acks: 1, completion: newCompletion()}
	bad := &submission{topic: "orders", messages: []Message{{Value: []byte("b")}}, acks: -1, completion: newCompletion()}

	p.produceAndSend([]*submission{good, bad})

	assert.NoError(t, waitFuture(t, good))
	assert.Error(t, waitFuture(t, bad))
}

func TestProduceAndSendRouteFailureRestoresActiveCounter(t *testing.T) {
	conn := &fakeConnection{}
	router := newFakeRouter(conn)
	router.routeErrFor = "orders"
	p := newIdleProducer(conn, router)
	setNoopTracer(t, p)

	s := &submission{topic: "orders", messages: []Message{{Value: []byte("a")}, {Value: []byte("b")}}, completion: newCompletion()}
	p.active = 2

	p.produceAndSend([]*submission{s})

	require.Error(t, waitFuture(t, s))
	assert.Equal(t, int64(0), p.active)
}

func TestProduceAndSendEmptyMessagesResolvesWithoutSending(t *testing.T) {
	conn := &fakeConnection{}
	router := newFakeRouter(conn)
	p := newIdleProducer(conn, router)
	setNoopTracer(t, p)

	s := &submission{topic: "orders", messages: nil, completion: newCompletion()}
	p.produceAndSend([]*submission{s})

	responses, err := waitFutureResponses(t, s)
	require.NoError(t, err)
	assert.Empty(t, responses)
	assert.Equal(t, 0, conn.requestCount())
}

func waitFuture(t *testing.T, s *submission) error {
	t.Helper()
	_, err := waitFutureResponses(t, s)
	return err
}

func waitFutureResponses(t *testing.T, s *submission) ([]PartitionResponse, error) {
	t.Helper()
	select {
	case <-s.completion.done:
		return s.completion.responses, s.completion.err
	case <-time.After(time.Second):
		t.Fatal("submission never resolved")
		return nil, nil
	}
}
