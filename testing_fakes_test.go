package kafkanet

import (
	"fmt"
	"sync"
)

// fakeRouter and fakeConnection are deterministic test doubles for the
// Router/Connection interfaces: one partition per topic unless overridden,
// a single shared connection, with knobs for forcing route or send errors.
type fakeRouter struct {
	mu          sync.Mutex
	conn        *fakeConnection
	routeErrFor string // topic name that always fails SelectBrokerRoute
	calls       int
}

func newFakeRouter(conn *fakeConnection) *fakeRouter {
	return &fakeRouter{conn: conn}
}

func (r *fakeRouter) SelectBrokerRoute(topic string, key []byte) (Route, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	if r.routeErrFor != "" && topic == r.routeErrFor {
		return Route{}, fmt.Errorf("fakeRouter: no metadata for %q", topic)
	}
	return Route{
		PartitionID: 0,
		Connection:  r.conn,
		Description: topic + ":0",
	}, nil
}

type sentRequest struct {
	req ProduceRequest
}

type fakeConnection struct {
	mu       sync.Mutex
	sent     []sentRequest
	sendErr  error
	onSend   func(req ProduceRequest) ([]PartitionResponse, error)
	offset   int64
}

func (c *fakeConnection) SendAsync(req ProduceRequest) ([]PartitionResponse, error) {
	c.mu.Lock()
	c.sent = append(c.sent, sentRequest{req: req})
	onSend := c.onSend
	sendErr := c.sendErr
	c.mu.Unlock()

	if onSend != nil {
		return onSend(req)
	}
	if sendErr != nil {
		return nil, sendErr
	}

	var responses []PartitionResponse
	for _, p := range req.Payloads {
		c.mu.Lock()
		c.offset++
		offset := c.offset
		c.mu.Unlock()
		responses = append(responses, PartitionResponse{
			Topic:     p.Topic,
			Partition: p.Partition,
			Offset:    offset,
		})
	}
	return responses, nil
}

func (c *fakeConnection) requestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}
