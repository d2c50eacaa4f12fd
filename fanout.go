package kafkanet

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nrandell/kafka-net/internal/metrics"

	producererrors "github.com/nrandell/kafka-net/pkg/errors"
)

// outerKey is the (acks, timeout) pair spec §4.D groups submissions by:
// two request-level header fields that must agree for submissions to
// share a wire request.
type outerKey struct {
	acks      int16
	timeoutMs int32
}

// innerKey is the (route, topic, codec) triple messages are regrouped by
// within an outer group: one wire request per inner group.
type innerKey struct {
	routeKey string
	topic    string
	codec    string
}

type innerGroup struct {
	route     Route
	topic     string
	codec     string
	partition int32
	messages  []Message
}

type sendResult struct {
	route     Route
	responses []PartitionResponse
	err       error
}

// produceAndSend is the Fan-out & Regrouping stage of spec §4.D. It groups
// the dispatch loop's batch by (acks, timeout), processes every outer
// group concurrently and independently (§8 property 5, outer-group
// isolation), and blocks until every outer group's demux has resolved —
// this is the "ProduceAndSend: on WhenAll" suspension point of §5.
func (p *Producer) produceAndSend(batch []*submission) {
	outerGroups := make(map[outerKey][]*submission)
	for _, s := range batch {
		key := outerKey{acks: s.acks, timeoutMs: s.timeoutMs}
		outerGroups[key] = append(outerGroups[key], s)
	}

	var wg sync.WaitGroup
	wg.Add(len(outerGroups))
	for key, subs := range outerGroups {
		go func(key outerKey, subs []*submission) {
			defer wg.Done()
			p.processOuterGroup(key, subs)
		}(key, subs)
	}
	wg.Wait()
}

// processOuterGroup flattens subs to individual messages tagged with a
// route, regroups by (route, topic, codec), issues one request per inner
// group, and demuxes the results back onto subs.
func (p *Producer) processOuterGroup(key outerKey, subs []*submission) {
	totalMessages := 0
	for _, s := range subs {
		totalMessages += len(s.messages)
	}

	type tagged struct {
		route Route
		topic string
		codec string
		msg   Message
	}

	var taggedMsgs []tagged
	for _, s := range subs {
		for _, m := range s.messages {
			route, err := p.router.SelectBrokerRoute(s.topic, m.Key)
			if err != nil {
				// Route selection failing mid-flatten means no request
				// for this group has been issued yet: fail every
				// submission in the group and restore the active
				// counter for the messages that never got sent.
				metrics.ActiveMessages.Set(float64(atomic.AddInt64(&p.active, -int64(totalMessages))))
				failAll(subs, producererrors.SendFailed("<route-selection>", err))
				metrics.SubmissionsTotal.WithLabelValues("error").Add(float64(len(subs)))
				return
			}
			taggedMsgs = append(taggedMsgs, tagged{route: route, topic: s.topic, codec: s.codec, msg: m})
		}
	}

	groups := make(map[innerKey]*innerGroup)
	var order []innerKey
	for _, t := range taggedMsgs {
		ik := innerKey{routeKey: t.route.Description, topic: t.topic, codec: t.codec}
		g, ok := groups[ik]
		if !ok {
			g = &innerGroup{route: t.route, topic: t.topic, codec: t.codec, partition: t.route.PartitionID}
			groups[ik] = g
			order = append(order, ik)
		}
		g.messages = append(g.messages, t.msg)
	}

	if len(order) == 0 {
		// Every submission in this outer group had zero messages: no
		// inner group to send, every future completes with [] directly.
		resolveAll(subs, nil)
		metrics.SubmissionsTotal.WithLabelValues("ok").Add(float64(len(subs)))
		return
	}

	results := make([]sendResult, len(order))
	var wg sync.WaitGroup
	wg.Add(len(order))
	for i, ik := range order {
		go func(i int, g *innerGroup) {
			defer wg.Done()
			results[i] = p.sendInnerGroup(key, g)
		}(i, groups[ik])
	}
	wg.Wait()

	p.demux(subs, results)
}

// sendInnerGroup builds and issues one wire request for a single
// (route, topic, codec) group, decrementing the active counter at issue
// time as spec §4.D requires.
func (p *Producer) sendInnerGroup(key outerKey, g *innerGroup) sendResult {
	req := ProduceRequest{
		Acks:      key.acks,
		TimeoutMs: key.timeoutMs,
		Payloads: []Payload{{
			Topic:     g.topic,
			Partition: g.partition,
			Codec:     g.codec,
			Messages:  g.messages,
		}},
	}

	metrics.ActiveMessages.Set(float64(atomic.AddInt64(&p.active, -int64(len(g.messages)))))

	ctx, end := p.tracer.StartSpan(context.Background(), "kafkanet.produceAndSend")
	_ = ctx

	start := time.Now()
	responses, err := g.route.Connection.SendAsync(req)
	metrics.SendDuration.WithLabelValues(g.route.Description).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SendErrorsTotal.WithLabelValues(g.route.Description).Inc()
	}
	end(err)

	return sendResult{route: g.route, responses: responses, err: err}
}

// failAll resolves every submission in subs with err.
func failAll(subs []*submission, err error) {
	for _, s := range subs {
		s.completion.resolve(nil, err)
	}
}

// resolveAll resolves every submission in subs with the same response
// list (empty, for submissions that contributed no messages).
func resolveAll(subs []*submission, responses []PartitionResponse) {
	for _, s := range subs {
		s.completion.resolve(responses, nil)
	}
}
