package kafkanet

import (
	"github.com/nrandell/kafka-net/internal/metrics"

	producererrors "github.com/nrandell/kafka-net/pkg/errors"
)

// demux is the Response Demux of spec §4.E. It waits for every inner
// group's send task in results (the caller already awaited them), then:
//
//   - on any faulted task, resolves every submission in subs with a
//     send-failed error naming the first faulted route (outer-group
//     isolation: other outer groups are untouched by this call);
//   - on full success, performs a topic-keyed left outer join: every
//     submission sees every response whose topic matches its own,
//     regardless of which inner group produced it (spec's Open Question,
//     resolved in favor of keeping this broader join — see DESIGN.md).
func (p *Producer) demux(subs []*submission, results []sendResult) {
	for _, r := range results {
		if r.err != nil {
			err := producererrors.SendFailed(r.route.Description, r.err)
			failAll(subs, err)
			metrics.SubmissionsTotal.WithLabelValues("error").Add(float64(len(subs)))
			return
		}
	}

	var allResponses []PartitionResponse
	for _, r := range results {
		allResponses = append(allResponses, r.responses...)
	}

	for _, s := range subs {
		var matched []PartitionResponse
		for _, resp := range allResponses {
			if resp.Topic == s.topic {
				matched = append(matched, resp)
			}
		}
		s.completion.resolve(matched, nil)
	}
	metrics.SubmissionsTotal.WithLabelValues("ok").Add(float64(len(subs)))
}
