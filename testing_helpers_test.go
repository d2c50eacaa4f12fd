package kafkanet

import (
	"errors"
	"io"
	"testing"

	"github.com/nrandell/kafka-net/internal/tracing"

	"github.com/sirupsen/logrus"
)

var assertAnError = errors.New("fake connection send error")

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// setNoopTracer installs a disabled tracing manager on producers built
// directly (bypassing NewProducer, which does this itself) for fanout/demux
// tests that only need the dispatch internals.
func setNoopTracer(t *testing.T, p *Producer) {
	t.Helper()
	tracer, err := tracing.NewManager(tracing.Config{Enabled: false}, testLogger())
	if err != nil {
		t.Fatalf("tracing.NewManager: %v", err)
	}
	p.tracer = tracer
}
