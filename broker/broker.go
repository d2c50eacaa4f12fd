// Package broker is the reference Router/Connection implementation the
// producer core dispatches through: it turns spec.md's out-of-scope
// "topic metadata discovery, partition selection" and
// "route.connection.SendAsync(request)" into real Kafka wire calls via
// github.com/IBM/sarama, grounded in the teacher's NewKafkaSink.
package broker

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nrandell/kafka-net/internal/metrics"
	"github.com/nrandell/kafka-net/pkg/circuit"
	"github.com/nrandell/kafka-net/pkg/codec"

	kafkanet "github.com/nrandell/kafka-net"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// Router is the default kafkanet.Router and kafkanet.Connection: one
// metadata client for partition discovery, plus a pool of SyncProducers
// (one per distinct Acks value actually requested, since sarama fixes
// RequiredAcks at producer construction rather than per-call).
type Router struct {
	config BrokerConfig
	logger *logrus.Logger

	client sarama.Client
	base   *sarama.Config

	mu        sync.Mutex
	producers map[int16]sarama.SyncProducer

	breaker *circuit.Breaker
}

// NewRouter dials the given brokers for metadata and returns a Router
// ready to hand out routes and accept sends. It does not eagerly create
// a SyncProducer: those are built lazily, per Acks value, on first use.
func NewRouter(config BrokerConfig, logger *logrus.Logger) (*Router, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("broker: no brokers configured")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	base := sarama.NewConfig()
	base.ClientID = config.ClientID
	base.Producer.Return.Successes = true
	base.Producer.Return.Errors = true
	if config.DialTimeout > 0 {
		base.Net.DialTimeout = config.DialTimeout
		base.Net.ReadTimeout = config.DialTimeout
		base.Net.WriteTimeout = config.DialTimeout
	}

	switch strings.ToLower(config.PartitionerName) {
	case "round-robin":
		base.Producer.Partitioner = sarama.NewRoundRobinPartitioner
	case "random":
		base.Producer.Partitioner = sarama.NewRandomPartitioner
	case "manual":
		base.Producer.Partitioner = sarama.NewManualPartitioner
	default:
		base.Producer.Partitioner = newHashPartitioner
	}

	if config.TLS.Enabled {
		base.Net.TLS.Enable = true
	}

	if config.Auth.Enabled {
		base.Net.SASL.Enable = true
		base.Net.SASL.User = config.Auth.Username
		base.Net.SASL.Password = config.Auth.Password

		switch strings.ToUpper(config.Auth.Mechanism) {
		case "PLAIN":
			base.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case "SCRAM-SHA-256":
			base.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			base.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA256}
			}
		case "SCRAM-SHA-512":
			base.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			base.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA512}
			}
		}
	}

	client, err := sarama.NewClient(config.Brokers, base)
	if err != nil {
		return nil, fmt.Errorf("broker: failed to dial brokers: %w", err)
	}

	breakerConfig := circuit.BreakerConfig{
		Name:             "kafka_broker",
		FailureThreshold: config.CircuitBreaker.FailureThreshold,
		SuccessThreshold: config.CircuitBreaker.SuccessThreshold,
		Timeout:          config.CircuitBreaker.Timeout,
	}

	breaker := circuit.NewBreaker(breakerConfig, logger)
	breaker.SetStateChangeCallback(func(_, to circuit.State) {
		metrics.CircuitBreakerState.WithLabelValues(breakerConfig.Name).Set(float64(to))
	})

	return &Router{
		config:    config,
		logger:    logger,
		client:    client,
		base:      base,
		producers: make(map[int16]sarama.SyncProducer),
		breaker:   breaker,
	}, nil
}

// SelectBrokerRoute implements kafkanet.Router: it reads the topic's
// partition count from the metadata client and picks a partition with
// hashRoute, an explicit xxhash-based alternative to sarama's built-in
// partitioner. Real sends are partitioned by base.Producer.Partitioner;
// the default hash partitioner delegates to hashRoute and so agrees with
// this choice, while the round-robin, random and manual partitioners do
// not consult it.
func (r *Router) SelectBrokerRoute(topic string, key []byte) (kafkanet.Route, error) {
	partitions, err := r.client.Partitions(topic)
	if err != nil {
		return kafkanet.Route{}, fmt.Errorf("broker: partitions for %q: %w", topic, err)
	}
	if len(partitions) == 0 {
		return kafkanet.Route{}, fmt.Errorf("broker: topic %q has no partitions", topic)
	}

	partitionID := hashRoute(topic, key, int32(len(partitions)))

	return kafkanet.Route{
		PartitionID: partitionID,
		Connection:  r,
		Description: fmt.Sprintf("%s:%d", topic, partitionID),
	}, nil
}

// producerFor returns (creating if necessary) the SyncProducer
// configured for the given required-acks value.
func (r *Router) producerFor(acks int16, timeoutMs int32) (sarama.SyncProducer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.producers[acks]; ok {
		return p, nil
	}

	cfg := *r.base
	cfg.Producer.RequiredAcks = sarama.RequiredAcks(acks)
	if timeoutMs > 0 {
		cfg.Producer.Timeout = time.Duration(timeoutMs) * time.Millisecond
	}

	producer, err := sarama.NewSyncProducer(r.config.Brokers, &cfg)
	if err != nil {
		return nil, fmt.Errorf("broker: failed to create producer for acks=%d: %w", acks, err)
	}
	r.producers[acks] = producer
	return producer, nil
}

// SendAsync implements kafkanet.Connection: one call issues every
// payload in req as a separate SendMessages round trip (sarama has no
// multi-topic batched produce call on SyncProducer), wrapped in the
// connection-layer circuit breaker so a broken broker fails fast instead
// of hanging every inner group behind it.
func (r *Router) SendAsync(req kafkanet.ProduceRequest) ([]kafkanet.PartitionResponse, error) {
	producer, err := r.producerFor(req.Acks, req.TimeoutMs)
	if err != nil {
		return nil, err
	}

	responses := make([]kafkanet.PartitionResponse, 0, len(req.Payloads))
	for _, payload := range req.Payloads {
		msgs, err := encodeMessages(payload)
		if err != nil {
			return nil, fmt.Errorf("broker: encoding %q: %w", payload.Topic, err)
		}

		err = r.breaker.Execute(func() error {
			return producer.SendMessages(msgs)
		})
		if err != nil {
			return nil, fmt.Errorf("broker: send to %s: %w", payload.Topic, err)
		}

		last := msgs[len(msgs)-1]
		responses = append(responses, kafkanet.PartitionResponse{
			Topic:     payload.Topic,
			Partition: last.Partition,
			Offset:    last.Offset,
			ErrorCode: 0,
		})
	}

	return responses, nil
}

// Close releases the metadata client and every lazily created producer.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for acks, p := range r.producers {
		if err := p.Close(); err != nil {
			r.logger.WithError(err).WithField("acks", acks).Warn("error closing kafka producer")
		}
	}
	return r.client.Close()
}

func encodeMessages(payload kafkanet.Payload) ([]*sarama.ProducerMessage, error) {
	msgs := make([]*sarama.ProducerMessage, len(payload.Messages))
	for i, m := range payload.Messages {
		value := m.Value
		if payload.Codec != "" && payload.Codec != string(codec.None) {
			encoded, err := codec.Encode(codec.Codec(payload.Codec), value)
			if err != nil {
				return nil, err
			}
			value = encoded
		}
		msgs[i] = &sarama.ProducerMessage{
			Topic:     payload.Topic,
			Partition: payload.Partition,
			Key:       sarama.ByteEncoder(m.Key),
			Value:     sarama.ByteEncoder(value),
		}
	}
	return msgs, nil
}
