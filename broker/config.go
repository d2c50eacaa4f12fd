package broker

import "time"

// TLSConfig configures transport encryption for the broker connection,
// read straight off the teacher's KafkaSinkConfig.TLS block. NewRouter
// only reads Enabled, turning on TLS with sarama's default TLS settings;
// CAFile, CertFile and KeyFile are not read.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig configures SASL authentication, read straight off the
// teacher's KafkaSinkConfig.Auth block. Mechanism is one of "plain",
// "scram-sha-256", "scram-sha-512".
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Mechanism string `yaml:"mechanism"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// CircuitBreakerConfig configures the connection-layer breaker that
// wraps every SendAsync call.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// BrokerConfig configures the concrete Router/Connection adapter. It is
// loaded the same way as kafkanet.Config, nested under a "broker" key.
type BrokerConfig struct {
	Brokers         []string             `yaml:"brokers"`
	ClientID        string               `yaml:"client_id"`
	PartitionerName string               `yaml:"partitioner"`
	DialTimeout     time.Duration        `yaml:"dial_timeout"`
	TLS             TLSConfig            `yaml:"tls"`
	Auth            AuthConfig           `yaml:"auth"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// DefaultBrokerConfig returns a BrokerConfig with the teacher's observed
// defaults (hash partitioning, a 10s dial timeout, breaker thresholds
// matching NewKafkaSink's circuit.BreakerConfig literal).
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		ClientID:        "kafka-net",
		PartitionerName: "hash",
		DialTimeout:     10 * time.Second,
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 10,
			SuccessThreshold: 2,
			Timeout:          60 * time.Second,
		},
	}
}
