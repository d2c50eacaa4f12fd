package broker

import (
	"github.com/IBM/sarama"
	"github.com/cespare/xxhash/v2"
)

// hashPartitioner is a sarama.Partitioner that routes by xxhash of the
// message key instead of sarama's default FNV-1a hash partitioner,
// giving the router an explicit, independently testable hash function
// rather than relying on a built-in.
type hashPartitioner struct {
	topic string
}

// newHashPartitioner is a sarama.PartitionerConstructor.
func newHashPartitioner(topic string) sarama.Partitioner {
	return &hashPartitioner{topic: topic}
}

func (p *hashPartitioner) Partition(message *sarama.ProducerMessage, numPartitions int32) (int32, error) {
	var keyBytes []byte
	if message.Key != nil {
		var err error
		keyBytes, err = message.Key.Encode()
		if err != nil {
			return 0, err
		}
	}
	return hashRoute(p.topic, keyBytes, numPartitions), nil
}

func (p *hashPartitioner) RequiresConsistency() bool {
	return true
}

// hashRoute deterministically maps a key to one of numPartitions
// partitions, independent of sarama, so Router.SelectBrokerRoute can pick
// a partition id without constructing a sarama message.
func hashRoute(topic string, key []byte, numPartitions int32) int32 {
	if numPartitions <= 0 {
		return 0
	}
	if len(key) == 0 {
		return int32(xxhash.Sum64String(topic) % uint64(numPartitions))
	}
	partition := int32(xxhash.Sum64(key) % uint64(numPartitions))
	if partition < 0 {
		partition = -partition
	}
	return partition
}
