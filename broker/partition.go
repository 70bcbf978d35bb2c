// Package broker implements the pipeline's event bus on partitioned Redis
// Streams with consumer groups: at-least-once delivery, per-device ordering
// via partition keying, ack-after-publish, redelivery, and poison handling.
package broker

import (
	"hash/fnv"
	"strconv"

	"github.com/pulseward/pulseward/core"
)

// PartitionFor maps a partition key onto [0, partitions). FNV-1a keeps the
// mapping stable across processes and restarts, which is what preserves
// per-device ordering.
func PartitionFor(key string, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(partitions))
}

// StreamKey returns the namespaced stream key for a topic partition.
func StreamKey(r *core.RedisClient, topic string, partition int) string {
	return r.Key("stream", topic, strconv.Itoa(partition))
}
