// Package metrics defines the instrumentation hooks for the structure
// registry. The registry reports lifecycle events (structure created,
// removed, reset) and gauges (structure count, estimated memory) through a
// Collector; callers pick the Prometheus implementation or the no-op one.
package metrics

// Kind identifies a structure family for metric labeling.
type Kind string

const (
	KindBloom       Kind = "bloom"
	KindHyperLogLog Kind = "hyperloglog"
	KindCountMin    Kind = "countmin"
	KindCuckoo      Kind = "cuckoo"
	KindMinHash     Kind = "minhash"
	KindTopK        Kind = "topk"
)

// Kinds lists every structure family, in registration order.
var Kinds = []Kind{
	KindBloom,
	KindHyperLogLog,
	KindCountMin,
	KindCuckoo,
	KindMinHash,
	KindTopK,
}

// Collector receives registry lifecycle events. Implementations must be safe
// for concurrent use; the registry calls them under its own lock but callers
// may share a Collector across registries.
type Collector interface {
	IncCreated(kind Kind)
	IncRemoved(kind Kind)
	IncReset(kind Kind)
	SetStructures(n int64)
	SetMemoryBytes(bytes int64)
}
