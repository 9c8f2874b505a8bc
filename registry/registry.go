// Package registry manages named probabilistic structures. It owns the
// name-to-structure mapping and nothing else: structures keep their full
// typed APIs and callers operate on them directly once retrieved.
//
// Locking covers only the registry's own map. The structures themselves are
// not synchronized, so a structure shared across goroutines needs external
// coordination regardless of how it was obtained.
package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/DmitriyVTitov/size"

	"sketches.lopezb.com/bloom"
	"sketches.lopezb.com/cms"
	"sketches.lopezb.com/cuckoo"
	"sketches.lopezb.com/hyperloglog"
	"sketches.lopezb.com/metrics"
	"sketches.lopezb.com/minhash"
	"sketches.lopezb.com/topk"
)

var (
	// ErrExists is returned when creating a structure under a taken name.
	ErrExists = errors.New("registry: name already in use")

	// ErrNotFound is returned when no structure holds the given name.
	ErrNotFound = errors.New("registry: no structure with that name")

	// ErrWrongType is returned by a typed getter when the name resolves to a
	// structure of a different kind.
	ErrWrongType = errors.New("registry: structure has a different kind")
)

// entry pairs a structure with the kind tag and the operations the registry
// needs without knowing the concrete type.
type entry struct {
	kind  metrics.Kind
	value any
	info  func() any
	reset func()
}

// Registry is a named collection of probabilistic structures. The zero value
// is not usable; call New.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry

	collector metrics.Collector
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithCollector routes lifecycle metrics to c instead of discarding them.
func WithCollector(c metrics.Collector) Option {
	return func(r *Registry) {
		if c != nil {
			r.collector = c
		}
	}
}

// WithLogger routes registry logs to l. Without it logs go nowhere.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries:   make(map[string]entry),
		collector: metrics.NoopCollector{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// register claims the name and records the entry, or fails with ErrExists.
func (r *Registry) register(name string, e entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.entries[name]; taken {
		return fmt.Errorf("%w: %q", ErrExists, name)
	}
	r.entries[name] = e

	r.collector.IncCreated(e.kind)
	r.updateGaugesLocked()
	r.logger.Info("structure created", "name", name, "kind", string(e.kind))
	return nil
}

// updateGaugesLocked refreshes the structure-count and memory gauges. Caller
// holds the write lock.
func (r *Registry) updateGaugesLocked() {
	r.collector.SetStructures(int64(len(r.entries)))

	var total int64
	for _, e := range r.entries {
		total += int64(size.Of(e.value))
	}
	r.collector.SetMemoryBytes(total)
}

// CreateBloom creates and registers a Bloom filter under the given name.
func (r *Registry) CreateBloom(name string, capacity uint64, fpRate float64) (*bloom.Filter, error) {
	f, err := bloom.New(capacity, fpRate)
	if err != nil {
		return nil, err
	}
	if err := r.register(name, entry{
		kind:  metrics.KindBloom,
		value: f,
		info:  func() any { return f.Info() },
		reset: f.Reset,
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// CreateHyperLogLog creates and registers a HyperLogLog sketch.
func (r *Registry) CreateHyperLogLog(name string, precision uint8) (*hyperloglog.Sketch, error) {
	s, err := hyperloglog.New(precision)
	if err != nil {
		return nil, err
	}
	if err := r.register(name, entry{
		kind:  metrics.KindHyperLogLog,
		value: s,
		info:  func() any { return s.Info() },
		reset: s.Reset,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateCountMin creates and registers a count-min sketch.
func (r *Registry) CreateCountMin(name string, width, depth uint32) (*cms.Sketch, error) {
	s, err := cms.New(width, depth)
	if err != nil {
		return nil, err
	}
	if err := r.register(name, entry{
		kind:  metrics.KindCountMin,
		value: s,
		info:  func() any { return s.Info() },
		reset: s.Reset,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateCuckoo creates and registers a cuckoo filter.
func (r *Registry) CreateCuckoo(name string, cfg cuckoo.Config) (*cuckoo.Filter, error) {
	f, err := cuckoo.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := r.register(name, entry{
		kind:  metrics.KindCuckoo,
		value: f,
		info:  func() any { return f.Info() },
		reset: f.Reset,
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// CreateMinHash creates and registers a MinHash signature.
func (r *Registry) CreateMinHash(name string, numPerm int, seed uint64) (*minhash.Signature, error) {
	s, err := minhash.New(numPerm, seed)
	if err != nil {
		return nil, err
	}
	if err := r.register(name, entry{
		kind:  metrics.KindMinHash,
		value: s,
		info:  func() any { return s.Info() },
		reset: s.Reset,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateTopK creates and registers a top-k tracker.
func (r *Registry) CreateTopK(name string, k int, width, depth uint32) (*topk.Tracker, error) {
	t, err := topk.New(k, width, depth)
	if err != nil {
		return nil, err
	}
	if err := r.register(name, entry{
		kind:  metrics.KindTopK,
		value: t,
		info:  func() any { return t.Info() },
		reset: t.Reset,
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// lookup fetches the entry for a name under the read lock.
func (r *Registry) lookup(name string) (entry, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e, nil
}

// Bloom retrieves a registered Bloom filter by name.
func (r *Registry) Bloom(name string) (*bloom.Filter, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	f, ok := e.value.(*bloom.Filter)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrWrongType, name, e.kind)
	}
	return f, nil
}

// HyperLogLog retrieves a registered HyperLogLog sketch by name.
func (r *Registry) HyperLogLog(name string) (*hyperloglog.Sketch, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	s, ok := e.value.(*hyperloglog.Sketch)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrWrongType, name, e.kind)
	}
	return s, nil
}

// CountMin retrieves a registered count-min sketch by name.
func (r *Registry) CountMin(name string) (*cms.Sketch, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	s, ok := e.value.(*cms.Sketch)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrWrongType, name, e.kind)
	}
	return s, nil
}

// Cuckoo retrieves a registered cuckoo filter by name.
func (r *Registry) Cuckoo(name string) (*cuckoo.Filter, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	f, ok := e.value.(*cuckoo.Filter)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrWrongType, name, e.kind)
	}
	return f, nil
}

// MinHash retrieves a registered MinHash signature by name.
func (r *Registry) MinHash(name string) (*minhash.Signature, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	s, ok := e.value.(*minhash.Signature)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrWrongType, name, e.kind)
	}
	return s, nil
}

// TopK retrieves a registered top-k tracker by name.
func (r *Registry) TopK(name string) (*topk.Tracker, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	t, ok := e.value.(*topk.Tracker)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrWrongType, name, e.kind)
	}
	return t, nil
}

// Kind reports the kind of the structure registered under name.
func (r *Registry) Kind(name string) (metrics.Kind, error) {
	e, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	return e.kind, nil
}

// Remove unregisters the named structure. The structure itself remains valid
// for any caller still holding a reference.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(r.entries, name)

	r.collector.IncRemoved(e.kind)
	r.updateGaugesLocked()
	r.logger.Info("structure removed", "name", name, "kind", string(e.kind))
	return nil
}

// Reset clears the named structure in place, keeping its registration.
func (r *Registry) Reset(name string) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}
	e.reset()
	r.collector.IncReset(e.kind)
	return nil
}

// ResetAll clears every registered structure in place.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		e.reset()
		r.collector.IncReset(e.kind)
	}
	r.logger.Info("all structures reset", "count", len(r.entries))
}

// Len reports the number of registered structures.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kinds returns the kind of every registered structure keyed by name.
func (r *Registry) Kinds() map[string]metrics.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]metrics.Kind, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.kind
	}
	return out
}

// AllInfo returns each structure's diagnostics keyed by name. Values are the
// per-package Info structs (bloom.Info, cms.Info, and so on).
func (r *Registry) AllInfo() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]any, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.info()
	}
	return out
}

// MemoryBytes estimates the heap memory held by all registered structures.
func (r *Registry) MemoryBytes() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, e := range r.entries {
		total += int64(size.Of(e.value))
	}
	return total
}
