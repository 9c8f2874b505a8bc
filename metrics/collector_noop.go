package metrics

var _ Collector = (*NoopCollector)(nil)

// NoopCollector discards every event. It is the default when no collector is
// configured, so the registry never has to branch on a nil interface.
type NoopCollector struct{}

func (NoopCollector) IncCreated(kind Kind)       {}
func (NoopCollector) IncRemoved(kind Kind)       {}
func (NoopCollector) IncReset(kind Kind)         {}
func (NoopCollector) SetStructures(n int64)      {}
func (NoopCollector) SetMemoryBytes(bytes int64) {}
