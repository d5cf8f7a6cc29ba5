// Package metrics defines the sink interfaces the allocation engine reports
// to. Sinks like PromSink and InfluxSink live in infra/metrics and register
// themselves with the factory; several configured sinks are combined into a
// MultiSink automatically.
package metrics
