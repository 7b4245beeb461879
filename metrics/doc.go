// Package metrics exposes Prometheus collectors for turns, participant tasks
// and streamed chunks.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewCollector(reg)
//	orch := orchestrator.New(func(o *orchestrator.Options) { o.Metrics = m })
package metrics
