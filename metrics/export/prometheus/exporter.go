package prometheus

import (
	"net/http"

	goMormot "github.com/MrEthical07/goMormot"
	"github.com/MrEthical07/goMormot/metrics/export/internaldefs"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() goMormot.MetricsSnapshot
	AuditDropped() uint64
}

type counterDesc struct {
	id   goMormot.MetricID
	name string
	desc *prom.Desc
}

// PrometheusExporter collects client counters and latency histograms.
type PrometheusExporter struct {
	source     metricsSource
	counters   []counterDesc
	histograms []counterDesc
	dropped    *prom.Desc
	bounds     []float64
	registry   *prom.Registry
}

// NewPrometheusExporter reads metrics from client.
func NewPrometheusExporter(client *goMormot.Client) *PrometheusExporter {
	return NewPrometheusExporterFromSource(client)
}

// NewPrometheusExporterFromSource reads metrics from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	p := &PrometheusExporter{
		source:  source,
		dropped: prom.NewDesc(internaldefs.AuditDroppedName, "Dropped audit events due to dispatcher backpressure.", nil, nil),
		bounds:  internaldefs.UpperBounds(),
	}
	for _, def := range internaldefs.CounterDefs {
		p.counters = append(p.counters, counterDesc{id: def.ID, name: def.Name, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		p.histograms = append(p.histograms, counterDesc{id: def.ID, name: def.Name, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}

	p.registry = prom.NewRegistry()
	p.registry.MustRegister(p)
	return p
}

// Registry returns the private registry holding the exporter.
func (p *PrometheusExporter) Registry() *prom.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Describe implements prometheus.Collector.
func (p *PrometheusExporter) Describe(ch chan<- *prom.Desc) {
	for _, c := range p.counters {
		ch <- c.desc
	}
	for _, h := range p.histograms {
		ch <- h.desc
	}
	ch <- p.dropped
}

// Collect implements prometheus.Collector. Nothing is emitted while client
// metrics are disabled.
func (p *PrometheusExporter) Collect(ch chan<- prom.Metric) {
	if p == nil || p.source == nil {
		return
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, c := range p.counters {
		ch <- prom.MustNewConstMetric(c.desc, prom.CounterValue, float64(snapshot.Counters[c.id]))
	}

	for _, h := range p.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(p.bounds))
		for i, le := range p.bounds {
			buckets[le] = cumulative[i]
		}
		// The snapshot keeps no sum.
		ch <- prom.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prom.MustNewConstMetric(p.dropped, prom.CounterValue, float64(dropped))
}
