package metrics

import "github.com/prometheus/client_golang/prometheus"

// TriageMetrics exposes counters/histograms for the lead triage flow.
type TriageMetrics struct {
	messagesTotal     *prometheus.CounterVec
	batchesTotal      *prometheus.CounterVec
	classifyTotal     *prometheus.CounterVec
	classifyLatency   *prometheus.HistogramVec
	classifyCacheHits *prometheus.CounterVec
	outboundTotal     *prometheus.CounterVec
	storeDegraded     prometheus.Gauge
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadtriage",
			Subsystem: "engine",
			Name:      "messages_total",
			Help:      "Inbound messages by triage outcome",
		}, []string{"outcome"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadtriage",
			Subsystem: "engine",
			Name:      "batches_total",
			Help:      "Inbound batches processed or dropped",
		}, []string{"status"}),
		classifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadtriage",
			Subsystem: "classifier",
			Name:      "requests_total",
			Help:      "Remote classification attempts",
		}, []string{"provider", "status"}),
		classifyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadtriage",
			Subsystem: "classifier",
			Name:      "latency_seconds",
			Help:      "Latency of remote classification calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		classifyCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadtriage",
			Subsystem: "classifier",
			Name:      "cache_lookups_total",
			Help:      "Classification cache lookups",
		}, []string{"result"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadtriage",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Outbound replies by kind and status",
		}, []string{"kind", "status"}),
		storeDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leadtriage",
			Subsystem: "store",
			Name:      "degraded",
			Help:      "1 while the lead store holds unsaved changes",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.batchesTotal, m.classifyTotal, m.classifyLatency, m.classifyCacheHits, m.outboundTotal, m.storeDegraded)
	return m
}

func (m *TriageMetrics) ObserveMessage(outcome string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(outcome).Inc()
}

func (m *TriageMetrics) ObserveBatch(status string) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(status).Inc()
}

func (m *TriageMetrics) ObserveClassification(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.classifyTotal.WithLabelValues(provider, status).Inc()
	m.classifyLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *TriageMetrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	m.classifyCacheHits.WithLabelValues(label).Inc()
}

func (m *TriageMetrics) ObserveOutbound(kind, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *TriageMetrics) SetStoreDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.storeDegraded.Set(1)
		return
	}
	m.storeDegraded.Set(0)
}
