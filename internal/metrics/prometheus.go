package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exposes Recorder events as Prometheus metrics.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	aiRequests        *prometheus.CounterVec
	aiRequestDuration *prometheus.HistogramVec
	tokensMetered     *prometheus.CounterVec
	limitGateDenials  prometheus.Counter
	webhookEvents     *prometheus.CounterVec
	cardsCreated      *prometheus.CounterVec
	usagePublished    *prometheus.CounterVec
	usageProcessed    *prometheus.CounterVec
	auditBatchSize    prometheus.Histogram
	auditBatchSeconds prometheus.Histogram
	auditQueueDepth   prometheus.Gauge
}

// NewPrometheus returns a Recorder backed by its own registry.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		aiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bunn_ai_requests_total",
			Help: "AI proxy requests by model and outcome.",
		}, []string{"model", "status"}),
		aiRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bunn_ai_request_duration_seconds",
			Help:    "AI proxy request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
		tokensMetered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bunn_tokens_metered_total",
			Help: "Tokens metered by direction.",
		}, []string{"direction"}),
		limitGateDenials: factory.NewCounter(prometheus.CounterOpts{
			Name: "bunn_limit_gate_denials_total",
			Help: "Requests denied by the daily token limit gate.",
		}),
		webhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bunn_stripe_webhook_events_total",
			Help: "Stripe webhook deliveries by result.",
		}, []string{"result"}),
		cardsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bunn_cards_created_total",
			Help: "Learning cards created by kind.",
		}, []string{"kind"}),
		usagePublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bunn_usage_events_published_total",
			Help: "Usage events published to the audit stream.",
		}, []string{"status"}),
		usageProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bunn_usage_events_processed_total",
			Help: "Usage events processed by the audit worker.",
		}, []string{"status"}),
		auditBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bunn_audit_batch_size",
			Help:    "Usage audit batch sizes.",
			Buckets: []float64{1, 10, 50, 100, 250, 500},
		}),
		auditBatchSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bunn_audit_batch_duration_seconds",
			Help:    "Usage audit batch processing duration.",
			Buckets: prometheus.DefBuckets,
		}),
		auditQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bunn_audit_queue_depth",
			Help: "Pending + unread usage events in the audit stream.",
		}),
	}
}

// Handler returns the /metrics endpoint for this recorder's registry.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// IncAIRequest increments the request counter.
func (p *PrometheusRecorder) IncAIRequest(model, status string) {
	p.aiRequests.WithLabelValues(model, status).Inc()
}

// ObserveAIRequestDuration records request duration.
func (p *PrometheusRecorder) ObserveAIRequestDuration(model string, duration time.Duration) {
	p.aiRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// AddTokensMetered accumulates the metered token counter.
func (p *PrometheusRecorder) AddTokensMetered(direction string, count int64) {
	p.tokensMetered.WithLabelValues(direction).Add(float64(count))
}

// IncLimitGateDenied increments the denial counter.
func (p *PrometheusRecorder) IncLimitGateDenied() {
	p.limitGateDenials.Inc()
}

// IncWebhookEvent increments the webhook result counter.
func (p *PrometheusRecorder) IncWebhookEvent(result string) {
	p.webhookEvents.WithLabelValues(result).Inc()
}

// IncCardCreated increments the card counter.
func (p *PrometheusRecorder) IncCardCreated(kind string) {
	p.cardsCreated.WithLabelValues(kind).Inc()
}

// IncUsageEventPublished increments the publish outcome counter.
func (p *PrometheusRecorder) IncUsageEventPublished(status string) {
	p.usagePublished.WithLabelValues(status).Inc()
}

// IncUsageEventProcessed increments the processing outcome counter.
func (p *PrometheusRecorder) IncUsageEventProcessed(status string) {
	p.usageProcessed.WithLabelValues(status).Inc()
}

// ObserveAuditBatchSize records a batch size.
func (p *PrometheusRecorder) ObserveAuditBatchSize(size int) {
	p.auditBatchSize.Observe(float64(size))
}

// ObserveAuditBatchDuration records batch processing time.
func (p *PrometheusRecorder) ObserveAuditBatchDuration(duration time.Duration) {
	p.auditBatchSeconds.Observe(duration.Seconds())
}

// SetAuditQueueDepth sets the queue depth gauge.
func (p *PrometheusRecorder) SetAuditQueueDepth(depth int64) {
	p.auditQueueDepth.Set(float64(depth))
}
