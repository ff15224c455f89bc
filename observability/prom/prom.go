package prom

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spokewise/spokewise-go/observability"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// BrokerObserver exports broker metrics to Prometheus.
type BrokerObserver struct {
	connGauge      prometheus.Gauge
	channelGauge   prometheus.Gauge
	acceptTotal    *prometheus.CounterVec
	evictTotal     *prometheus.CounterVec
	commandTotal   *prometheus.CounterVec
	deliverTotal   *prometheus.CounterVec
	heartbeatTotal *prometheus.CounterVec
}

// NewBrokerObserver registers broker metrics on the registry.
func NewBrokerObserver(reg *prometheus.Registry) *BrokerObserver {
	o := &BrokerObserver{
		connGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spokewise_broker_connections",
			Help: "Current accepted connection count.",
		}),
		channelGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spokewise_broker_channels",
			Help: "Current channel count.",
		}),
		acceptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spokewise_broker_accept_total",
			Help: "Connection accept attempts by result and reason.",
		}, []string{"result", "reason"}),
		evictTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spokewise_broker_evict_total",
			Help: "Connection evictions by reason.",
		}, []string{"reason"}),
		commandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spokewise_broker_commands_total",
			Help: "Administrative commands processed by command and result.",
		}, []string{"command", "result"}),
		deliverTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spokewise_broker_deliveries_total",
			Help: "Message deliveries by kind and result.",
		}, []string{"kind", "result"}),
		heartbeatTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spokewise_broker_heartbeats_total",
			Help: "Heartbeat probes by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		o.connGauge,
		o.channelGauge,
		o.acceptTotal,
		o.evictTotal,
		o.commandTotal,
		o.deliverTotal,
		o.heartbeatTotal,
	)
	return o
}

func (o *BrokerObserver) ConnCount(n int64) {
	o.connGauge.Set(float64(n))
}

func (o *BrokerObserver) ChannelCount(n int) {
	o.channelGauge.Set(float64(n))
}

func (o *BrokerObserver) Accept(result observability.AcceptResult, reason observability.AcceptReason) {
	o.acceptTotal.WithLabelValues(string(result), string(reason)).Inc()
}

func (o *BrokerObserver) Evict(reason observability.EvictReason) {
	o.evictTotal.WithLabelValues(string(reason)).Inc()
}

func (o *BrokerObserver) Command(name string, result observability.CommandResult) {
	o.commandTotal.WithLabelValues(name, string(result)).Inc()
}

func (o *BrokerObserver) Deliver(kind observability.DeliverKind, result observability.DeliverResult) {
	o.deliverTotal.WithLabelValues(string(kind), string(result)).Inc()
}

func (o *BrokerObserver) Heartbeat(result observability.HeartbeatResult) {
	o.heartbeatTotal.WithLabelValues(string(result)).Inc()
}
