package handlers

import (
	"bytes"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"

	"keygate/internal/license"
)

var (
	authorizeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keygate",
			Name:      "authorize_total",
			Help:      "Authorization attempts by outcome (challenge, granted or error code).",
		},
		[]string{"outcome"},
	)
	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keygate",
			Name:      "activations_total",
			Help:      "Key activation attempts by result.",
		},
		[]string{"result"},
	)
	keysGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "keygate",
			Name:      "keys_generated_total",
			Help:      "Total number of keys generated.",
		},
	)
	payloadFetchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "keygate",
			Name:      "payload_fetch_duration_seconds",
			Help:      "Time spent fetching the protected payload after a grant.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	registerOnce sync.Once
)

// InitPrometheusMetrics registers the service metrics and gauges over reg
// with the default registry.
func InitPrometheusMetrics(reg *license.Registry) {
	registerOnce.Do(func() {
		gauge := func(name, help string, value func(license.Stats) int) prometheus.Collector {
			return prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{Namespace: "keygate", Name: name, Help: help},
				func() float64 { return float64(value(reg.Stats())) },
			)
		}
		prometheus.MustRegister(
			authorizeTotal,
			activationsTotal,
			keysGeneratedTotal,
			payloadFetchSeconds,
			gauge("keys", "Keys currently held in the registry.", func(s license.Stats) int { return s.Total }),
			gauge("keys_activated", "Activated keys in the registry.", func(s license.Stats) int { return s.Activated }),
			gauge("keys_bound", "Keys bound to a device fingerprint.", func(s license.Stats) int { return s.Bound }),
		)
	})
}

// MetricsHandler serves the default gatherer in the Prometheus text format.
// Families are filtered to names starting with prefix when it is non-empty.
func MetricsHandler(gatherer prometheus.Gatherer, prefix string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		metricFamilies, err := gatherer.Gather()
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("failed to gather metrics")
			return
		}

		filtered := make([]*dto.MetricFamily, 0, len(metricFamilies))
		for _, mf := range metricFamilies {
			if prefix != "" && !strings.HasPrefix(mf.GetName(), prefix) {
				continue
			}
			filtered = append(filtered, mf)
		}

		var buf bytes.Buffer
		encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
		for _, mf := range filtered {
			if err := encoder.Encode(mf); err != nil {
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString("failed to encode metrics")
				return
			}
		}

		ctx.SetContentType(string(expfmt.FmtText))
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.SetBody(buf.Bytes())
	}
}
