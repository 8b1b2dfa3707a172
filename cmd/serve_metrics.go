package cmd

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// serveMetrics uses its own registry so several servers (tests) can live in
// one process.
type serveMetrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	tokens         *prometheus.CounterVec
	streamDuration prometheus.Histogram
	mathTurns      prometheus.Counter
	rateLimited    prometheus.Counter
}

func newServeMetrics() *serveMetrics {
	m := &serveMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seekchat",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seekchat",
			Name:      "tokens_total",
			Help:      "Tokens reported by the provider.",
		}, []string{"kind"}),
		streamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "seekchat",
			Name:      "stream_duration_seconds",
			Help:      "Time from provider call to end of stream.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		mathTurns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seekchat",
			Name:      "math_turns_total",
			Help:      "Chat requests whose last message looked like a calculation.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seekchat",
			Name:      "rate_limited_total",
			Help:      "Chat requests rejected by the rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.tokens,
		m.streamDuration,
		m.mathTurns,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *serveMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// limiterPool hands out one token bucket per client. A zero rate disables
// limiting.
type limiterPool struct {
	rps   float64
	burst int

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if burst <= 0 {
		burst = 10
	}
	return &limiterPool{rps: rps, burst: burst, m: make(map[string]*rate.Limiter)}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key string) bool {
	if p.rps <= 0 {
		return true
	}
	return p.get(key).Allow()
}
