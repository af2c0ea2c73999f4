// Package metrics instruments the provider requests of an oauth.Authomatic
// with Prometheus metrics.
//
// Wrap the HTTPClient given to oauth.New:
//
//	base, _ := oauth.NewHTTPClient()
//	c, _ := metrics.NewClient(base, metrics.WithRegisterer(reg))
//	a, _ := oauth.New(registry, oauth.WithHTTPClient(c))
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/authomatic/authomatic-sub000/oauth"
	"github.com/prometheus/client_golang/prometheus"
)

// statusError labels requests that got no response.
const statusError = "error"

// Client is an oauth.HTTPClient recording, per request kind and provider
// host, a request counter, a latency histogram and an in-flight gauge.
type Client struct {
	next     oauth.HTTPClient
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight *prometheus.GaugeVec
}

var _ oauth.HTTPClient = (*Client)(nil)

// NewClient wraps next.  Collectors already registered under the same names
// are reused, so several clients may share a registerer.
// Supported options: WithRegisterer, WithNamespace, WithBuckets
func NewClient(next oauth.HTTPClient, opt ...Option) (*Client, error) {
	const op = "metrics.NewClient"
	if next == nil {
		return nil, fmt.Errorf("%s: next client is nil: %w", op, oauth.ErrNilParameter)
	}
	opts := getOpts(opt...)
	c := &Client{
		next: next,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.withNamespace,
			Name:      "provider_requests_total",
			Help:      "Provider requests by kind, host, method and status.",
		}, []string{"kind", "host", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.withNamespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of provider requests.",
			Buckets:   opts.withBuckets,
		}, []string{"kind", "host"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: opts.withNamespace,
			Name:      "provider_requests_inflight",
			Help:      "Provider requests in flight.",
		}, []string{"kind", "host"}),
	}
	var err error
	if c.requests, err = register(opts.withRegisterer, c.requests); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.duration, err = register(opts.withRegisterer, c.duration); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.inflight, err = register(opts.withRegisterer, c.inflight); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Do sends the request through the wrapped client.
func (c *Client) Do(ctx context.Context, r *oauth.RequestElements) (*oauth.Response, error) {
	if r == nil {
		return c.next.Do(ctx, r)
	}
	kind, host := r.Kind.String(), hostOf(r.URL)
	c.inflight.WithLabelValues(kind, host).Inc()
	start := time.Now()
	resp, err := c.next.Do(ctx, r)
	c.inflight.WithLabelValues(kind, host).Dec()
	c.duration.WithLabelValues(kind, host).Observe(time.Since(start).Seconds())

	status := statusError
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.Status)
	}
	c.requests.WithLabelValues(kind, host, r.Method, status).Inc()
	return resp, err
}

// register registers collector, returning the existing one when an
// identical collector is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
