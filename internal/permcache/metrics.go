package permcache

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var ( //nolint:gochecknoglobals
	metricsOnce         sync.Once
	metricsError        error
	requestCounter      *prometheus.CounterVec
	invalidationCounter *prometheus.CounterVec
)

// SetupMetrics registers the manager collectors once. Later calls return the first result.
func SetupMetrics(reg prometheus.Registerer) error {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}

		requests := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmhub_permission_cache_requests_total",
			Help: "Permission cache lookups by namespace and result (hit or miss).",
		}, []string{"namespace", "result"})
		invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmhub_permission_cache_invalidated_keys_total",
			Help: "Keys removed by invalidations, by invalidation kind.",
		}, []string{"kind"})

		requestCounter, metricsError = register(reg, requests)
		if metricsError != nil {
			return
		}

		invalidationCounter, metricsError = register(reg, invalidations)
	})

	return metricsError
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing, nil
		}
	}

	return nil, err //nolint:wrapcheck
}

func recordRequest(namespace string, hit bool) {
	if requestCounter == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	requestCounter.WithLabelValues(namespace, result).Inc()
}

func recordInvalidation(kind string, keys int) {
	if invalidationCounter == nil {
		return
	}

	invalidationCounter.WithLabelValues(kind).Add(float64(keys))
}
