package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Tier label values.
const (
	TierLocal    = "local"
	TierExternal = "external"
)

var ( //nolint:gochecknoglobals
	metricsMu          sync.Mutex
	metricsInitialized bool
	metricsError       error
	lookupCounter      *prometheus.CounterVec
	errorCounter       *prometheus.CounterVec
	evictionCounter    prometheus.Counter
	availableGauge     prometheus.Gauge
	localEntriesGauge  prometheus.Gauge
)

// SetupMetrics registers the cache collectors once. Later calls return the first result.
func SetupMetrics(reg prometheus.Registerer) error {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	if metricsInitialized {
		return metricsError
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pmhub_cache_lookups_total",
		Help: "Cache lookups by tier and result (hit or miss).",
	}, []string{"tier", "result"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pmhub_cache_errors_total",
		Help: "External tier operations that failed and were absorbed.",
	}, []string{"op"})
	evictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pmhub_cache_local_evictions_total",
		Help: "Entries evicted from the local tier to honour its size bound.",
	})
	available := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pmhub_cache_external_available",
		Help: "1 while the external tier answers health checks.",
	})
	entries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pmhub_cache_local_entries",
		Help: "Entries currently held by the local tier.",
	})

	lookupCounter, errorCounter, evictionCounter, availableGauge, localEntriesGauge = lookups, errs, evictions, available, entries

	for _, collector := range []prometheus.Collector{lookups, errs, evictions, available, entries} {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				metricsError = err
				metricsInitialized = true

				return metricsError
			}

			if err := adoptExisting(collector, already.ExistingCollector); err != nil {
				metricsError = err
			}
		}
	}

	metricsInitialized = true

	return metricsError
}

func adoptExisting(ours, existing prometheus.Collector) error {
	switch ours {
	case lookupCounter:
		if c, ok := existing.(*prometheus.CounterVec); ok {
			lookupCounter = c

			return nil
		}
	case errorCounter:
		if c, ok := existing.(*prometheus.CounterVec); ok {
			errorCounter = c

			return nil
		}
	case evictionCounter:
		if c, ok := existing.(prometheus.Counter); ok {
			evictionCounter = c

			return nil
		}
	case availableGauge:
		if g, ok := existing.(prometheus.Gauge); ok {
			availableGauge = g

			return nil
		}
	case localEntriesGauge:
		if g, ok := existing.(prometheus.Gauge); ok {
			localEntriesGauge = g

			return nil
		}
	}

	return fmt.Errorf("cache metrics: unexpected collector type %T", existing)
}

func recordLookup(tier string, hit bool) {
	if lookupCounter == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	lookupCounter.WithLabelValues(tier, result).Inc()
}

func recordError(op string) {
	if errorCounter == nil {
		return
	}

	errorCounter.WithLabelValues(op).Inc()
}

func recordEvictions(n int) {
	if evictionCounter == nil || n == 0 {
		return
	}

	evictionCounter.Add(float64(n))
}

func recordAvailable(up bool) {
	if availableGauge == nil {
		return
	}

	if up {
		availableGauge.Set(1)
	} else {
		availableGauge.Set(0)
	}
}

func recordLocalEntries(n int) {
	if localEntriesGauge == nil {
		return
	}

	localEntriesGauge.Set(float64(n))
}
