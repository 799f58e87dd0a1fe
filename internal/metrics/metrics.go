package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ItinerariesSettled prometheus.Counter
	ItinerariesFailed  *prometheus.CounterVec // reason label: rule_not_found|data_integrity|other
	FallbacksApplied   prometheus.Counter
	FareInstances      prometheus.Counter
	ExpiredInstances   prometheus.Counter

	SettleDuration prometheus.Histogram

	Workers        prometheus.Gauge
	PairsQueued    prometheus.Gauge
	PairsDiscarded prometheus.Gauge
	RulesLoaded    *prometheus.GaugeVec // table label

	SinkWrites *prometheus.CounterVec // sink label: csv|postgres|redis|nats
	SinkErrors *prometheus.CounterVec // sink label

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ItinerariesSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faresettle_itineraries_settled_total",
			Help: "Itineraries settled successfully.",
		}),
		ItinerariesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "faresettle_itineraries_failed_total",
			Help: "Itineraries whose settlement was aborted.",
		}, []string{"reason"}),
		FallbacksApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faresettle_fallbacks_total",
			Help: "Transfer rules that found no active fare and charged a new one.",
		}),
		FareInstances: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faresettle_fare_instances_total",
			Help: "Fare instances created across all settlements.",
		}),
		ExpiredInstances: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faresettle_fare_instances_expired_total",
			Help: "Fare instances deactivated by their time window.",
		}),
		SettleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "faresettle_settle_duration_seconds",
			Help:    "Duration of one itinerary settlement.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "faresettle_workers",
			Help: "Size of the settlement worker pool.",
		}),
		PairsQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "faresettle_pairs_pending",
			Help: "OD pairs not yet settled in the current run.",
		}),
		PairsDiscarded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "faresettle_pairs_discarded",
			Help: "OD pairs without an option inside the travel time limit.",
		}),
		RulesLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "faresettle_rules_loaded",
			Help: "Rows loaded per fare rule table.",
		}, []string{"table"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "faresettle_sink_records_total",
			Help: "Fare records written per sink.",
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "faresettle_sink_errors_total",
			Help: "Sink write errors.",
		}, []string{"sink"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faresettle_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faresettle_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "faresettle_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "faresettle_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.ItinerariesSettled, c.ItinerariesFailed, c.FallbacksApplied,
		c.FareInstances, c.ExpiredInstances, c.SettleDuration,
		c.Workers, c.PairsQueued, c.PairsDiscarded, c.RulesLoaded,
		c.SinkWrites, c.SinkErrors,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the collector's registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
