package instrument

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wabisabi_request_duration_seconds",
			Help:    "Duration of coordinator requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)
	roundsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wabisabi_rounds_ended_total",
			Help: "Number of ended rounds by end state",
		},
		[]string{"state"},
	)
	roundInputs = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "wabisabi_round_inputs",
			Help: "Number of inputs of the broadcast coinjoins",
		},
	)
	coinVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wabisabi_coin_verifications_total",
			Help: "Number of coin verifications by outcome",
		},
		[]string{"outcome"},
	)
	inmates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wabisabi_punished_inputs_total",
			Help: "Number of punished inputs by punishment",
		},
		[]string{"punishment"},
	)
	unconsumedVerifications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wabisabi_unconsumed_verifications_total",
			Help: "Number of coin verification results dropped without being read",
		},
	)

	registerOnce sync.Once
)

// Init registers the metrics, it can be called more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(requestDuration)
		prometheus.MustRegister(roundsEnded)
		prometheus.MustRegister(roundInputs)
		prometheus.MustRegister(coinVerifications)
		prometheus.MustRegister(inmates)
		prometheus.MustRegister(unconsumedVerifications)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Request(method, code string, started time.Time) {
	requestDuration.With(prometheus.Labels{
		"method": method, "code": code,
	}).Observe(time.Since(started).Seconds())
}

func RoundEnded(state string, inputCount int) {
	roundsEnded.With(prometheus.Labels{"state": state}).Inc()
	if inputCount > 0 {
		roundInputs.Observe(float64(inputCount))
	}
}

func CoinVerified(outcome string) {
	coinVerifications.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func Punished(punishment string) {
	inmates.With(prometheus.Labels{"punishment": punishment}).Inc()
}

func VerificationDropped() {
	unconsumedVerifications.Inc()
}
