// Package metrics exposes the server's Prometheus counters and gauges
// and the /metrics and /ready HTTP endpoints.
package metrics

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fiuba-distribuidos/lottery-server/internal/bet"
	"github.com/fiuba-distribuidos/lottery-server/internal/logging"
	"github.com/fiuba-distribuidos/lottery-server/internal/protocol"
	"github.com/fiuba-distribuidos/lottery-server/internal/store"
	"github.com/fiuba-distribuidos/lottery-server/internal/wire"
)

// Prometheus counters and gauges.
var (
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lottery_connections_accepted_total",
		Help: "Total TCP connections accepted by the server loop.",
	})
	BetsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lottery_bets_received_total",
		Help: "Total individual bets successfully appended to the store.",
	})
	BatchesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lottery_batches_accepted_total",
		Help: "Total SubmitBets batches accepted and persisted.",
	})
	BatchesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lottery_batches_rejected_total",
		Help: "Total SubmitBets batches rejected (malformed or store failure).",
	})
	AgenciesParked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lottery_agencies_parked_total",
		Help: "Total WaitingForLottery messages accepted.",
	})
	AgenciesReparked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lottery_agencies_reparked_total",
		Help: "Total times a new parked connection replaced a prior one for the same agency.",
	})
	WinnersAnnounced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lottery_winners_announced_total",
		Help: "Total winner-announcement messages sent to parked agencies.",
	})
	ParkedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lottery_parked_connections",
		Help: "Current number of agencies parked awaiting the lottery barrier.",
	})
	WorkQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lottery_work_queue_depth",
		Help: "Current number of items queued for the worker pool.",
	})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lottery_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lottery_build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrTransport      = "transport"
	ErrPeerClosed     = "peer_closed"
	ErrMalformedBet   = "malformed_bet"
	ErrMalformedBatch = "malformed_batch"
	ErrStore          = "store"
	ErrOther          = "other"
)

// ClassifyError maps a (possibly wrapped) sentinel error to a stable
// metric label.
func ClassifyError(err error) string {
	switch {
	case errors.Is(err, wire.ErrPeerClosed):
		return ErrPeerClosed
	case errors.Is(err, wire.ErrTransport):
		return ErrTransport
	case errors.Is(err, bet.ErrMalformedBet):
		return ErrMalformedBet
	case errors.Is(err, protocol.ErrMalformedBatch):
		return ErrMalformedBatch
	case errors.Is(err, store.ErrStore):
		return ErrStore
	default:
		return ErrOther
	}
}

// Local mirrored counters, for periodic logging without scraping
// Prometheus in-process.
var (
	localBetsReceived     uint64
	localBatchesAccepted  uint64
	localBatchesRejected  uint64
	localAgenciesParked   uint64
	localWinnersAnnounced uint64
	localErrors           uint64
)

// IncConnectionAccepted increments the accepted-connection counter.
func IncConnectionAccepted() { ConnectionsAccepted.Inc() }

// AddBetsReceived records n bets appended to the store.
func AddBetsReceived(n int) {
	BetsReceived.Add(float64(n))
	atomic.AddUint64(&localBetsReceived, uint64(n))
}

// IncBatchAccepted records one accepted SubmitBets batch.
func IncBatchAccepted() {
	BatchesAccepted.Inc()
	atomic.AddUint64(&localBatchesAccepted, 1)
}

// IncBatchRejected records one rejected SubmitBets batch.
func IncBatchRejected() {
	BatchesRejected.Inc()
	atomic.AddUint64(&localBatchesRejected, 1)
}

// IncAgencyParked records one WaitingForLottery acceptance.
func IncAgencyParked() {
	AgenciesParked.Inc()
	atomic.AddUint64(&localAgenciesParked, 1)
}

// IncAgencyReparked records a parked connection replacing a prior one
// for the same agency.
func IncAgencyReparked() { AgenciesReparked.Inc() }

// IncWinnersAnnounced records one winners message sent.
func IncWinnersAnnounced() {
	WinnersAnnounced.Inc()
	atomic.AddUint64(&localWinnersAnnounced, 1)
}

// IncError increments the error counter for label and the local mirror.
func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// SetParkedConnections records the current parked-connection count.
func SetParkedConnections(n int) { ParkedConnections.Set(float64(n)) }

// SetWorkQueueDepth records the current work queue depth.
func SetWorkQueueDepth(n int) { WorkQueueDepth.Set(float64(n)) }

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error does not pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrTransport, ErrPeerClosed, ErrMalformedBet, ErrMalformedBatch, ErrStore, ErrOther} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function, defaulting to true
// when none has been set yet.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	BetsReceived     uint64
	BatchesAccepted  uint64
	BatchesRejected  uint64
	AgenciesParked   uint64
	WinnersAnnounced uint64
	Errors           uint64
}

// Snap returns the current Snapshot.
func Snap() Snapshot {
	return Snapshot{
		BetsReceived:     atomic.LoadUint64(&localBetsReceived),
		BatchesAccepted:  atomic.LoadUint64(&localBatchesAccepted),
		BatchesRejected:  atomic.LoadUint64(&localBatchesRejected),
		AgenciesParked:   atomic.LoadUint64(&localAgenciesParked),
		WinnersAnnounced: atomic.LoadUint64(&localWinnersAnnounced),
		Errors:           atomic.LoadUint64(&localErrors),
	}
}

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe
// at /ready on addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}
