// Package prometheus exposes the store measures as Prometheus collectors.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rbroggi/souqly/internal/core/ports"
)

// Recorder holds Prometheus collectors for the stores.
type Recorder struct {
	WritesTotal        *prometheus.CounterVec
	MalformedTotal     *prometheus.CounterVec
	TransferredTotal   *prometheus.CounterVec
	AccountEventsTotal *prometheus.CounterVec
}

var _ ports.Recorder = (*Recorder)(nil)

// NewRecorder registers the collectors on reg and returns them.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		WritesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "souqly_store_writes_total",
			Help: "Total number of successful writes, labeled by store",
		}, []string{"store"}),
		MalformedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "souqly_store_malformed_total",
			Help: "Total number of persisted values that could not be decoded, labeled by store",
		}, []string{"store"}),
		TransferredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "souqly_guest_items_transferred_total",
			Help: "Total number of guest items merged into an account on sign-in, labeled by store",
		}, []string{"store"}),
		AccountEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "souqly_account_events_total",
			Help: "Total number of account changes, labeled by kind",
		}, []string{"kind"}),
	}
}

func (r *Recorder) Persisted(store string) {
	r.WritesTotal.WithLabelValues(store).Inc()
}

func (r *Recorder) Malformed(store string) {
	r.MalformedTotal.WithLabelValues(store).Inc()
}

func (r *Recorder) Transferred(store string, items int) {
	r.TransferredTotal.WithLabelValues(store).Add(float64(items))
}

func (r *Recorder) AccountEvent(kind string) {
	r.AccountEventsTotal.WithLabelValues(kind).Inc()
}
