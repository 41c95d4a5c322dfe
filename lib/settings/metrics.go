package settings

import (
	"fmt"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Process Metrics (prometheus exposition)
// --------------------------------------------------------------------------

var (
	transactionsTotal   = vmetrics.NewCounter("dsettings_transactions_total")
	fanoutErrorsTotal   = vmetrics.NewCounter("dsettings_fanout_errors_total")
	observerErrorsTotal = vmetrics.NewCounter("dsettings_observer_errors_total")
	bootFailuresTotal   = vmetrics.NewCounter("dsettings_boot_failures_total")
	fanoutDuration      = vmetrics.NewHistogram("dsettings_fanout_duration_seconds")
)

func changesCounter(instance string) *vmetrics.Counter {
	return vmetrics.GetOrCreateCounter(fmt.Sprintf(`dsettings_changes_total{instance=%q}`, instance))
}

// --------------------------------------------------------------------------
// Instance Statistics
// --------------------------------------------------------------------------

const (
	statTransactions    = "transactions"
	statChanges         = "changes"
	statObserverErrors  = "observer_errors"
	statPersistorErrors = "persistor_errors"
	statFanout          = "fanout"
)

// instanceStats wraps the per-instance go-metrics registry.
type instanceStats struct {
	registry gometrics.Registry
	name     string
}

func newInstanceStats(name string) *instanceStats {
	return &instanceStats{registry: gometrics.NewRegistry(), name: name}
}

func (st *instanceStats) inc(name string, n int64) {
	if n == 0 {
		return
	}
	gometrics.GetOrRegisterCounter(name, st.registry).Inc(n)
}

func (st *instanceStats) fanout(start time.Time) {
	gometrics.GetOrRegisterTimer(statFanout, st.registry).UpdateSince(start)
	fanoutDuration.UpdateDuration(start)
}

// snapshot flattens the registry into name -> count.
func (st *instanceStats) snapshot() map[string]int64 {
	out := make(map[string]int64)
	st.registry.Each(func(name string, m interface{}) {
		switch metric := m.(type) {
		case gometrics.Counter:
			out[name] = metric.Count()
		case gometrics.Timer:
			out[name] = metric.Count()
			out[name+"_mean_ns"] = int64(metric.Mean())
		}
	})
	return out
}
