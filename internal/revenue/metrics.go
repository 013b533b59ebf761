package revenue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var interactionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "integrity_interactions_recorded",
	Help: "Number of post interactions that produced earnings",
}, []string{"kind"})

var earningsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "integrity_earnings_appended",
	Help: "Number of earning ledger rows appended",
}, []string{"type"})

var adminShareSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "integrity_admin_share_skipped",
	Help: "Number of interactions whose admin share had no beneficiary",
})
