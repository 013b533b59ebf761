package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reportsFiled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "integrity_reports_filed",
	Help: "Number of reports accepted",
}, []string{"reason"})

var postsFlagged = promauto.NewCounter(prometheus.CounterOpts{
	Name: "integrity_posts_flagged",
	Help: "Number of posts moved to flagged by the report threshold",
})

var postsConfirmedFake = promauto.NewCounter(prometheus.CounterOpts{
	Name: "integrity_posts_confirmed_fake",
	Help: "Number of flagged posts confirmed as fake by an admin",
})

var authorsSuspended = promauto.NewCounter(prometheus.CounterOpts{
	Name: "integrity_authors_suspended",
	Help: "Number of author suspensions caused by confirmed fake content",
})

var reportsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "integrity_reports_discarded",
	Help: "Number of reports resolved by discarding",
})
