package subscription

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var subscriptionsExpired = promauto.NewCounter(prometheus.CounterOpts{
	Name: "integrity_subscriptions_expired",
	Help: "Number of active subscriptions moved to expired",
})

var staleCancelled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "integrity_subscriptions_stale_cancelled",
	Help: "Number of stale pending subscriptions cancelled during resolution",
})

var paymentsReviewed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "integrity_subscription_reviews",
	Help: "Number of payment reviews by outcome",
}, []string{"state"})

var subscriptionsCancelled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "integrity_subscriptions_cancelled",
	Help: "Number of subscriptions cancelled on request",
})
