// Package notification persists user notices alongside the state change that
// produced them and hands them to an external Sink after commit. Delivery is
// fire-and-forget: a failing Sink is logged and never reaches the caller.
package notification

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/entity"
)

var deliveryCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "integrity_notifications_delivered",
	Help: "Notifications handed to the delivery sink",
}, []string{"kind"})

var deliveryErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "integrity_notification_delivery_errors",
	Help: "Notifications the delivery sink failed to accept",
}, []string{"kind"})

// Sink is the delivery collaborator (email, push, ...). Retry and queueing
// are its own responsibility.
type Sink interface {
	Notify(ctx context.Context, userID int64, title, message, kind string, postID *int64) error
}

// LogSink only logs; it is the default when no delivery backend is configured.
type LogSink struct {
	Logger *zap.SugaredLogger
}

func (s LogSink) Notify(ctx context.Context, userID int64, title, message, kind string, postID *int64) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Infow("notification", "user_id", userID, "kind", kind, "title", title, "post_id", postID)
	return nil
}

// Dispatcher hands committed notifications to the sink.
type Dispatcher struct {
	sink   Sink
	logger *zap.SugaredLogger
}

func NewDispatcher(sink Sink, logger *zap.SugaredLogger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if sink == nil {
		sink = LogSink{Logger: logger}
	}
	return &Dispatcher{sink: sink, logger: logger}
}

// Deliver must only be called after the transaction that stored notes has
// committed. It never returns an error.
func (d *Dispatcher) Deliver(ctx context.Context, notes ...*entity.Notification) {
	if d == nil || len(notes) == 0 {
		return
	}
	var errs error
	for _, n := range notes {
		if err := d.sink.Notify(ctx, n.UserID, n.Title, n.Message, n.Kind, n.PostID); err != nil {
			deliveryErrorCount.WithLabelValues(n.Kind).Inc()
			errs = multierr.Append(errs, fmt.Errorf("notification %s: %w", n.ID, err))
			continue
		}
		deliveryCount.WithLabelValues(n.Kind).Inc()
	}
	if errs != nil {
		d.logger.Warnw("notification delivery failed", "err", errs, "failed", len(multierr.Errors(errs)))
	}
}
