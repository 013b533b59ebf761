package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/moderation"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/post"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/revenue"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/subscription"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/user"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "integrity_http_request_duration_seconds",
	Help:    "HTTP request latency by method and status",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "status"})

// LoggingMiddleware logs every request at debug level and records its latency.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			requestDuration.WithLabelValues(r.Method, strconv.Itoa(status)).Observe(dur.Seconds())
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			// Referrer policy
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")

			// Permissions policy
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// API responses are JSON; restrict everything to self
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}

			// HSTS only over TLS, 30 days
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Handlers groups the per-domain handlers the router mounts.
type Handlers struct {
	User         *user.Handler
	Post         *post.Handler
	Moderation   *moderation.Handler
	Revenue      *revenue.Handler
	Subscription *subscription.Handler
	Setting      *setting.Handler
	Notification *notification.Handler
}

// Prefix is the path prefix of every API route.
const Prefix = "/pitchfork-api-integrity"

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, issuer *auth.Issuer, h Handlers) http.Handler {
	mux := http.NewServeMux()
	authed := func(fn http.HandlerFunc) http.HandlerFunc { return auth.Require(false, fn) }
	admin := func(fn http.HandlerFunc) http.HandlerFunc { return auth.Require(true, fn) }

	// health
	mux.HandleFunc("GET "+Prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// users
	mux.HandleFunc("POST "+Prefix+"/register", h.User.Register)
	mux.HandleFunc("POST "+Prefix+"/login", h.User.Login)
	mux.HandleFunc("GET "+Prefix+"/me", authed(h.User.Me))

	// posts, reports and interactions
	mux.HandleFunc("POST "+Prefix+"/posts", authed(h.Post.Create))
	mux.HandleFunc("GET "+Prefix+"/posts/{id}", h.Post.Get)
	mux.HandleFunc("POST "+Prefix+"/posts/{id}/reports", authed(h.Moderation.FileReport))
	mux.HandleFunc("GET "+Prefix+"/posts/{id}/reports", admin(h.Moderation.ReportsForPost))
	mux.HandleFunc("POST "+Prefix+"/posts/{id}/confirm-fake", admin(h.Moderation.ConfirmFake))
	mux.HandleFunc("POST "+Prefix+"/posts/{id}/discard-reports", admin(h.Moderation.DiscardReports))
	mux.HandleFunc("POST "+Prefix+"/posts/{id}/interactions", h.Revenue.RecordInteraction)

	// moderation queue
	mux.HandleFunc("GET "+Prefix+"/moderation/flagged", admin(h.Moderation.FlaggedPosts))
	mux.HandleFunc("GET "+Prefix+"/moderation/stats", admin(h.Moderation.Stats))

	// revenue
	mux.HandleFunc("GET "+Prefix+"/revenue/dashboard", admin(h.Revenue.Dashboard))
	mux.HandleFunc("POST "+Prefix+"/revenue/simulate", admin(h.Revenue.Simulate))
	mux.HandleFunc("GET "+Prefix+"/users/{id}/earnings", authed(h.Revenue.UserTotals))

	// subscriptions
	mux.HandleFunc("GET "+Prefix+"/plans", h.Subscription.ListPlans)
	mux.HandleFunc("POST "+Prefix+"/plans", admin(h.Subscription.CreatePlan))
	mux.HandleFunc("POST "+Prefix+"/subscriptions", authed(h.Subscription.Request))
	mux.HandleFunc("GET "+Prefix+"/subscriptions/me", authed(h.Subscription.Status))
	mux.HandleFunc("GET "+Prefix+"/subscriptions/history", authed(h.Subscription.History))
	mux.HandleFunc("GET "+Prefix+"/subscriptions/pending", admin(h.Subscription.PendingReviews))
	mux.HandleFunc("POST "+Prefix+"/subscriptions/sweep", admin(h.Subscription.Sweep))
	mux.HandleFunc("POST "+Prefix+"/subscriptions/{id}/payment", authed(h.Subscription.PaymentNotice))
	mux.HandleFunc("POST "+Prefix+"/subscriptions/{id}/review", admin(h.Subscription.Review))
	mux.HandleFunc("POST "+Prefix+"/subscriptions/{id}/cancel", authed(h.Subscription.Cancel))

	// settings
	mux.HandleFunc("GET "+Prefix+"/settings", admin(h.Setting.List))
	mux.HandleFunc("GET "+Prefix+"/settings/report-threshold", admin(h.Setting.GetReportThreshold))
	mux.HandleFunc("PUT "+Prefix+"/settings/report-threshold", admin(h.Setting.SetReportThreshold))

	// notifications
	mux.HandleFunc("GET "+Prefix+"/notifications", authed(h.Notification.List))
	mux.HandleFunc("POST "+Prefix+"/notifications/{id}/read", authed(h.Notification.MarkRead))

	// auth, then security headers, then logging outermost
	handler := LoggingMiddleware(logger)(SecurityHeadersMiddleware()(auth.Middleware(issuer, logger)(mux)))
	return handler
}
