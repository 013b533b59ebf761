package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/moderation"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/post"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/revenue"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/subscription"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-integrity-go")

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}
	revenueCfg, err := cfg.Revenue()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}

	// init db
	dbCfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(dbCfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	// wrap with sqlx for convenience in repos/services
	sqlxDB := sqlx.NewDb(sqlDB, dbCfg.Driver)
	st := store.New(sqlxDB)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.EnsureSchema {
		if err := st.EnsureSchema(ctx); err != nil {
			sugar.Fatalf("ensure schema: %v", err)
		}
	}
	if revenueCfg.AdminUserID == 0 {
		sugar.Warn("PLATFORM_ADMIN_USER_ID not set; admin earnings will be skipped")
	}

	clock := clockwork.NewRealClock()
	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL, clock)
	if err != nil {
		sugar.Fatalf("auth: %v", err)
	}
	dispatcher := notification.NewDispatcher(notification.LogSink{Logger: sugar}, sugar)
	revenueSvc, err := revenue.NewService(st, revenueCfg, clock, sugar)
	if err != nil {
		sugar.Fatalf("revenue: %v", err)
	}

	handlers := router.Handlers{
		User:         user.NewHandler(user.NewUserService(st, nil, clock), issuer, sugar),
		Post:         post.NewHandler(post.NewService(st, clock), sugar),
		Moderation:   moderation.NewHandler(moderation.NewService(st, dispatcher, clock, sugar), sugar),
		Revenue:      revenue.NewHandler(revenueSvc, sugar),
		Subscription: subscription.NewHandler(subscription.NewService(st, dispatcher, clock, sugar), sugar),
		Setting:      setting.NewHandler(setting.NewService(st, clock), sugar),
		Notification: notification.NewHandler(notification.NewService(st), sugar),
	}

	// mount http server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.RegisterRoutes(sugar, issuer, handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", cfg.HTTPAddr)

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
