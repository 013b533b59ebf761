// Command sweeper runs the periodic maintenance operations of the integrity
// engines once and exits. It is meant to be driven by an external scheduler.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/moderation"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/subscription"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

func main() {
	_ = godotenv.Load()

	app := cli.App{
		Name:  "sweeper",
		Usage: "run integrity maintenance jobs once",
	}
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-driver",
			Usage:   "database driver (postgres or sqlite3)",
			EnvVars: []string{"DATABASE_DRIVER"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string",
			EnvVars: []string{"DATABASE_URL"},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:  "sweep",
			Usage: "expire active subscriptions whose validity window has closed",
			Flags: []cli.Flag{
				&cli.TimestampFlag{
					Name:   "now",
					Usage:  "sweep as of this RFC 3339 instant instead of the current time",
					Layout: time.RFC3339,
				},
			},
			Action: runSweep,
		},
		{
			Name:   "stats",
			Usage:  "print moderation and subscription counters as JSON",
			Action: runStats,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sweeper: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	store  *store.Store
	logger *zap.SugaredLogger
	close  func()
}

func setup(cctx *cli.Context) (*env, error) {
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg := database.ConfigFromEnv()
	if v := cctx.String("database-driver"); v != "" {
		cfg.Driver = v
	}
	if v := cctx.String("database-url"); v != "" {
		cfg.DSN = v
	}
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return &env{
		store:  store.New(sqlx.NewDb(sqlDB, cfg.Driver)),
		logger: lg.Sugar(),
		close: func() {
			_ = sqlDB.Close()
			_ = lg.Sync()
		},
	}, nil
}

func runSweep(cctx *cli.Context) error {
	e, err := setup(cctx)
	if err != nil {
		return err
	}
	defer e.close()

	svc := subscription.NewService(e.store, notification.NewDispatcher(nil, e.logger), clockwork.NewRealClock(), e.logger)
	now := svc.Now()
	if ts := cctx.Timestamp("now"); ts != nil {
		now = ts.UTC()
	}
	n, err := svc.SweepExpirations(cctx.Context, now)
	if err != nil {
		return err
	}
	e.logger.Infow("sweep finished", "expired", n, "as_of", now)
	fmt.Println(n)
	return nil
}

func runStats(cctx *cli.Context) error {
	e, err := setup(cctx)
	if err != nil {
		return err
	}
	defer e.close()

	clock := clockwork.NewRealClock()
	dispatcher := notification.NewDispatcher(nil, e.logger)
	mod, err := moderation.NewService(e.store, dispatcher, clock, e.logger).Stats(cctx.Context)
	if err != nil {
		return err
	}
	subs, err := subscription.NewService(e.store, dispatcher, clock, e.logger).Counts(cctx.Context)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"moderation": mod, "subscriptions": subs})
}
