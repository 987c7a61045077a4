package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/repuestos/internal/clock"
	"github.com/smallbiznis/repuestos/internal/config"
	"github.com/smallbiznis/repuestos/internal/migration"
	"github.com/smallbiznis/repuestos/internal/observability"
	"github.com/smallbiznis/repuestos/internal/product"
	"github.com/smallbiznis/repuestos/internal/providers"
	"github.com/smallbiznis/repuestos/internal/ratelimit"
	"github.com/smallbiznis/repuestos/internal/scheduler"
	"github.com/smallbiznis/repuestos/internal/sequence"
	"github.com/smallbiznis/repuestos/internal/server"
	"github.com/smallbiznis/repuestos/pkg/db"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const shortLivedTimeout = 5 * time.Minute

func main() {
	app := &cli.App{
		Name:   "repuestos",
		Usage:  "auto parts inventory backend",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the resync scheduler",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply schema migrations and exit",
				Action: migrate,
			},
			{
				Name:   "sync",
				Usage:  "push products missing from the ledger and exit",
				Action: syncOnce,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,
		migration.Module,
	)
}

func domains() fx.Option {
	return fx.Options(
		sequence.Module,
		providers.Module,
		product.Module,
		scheduler.Module,
	)
}

func serve(*cli.Context) error {
	fx.New(
		infrastructure(),
		domains(),
		server.Module,
		fx.Invoke(scheduler.NewScheduler),
	).Run()
	return nil
}

func migrate(c *cli.Context) error {
	app := fx.New(infrastructure())
	return runShortLived(c.Context, app, nil)
}

func syncOnce(c *cli.Context) error {
	var (
		sched *scheduler.Scheduler
		log   *zap.Logger
	)
	app := fx.New(
		infrastructure(),
		domains(),
		fx.Populate(&sched, &log),
	)
	return runShortLived(c.Context, app, func(ctx context.Context) error {
		if err := sched.Sweep(ctx); err != nil {
			return err
		}
		log.Info("ledger sync finished")
		return nil
	})
}

// runShortLived starts app, runs fn and stops app again.
func runShortLived(parent context.Context, app *fx.App, fn func(context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, shortLivedTimeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}

	var runErr error
	if fn != nil {
		runErr = fn(ctx)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
