package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/internal/clock"
	"github.com/tidyroundlabs/tidyround/internal/config"
	"github.com/tidyroundlabs/tidyround/internal/earnings"
	"github.com/tidyroundlabs/tidyround/internal/employee"
	"github.com/tidyroundlabs/tidyround/internal/gateway"
	"github.com/tidyroundlabs/tidyround/internal/joblock"
	"github.com/tidyroundlabs/tidyround/internal/metrics"
	"github.com/tidyroundlabs/tidyround/internal/notification"
	"github.com/tidyroundlabs/tidyround/internal/observability"
	"github.com/tidyroundlabs/tidyround/internal/paymentretry"
	"github.com/tidyroundlabs/tidyround/internal/payout"
	"github.com/tidyroundlabs/tidyround/internal/scheduler"
	"github.com/tidyroundlabs/tidyround/internal/server"
	"github.com/tidyroundlabs/tidyround/internal/serviceinstance"
	"github.com/tidyroundlabs/tidyround/internal/subscription"
	"github.com/tidyroundlabs/tidyround/pkg/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "tidyround",
		Short:   "Tidyround CLI",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newSchedulerCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the background job scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the API server and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runMonolith()
			return nil
		},
	}
}

// coreModules are the providers every run mode needs.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		joblock.Module,
		notification.Module,
		earnings.Module,
		gateway.Module,
		subscription.Module,
		employee.Module,
		serviceinstance.Module,
		paymentretry.Module,
		payout.Module,
	)
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		fx.Invoke(func(gdb *gorm.DB) error {
			return db.AutoMigrate(gdb)
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		coreModules(),
		// The server needs the scheduler for manual job triggers, but serve
		// mode never ticks it.
		fx.Provide(scheduler.New),
		server.Module,
	)
	app.Run()
}

func runScheduler() {
	app := fx.New(
		coreModules(),
		scheduler.Module,
	)
	app.Run()
}

func runMonolith() {
	app := fx.New(
		coreModules(),
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
