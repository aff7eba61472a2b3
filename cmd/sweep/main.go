package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tripmate/cmd/consumers/jobs"
	"tripmate/internal/cache"
	"tripmate/internal/config"
	"tripmate/internal/database"
	"tripmate/internal/external"
	"tripmate/internal/logger"
	"tripmate/internal/messaging"
	"tripmate/internal/repository"
	"tripmate/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Trip lifecycle sweep for tripmate",
		Long: `Closes plans whose join window expired, rejects finalized plans that
missed the payment deadline, forms trips from funded plans and moves
confirmed trips through ongoing and completed.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env holds the connections one sweep invocation needs.
type env struct {
	cfg      *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	services *service.Services
}

func setup() (*env, error) {
	cfg := config.Load()
	logger.InitWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	cfg.NATS.ClientID = "tripmate-sweep"

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	services := service.NewServices(service.Deps{
		Store:     repository.NewRepositories(db),
		Publisher: natsClient,
		Gateway:   external.NewPaymentClient(cfg.Payment),
	})

	return &env{cfg: cfg, db: db, nats: natsClient, services: services}, nil
}

func (e *env) close() {
	e.nats.Close()
	e.db.Close()
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sweep once and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			report, runErr := e.services.Sweeper.Run(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return runErr
		},
	}
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the sweep on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			interval, _ := cmd.Flags().GetDuration("interval")
			if interval <= 0 {
				interval = e.cfg.Sweep.Interval
			}

			var locker jobs.Locker
			if useLock, _ := cmd.Flags().GetBool("lock"); useLock {
				rdb, err := cache.NewRedisClient(e.cfg.Redis)
				if err != nil {
					return err
				}
				defer rdb.Close()
				locker = cache.NewLocker(rdb)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			job := jobs.NewTripSweepJob(e.services.Sweeper, locker, interval, e.cfg.Sweep.LockTTL)
			job.Start(ctx)
			<-ctx.Done()
			job.Stop()
			return nil
		},
	}

	cmd.Flags().Duration("interval", 0, "Sweep interval (default SWEEP_INTERVAL)")
	cmd.Flags().Bool("lock", true, "Take the Redis sweep lock before each run")

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.InitWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

			db, err := database.Connect(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			return db.RunMigrations(cmd.Context())
		},
	}
}
