package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oksasatya/perfume-storefront/config"
	"github.com/oksasatya/perfume-storefront/internal/container"
	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/mongodb"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/postgres"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "storectl",
		Short:         "Operational tasks for the perfume storefront",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(indexesCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(reconcileCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	return helpers.NewLogger(cfg.AppName+"-storectl", cfg.Env, helpers.LogOptions{Level: cfg.LogLevel})
}

// withServices runs fn against a fully bootstrapped container.
func withServices(ctx context.Context, fn func(*config.Config, *logrus.Logger, *container.Services) error) error {
	cfg := config.Load()
	logger := newLogger(cfg)
	cleanup, err := container.Bootstrap(ctx, cfg, logger)
	defer cleanup()
	if err != nil {
		return err
	}
	return fn(cfg, logger, container.GetServices())
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run the Postgres migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			return postgres.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, newLogger(cfg))
		},
	}
}

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			ctx := cmd.Context()
			db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
			if err != nil {
				return err
			}
			defer func() { _ = db.Client().Disconnect(context.Background()) }()
			if err := mongodb.EnsureIndexes(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "indexes ok")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var (
		file          string
		adminEmail    string
		adminPassword string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the admin user and the catalog from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := loadSeed(file)
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), func(cfg *config.Config, logger *logrus.Logger, s *container.Services) error {
				ctx := cmd.Context()
				if adminEmail != "" {
					if err := upsertAdmin(ctx, postgres.NewUserRepository(container.GetPGPool()), adminEmail, adminPassword); err != nil {
						return fmt.Errorf("admin: %w", err)
					}
					logger.WithField("email", adminEmail).Info("admin user ready")
				}
				res, err := newSeeder(s.Catalog).Run(ctx, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "brands=%d categories=%d products=%d banners=%d\n",
					res.Brands, res.Categories, res.Products, res.Banners)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "db/seed/catalog.yaml", "seed file")
	cmd.Flags().StringVar(&adminEmail, "admin-email", os.Getenv("SEED_ADMIN_EMAIL"), "admin account email")
	cmd.Flags().StringVar(&adminPassword, "admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "admin account password")
	return cmd
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the Elasticsearch product index from MongoDB",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(_ *config.Config, logger *logrus.Logger, s *container.Services) error {
				if s.ProductIndex == nil {
					return fmt.Errorf("elasticsearch is not configured")
				}
				ctx := cmd.Context()
				if err := s.ProductIndex.Recreate(ctx); err != nil {
					return err
				}
				total, indexed := 0, 0
				for page := 1; ; page++ {
					res, err := s.Catalog.ListProducts(ctx, entity.ProductFilter{
						ListQuery:       entity.ListQuery{Page: page, Limit: entity.MaxPageSize, Sort: "created_at", Order: "asc"},
						IncludeInactive: true,
					})
					if err != nil {
						return err
					}
					n, err := s.ProductIndex.Bulk(ctx, res.Data)
					if err != nil {
						return err
					}
					total += len(res.Data)
					indexed += n
					if len(res.Data) < entity.MaxPageSize || int64(total) >= res.TotalCount {
						break
					}
				}
				logger.WithFields(logrus.Fields{"products": total, "indexed": indexed}).Info("reindex finished")
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d/%d products\n", indexed, total)
				return nil
			})
		},
	}
}

func reconcileCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Settle pending Razorpay payments against the gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(_ *config.Config, logger *logrus.Logger, s *container.Services) error {
				report, err := s.Payments.Reconcile(cmd.Context(), olderThan)
				logger.WithFields(logrus.Fields{
					"checked":  report.Checked,
					"captured": report.Captured,
					"failed":   report.Failed,
					"pending":  report.Pending,
					"errors":   report.Errors,
				}).Info("reconcile finished")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "checked=%d captured=%d failed=%d pending=%d errors=%d\n",
					report.Checked, report.Captured, report.Failed, report.Pending, report.Errors)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 15*time.Minute, "only payments created before now minus this")
	return cmd
}
