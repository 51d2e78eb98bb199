package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/wardrobe/internal/config"
	"github.com/vbonduro/wardrobe/internal/db"
	"github.com/vbonduro/wardrobe/internal/domain"
	"github.com/vbonduro/wardrobe/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wardrobe",
		Short:         "Catalogue clothes and shuffle outfits",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "categories",
			Short: "Print the clothing categories in display order",
			Run: func(cmd *cobra.Command, _ []string) {
				for _, c := range domain.DefaultTaxonomy {
					fmt.Fprintln(cmd.OutOrStdout(), c)
				}
			},
		},
	)
	return root
}

func setup() (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		log.Printf("failed to initialize logger: %v", err)
		return nil, nil, nil, err
	}
	return cfg, logger, cleanup, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	version, dirty, err := db.SchemaVersion(database)
	if err != nil {
		return err
	}
	logger.Info("database migrated", "path", cfg.DBPath, "version", version, "dirty", dirty)
	return nil
}
