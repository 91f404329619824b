// Command seeder loads a YAML price list into Postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/noah-isme/backend-laundry/internal/app"
	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/obs"
)

func main() {
	_ = godotenv.Load()

	seeder := &cli.App{
		Name:  "seeder",
		Usage: "Apply catalog migrations and upsert a price list snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Postgres connection string",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Value:   "configs/catalog.yaml",
				Usage:   "YAML catalog snapshot to load",
				EnvVars: []string{"CATALOG_FILE"},
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Value: true,
				Usage: "Apply schema migrations before seeding",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: time.Minute,
				Usage: "Overall deadline",
			},
		},
		Action: run,
	}
	if err := seeder.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := obs.NewLoggerTo(os.Stderr, "console", "info", "seeder")

	dbURL := c.String("database-url")
	if dbURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	snap, err := catalog.LoadSnapshotFile(c.String("file"))
	if err != nil {
		return err
	}

	if c.Bool("migrate") {
		if err := catalog.Migrate(dbURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	pool, err := app.OpenPostgres(ctx, dbURL, "laundry-seeder")
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := catalog.NewPostgresStore(pool).Seed(ctx, snap); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	logger.Info().
		Int("categories", len(snap.Categories)).
		Int("items", len(snap.Items)).
		Int("modifiers", len(snap.Modifiers)).
		Msg("catalog seeded")
	return nil
}
