// Command seed loads demo products into an empty catalog and ensures an
// admin account exists. It reads the same configuration as the server;
// the admin password comes from SEED_ADMIN_PASSWORD or a terminal prompt.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/dmitrijs2005/storefront/internal/flagx"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/seed"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"github.com/dmitrijs2005/storefront/internal/shared"
	"github.com/joho/godotenv"
)

const passwordEnv = "SEED_ADMIN_PASSWORD"

func main() {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	adminEmail := fs.String("admin-email", "admin@example.com", "admin account email")
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-admin-email"})); err != nil {
		log.Fatalf("%v", err)
	}

	cfg := config.LoadConfig()
	logger := logging.New(os.Stdout, cfg.LogLevel)
	ctx := context.Background()

	if err := run(ctx, cfg, logger, *adminEmail); err != nil {
		logger.Error(ctx, "seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Seed completed")
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger, adminEmail string) error {
	db, err := repomanager.OpenDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return err
	}

	images, err := services.NewImageSigner(ctx, cfg)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration, m.Revocations(db))
	users := services.NewUserService(db, m, auth.NewPasswordHasher(cfg.BcryptCost), tokens, cfg.StorageTimeout)
	catalog := services.NewCatalogService(db, m, images, cfg.StorageTimeout)

	s := seed.NewSeeder(catalog, m.Users(db), users, logger)
	if _, err := s.SeedProducts(ctx); err != nil {
		return err
	}

	password, err := seed.AdminPassword(passwordEnv, os.Stdout)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(password)

	_, err = s.EnsureAdmin(ctx, adminEmail, password)
	return err
}
