package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"petshop/cache"
	"petshop/config"
	"petshop/jobs"
	"petshop/jwt"
	"petshop/logging"
	"petshop/routers"
	"petshop/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	configPath := os.Getenv("PETSHOP_CONFIG")
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.Setup(cfg.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	db, err := config.SetupDatabaseConnection(cfg.Database)
	if err != nil {
		zap.S().Errorw("connect database", "error", err)
		return errors.Wrap(err, "connect database")
	}
	defer func() {
		dbInstance, _ := db.DB()
		_ = dbInstance.Close()
	}()

	rdb := config.SetupRedisConnection(cfg.Redis)
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zap.S().Warnw("redis unreachable, product list served from database", "error", err)
	}

	signer, err := jwt.LoadSigner(cfg.JWT)
	if err != nil {
		zap.S().Errorw("load jwt keys", "error", err)
		return errors.Wrap(err, "load jwt keys")
	}

	identity := store.NewIdentityStore(db)
	if _, err := identity.EnsureAdmin(context.Background(), cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		zap.S().Errorw("seed administrator", "error", err)
		return errors.Wrap(err, "seed administrator")
	}

	products := cache.NewProducts(rdb, store.NewCatalogStore(db))
	scheduler, err := jobs.NewScheduler(cfg.Jobs, identity, products)
	if err != nil {
		zap.S().Errorw("schedule jobs", "error", err)
		return errors.Wrap(err, "schedule jobs")
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := routers.SetupRouters(db, rdb, signer, cfg.Server)
	zap.S().Infow("listening", "addr", cfg.Server.Addr)
	if err := router.Run(cfg.Server.Addr); err != nil {
		zap.S().Errorw("server stopped", "error", err)
		return errors.Wrap(err, "serve")
	}
	return nil
}
