package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"obsnote/internal"
	"obsnote/internal/config"
	"obsnote/internal/container"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	internal.ConfigureLogging(cfg.Logging.Level, cfg.Logging.Format)
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.Open(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize application")
	}
	defer c.Shutdown(context.Background())

	if err := c.Server().Run(ctx, ":"+cfg.Server.Port); err != nil {
		logrus.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}
