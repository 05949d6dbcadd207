// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"proxyherald/internal/archive"
	"proxyherald/internal/logging"
	"proxyherald/internal/publish"
	"proxyherald/internal/qr"
	"proxyherald/internal/source"
	"proxyherald/internal/telegram"
)

// App holds the shared services for one invocation: the logger, the HTTP
// fetcher, the archive store and the Telegram client. It is initialized
// once at startup and handed to the command that needs it.
type App struct {
	logger    *zap.Logger
	fetcher   *source.Fetcher
	store     *archive.Store
	messenger publish.Messenger
	encoder   publish.Encoder
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetFetcher exposes the subscription source fetcher.
func (a *App) GetFetcher() *source.Fetcher {
	return a.fetcher
}

// GetStore provides access to the published-proxy archive.
func (a *App) GetStore() *archive.Store {
	return a.store
}

// GetMessenger returns the channel messenger used for posting.
func (a *App) GetMessenger() publish.Messenger {
	return a.messenger
}

// GetEncoder returns the QR image encoder.
func (a *App) GetEncoder() publish.Encoder {
	return a.encoder
}

// New creates and initializes an App from the loaded configuration. It is
// designed to fail fast: a missing credential or destination aborts before
// the pipeline ever starts.
func New(_ context.Context) (*App, error) {
	logger, err := logging.New(viper.GetBool("logging.development"))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	logger.Info("Initializing application services...")

	token := viper.GetString("telegram.bot_token")
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is not configured; set TELEGRAM_BOT_TOKEN")
	}
	channel := viper.GetString("telegram.channel_id")
	if channel == "" {
		return nil, fmt.Errorf("telegram channel id is not configured; set TELEGRAM_CHANNEL_ID")
	}

	messenger, err := telegram.New(token, channel)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram client: %w", err)
	}

	timeout := time.Duration(viper.GetInt("runtime.request_timeout_seconds")) * time.Second
	client := resty.New().SetTimeout(timeout)

	logger.Info("Application services initialized successfully.")

	return &App{
		logger:    logger,
		fetcher:   source.New(client, logger),
		store:     archive.New(viper.GetString("paths.archive"), logger),
		messenger: messenger,
		encoder:   qr.New(0),
	}, nil
}

// Close flushes the logger buffer so all log lines are written before the
// process exits.
func (a *App) Close() {
	if err := a.logger.Sync(); err != nil {
		// Best effort; logging itself might be failing.
		a.logger.Warn("Error syncing logger on shutdown", zap.Error(err))
	}
}
