// Package cmd defines and implements the CLI commands for the proxyherald executable.
package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"proxyherald/internal/budget"
	"proxyherald/internal/clock/system"
	"proxyherald/internal/pipeline"
	"proxyherald/internal/publish"
)

// newPublishCmd creates and configures the 'publish' subcommand, which runs
// one full fetch-sanitize-dedup-post batch against the configured channel.
func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Runs one publishing batch",
		Long: `Fetches proxy records from the configured subscription sources,
sanitizes and deduplicates them against the local archive, posts the
new ones to the Telegram channel in paced chunks, and records what was
posted so the next run skips it.`,

		RunE: runPublishCommand,
	}
	return cmd
}

func runPublishCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	logger := appInstance.GetLogger().With(zap.String("run_id", uuid.NewString()))
	logger.Info("Starting publishing batch")

	maxExecution := time.Duration(viper.GetInt("runtime.max_execution_seconds")) * time.Second
	b := budget.New(maxExecution, system.New(), logger)

	// The batch must never leave a non-zero exit behind: a crash inside the
	// pipeline is logged and swallowed so the scheduler does not retry it.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Unhandled panic during publishing batch", zap.Any("panic", r))
		}
		logger.Info("Publishing batch finished",
			zap.Float64("elapsed_seconds", b.Elapsed().Seconds()),
		)
	}()

	publisher := publish.New(
		appInstance.GetMessenger(),
		appInstance.GetEncoder(),
		publish.Config{
			ChunkSize:     viper.GetInt("posting.proxies_per_post"),
			Delay:         time.Duration(viper.GetInt("posting.delay_seconds")) * time.Second,
			ChannelHandle: viper.GetString("posting.channel_handle"),
		},
		logger,
	)

	p := pipeline.New(
		appInstance.GetFetcher(),
		appInstance.GetStore(),
		publisher,
		viper.GetString("paths.subscriptions"),
		logger,
	)

	stats := p.Run(cmd.Context(), b)
	logger.Info("Batch summary",
		zap.Int("fetched", stats.Fetched),
		zap.Int("cleaned", stats.Cleaned),
		zap.Int("fresh", stats.Fresh),
		zap.Int("posted", stats.Posted),
	)
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
