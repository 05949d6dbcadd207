package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"proxyherald/internal/app"
	"proxyherald/internal/archive"
	"proxyherald/internal/logging"
	"proxyherald/internal/publish"
	"proxyherald/internal/source"
	"proxyherald/pkg/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a mock app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetFetcher() *source.Fetcher
	GetStore() *archive.Store
	GetMessenger() publish.Messenger
	GetEncoder() publish.Encoder
}

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp func(ctx context.Context) (App, error) = func(ctx context.Context) (App, error) {
	return app.New(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxyherald",
		Short: "Publishes MTProto proxies to a Telegram channel.",
		Long: `proxyherald collects MTProto proxy records from subscription sources,
sanitizes their secrets, drops everything already published, and posts
the remainder to a Telegram channel as QR-code albums with connect
buttons. Each successful run extends a local archive so the next run
only posts what is genuinely new.`,

		// This hook runs AFTER config is loaded but BEFORE the subcommand's
		// RunE, which makes it the place to build and inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			// Store the app instance in the context for subcommands to use.
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	// Initialize Viper configuration.
	cobra.OnInitialize(func() { config.InitConfig(cfgFile) })

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/proxyherald, $HOME/.proxyherald)")

	cmd.AddCommand(newPublishCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	// Initialize the logger once at the very start.
	logging.Init()

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
