package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sienaconfecciones/storefront/internal/constants"
	"github.com/sienaconfecciones/storefront/internal/log"
	notificationCmd "github.com/sienaconfecciones/storefront/notification/cmd"
	orderCmd "github.com/sienaconfecciones/storefront/order/cmd"
)

func Start() {
	// The file logger is built by the subcommand once its config is read.
	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str(log.KeyAppName, constants.AppMain).
		Str(log.KeyTag, "main Start").
		Logger()

	logger.Info().Msg("adding listener for SIGINT and SIGTERM")
	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info().Msg("added listener for SIGINT and SIGTERM")

	c = logger.WithContext(c)

	rootCmd := &cobra.Command{
		Use:   constants.AppMain,
		Short: "Siena Confecciones storefront backend",
	}
	commands := []*cobra.Command{
		{
			Use:   "storefront",
			Short: "Run storefront service (cart, checkout and order dashboard)",
			Run: func(cmd *cobra.Command, args []string) {
				orderCmd.RunStorefrontService(cmd.Context())
			},
		},
		{
			Use:   "notification",
			Short: "Run notification relay",
			Run: func(cmd *cobra.Command, args []string) {
				notificationCmd.RunNotificationService(cmd.Context())
			},
		},
	}
	rootCmd.AddCommand(commands...)
	if err := rootCmd.ExecuteContext(c); err != nil {
		logger.Fatal().Err(err).Msgf("error when executing command=%s", err.Error())
	}
}
