package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/safetrack/safetrack-go/cmd/migrate"
	"github.com/safetrack/safetrack-go/cmd/server"
	"github.com/safetrack/safetrack-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "safetrack",
		Short: "SafeTrack child location tracking service",
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		server.Command(settings),
		migrate.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the HTTP server")
	rootCmd.PersistentFlags().Float64Var(&settings.Tracking.MaxAccuracy, "maxaccuracy", viper.GetFloat64("tracking.maxaccuracy"), "Maximum accepted GPS accuracy in meters")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
