package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/healthdesk/cmd/migrate"
	"github.com/tphakala/healthdesk/cmd/notify"
	"github.com/tphakala/healthdesk/cmd/serve"
	"github.com/tphakala/healthdesk/internal/buildinfo"
	"github.com/tphakala/healthdesk/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "healthdesk",
		Short:         "HealthDesk appointment desk server",
		Version:       build.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings, build),
		notify.Command(settings),
		migrate.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// command line flags take precedence over the config file
		if settings.Debug {
			settings.WebServer.Debug = true
			settings.Logging.DefaultLevel = "debug"
		}
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
