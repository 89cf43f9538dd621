package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.yaml"

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var port, configPath string

	cmd := &cobra.Command{
		Use:          "lichsu-rewards",
		Short:        "Points, vouchers and quiz attempts for the Vietnamese history site",
		SilenceUsage: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&port, "port", os.Getenv("PORT"), "port to listen on (overrides config)")
	flags.StringVar(&configPath, "config", envOr("CONFIG_PATH", defaultConfigPath), "path to YAML config")

	cmd.AddCommand(
		NewStartCmd(&configPath, &port),
		NewMigrateCmd(&configPath),
		NewCatalogCmd(),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
