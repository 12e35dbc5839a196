// Command wmcleand runs the wmclean queue daemon in the foreground. It is
// equivalent to "wmclean daemon" and exists for service managers.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wmclean/internal/config"
	"wmclean/internal/daemonrun"
)

func main() {
	var configPath, logLevel string

	cmd := &cobra.Command{
		Use:           "wmcleand",
		Short:         "wmclean queue daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
