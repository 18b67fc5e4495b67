package cli

import (
	"context"
	"fmt"

	"github.com/rosedblabs/fdstream/internal"
	"github.com/spf13/cobra"
)

type ctxKey string

const appCtxKey ctxKey = "appConfig"

func NewRootCommand() *cobra.Command {
	var configPath string
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "fdstream",
		Short:         "fdstream copies and prints files through chunked streams",
		Long:          `fdstream reads files in bounded chunks and writes them through a serialized, backpressured write queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.LoadCLIConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err := internal.ConfigureLogger(cfg.LogLevel); err != nil {
				internal.Warn("invalid log level, defaulting to info", internal.Fields{
					internal.FieldError: err.Error(),
				})
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appCtxKey, cfg))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(CopyCommand())
	rootCmd.AddCommand(CatCommand())
	return rootCmd
}

func GetAppConfig(cmd *cobra.Command) (*internal.CLIConfig, error) {
	cfg, ok := cmd.Context().Value(appCtxKey).(*internal.CLIConfig)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("app config not loaded")
	}
	return cfg, nil
}
