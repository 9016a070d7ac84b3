package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/weiawesome/wes-io-collab/internal/config"
	pkgconfig "github.com/weiawesome/wes-io-collab/pkg/config"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "collab",
	Short: "Real-time collaboration room coordinator",
	Long: `collab hosts collaboration rooms over WebSocket: presence, chat,
code and canvas sync, compiler relay and live room analytics.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", pkgconfig.GetEnv("COLLAB_CONFIG_DIR", "./config"), "directory containing config.yaml")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig reads configuration and installs the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "collab",
	})
	return cfg, nil
}
