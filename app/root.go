// Package app implements the main application commands.
package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pmhub/pmhub/internal/config"
	"github.com/pmhub/pmhub/internal/logger"
)

const (
	flagConfig  = "config"
	flagDev     = "dev"
	flagNoRedis = "no-redis"
)

var (
	flags = viper.New() //nolint:gochecknoglobals

	rootCmd = &cobra.Command{ //nolint:gochecknoglobals
		Use:   "pmhub",
		Short: "pmhub resolves and caches user permissions",
		Long: `pmhub serves role based permission checks for the project management backend.
Permissions are aggregated per user through roles and groups and cached in a
process-local tier and in redis.`,
		Args:         cobra.OnlyValidArgs,
		SilenceUsage: true,
	}
)

func init() { //nolint:gochecknoinits
	pf := rootCmd.PersistentFlags()
	pf.String(flagConfig, "./etc/", "Directory holding main.toml")
	pf.Bool(flagDev, false, "Enable dev mode")
	pf.Bool(flagNoRedis, false, "Run on the process-local cache tier only")

	for _, name := range []string{flagConfig, flagDev, flagNoRedis} {
		if err := flags.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}

	flags.SetEnvPrefix("PMHUB")
	flags.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	flags.AutomaticEnv()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute() //nolint:wrapcheck
}

// loadConfig reads main.toml from the --config directory and applies the flags.
func loadConfig() (*config.Config, error) {
	path := flags.GetString(flagConfig)
	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}

	cfg, err := config.ReadConfig(path)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if flags.GetBool(flagDev) {
		cfg.DevMode = true
	}

	if err = logger.Init(cfg.Log); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &cfg, nil
}
