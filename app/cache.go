package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmhub/pmhub/internal/daemon"
)

func init() { //nolint:gochecknoinits
	cacheCmd.AddCommand(cacheClearCmd, cacheStatsCmd)
	permissionCmd.AddCommand(permissionStatsCmd)
	rootCmd.AddCommand(cacheCmd, permissionCmd)
}

var (
	cacheCmd = &cobra.Command{ //nolint:gochecknoglobals
		Use:   "cache",
		Short: "Inspect or clear the permission cache",
	}

	cacheClearCmd = &cobra.Command{ //nolint:gochecknoglobals
		Use:   "clear",
		Short: "Drop every permission cache entry in redis and every persisted cache row",
		RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon) error {
			n := d.Manager().ClearAll(cmd.Context())
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "cleared %d keys\n", n)

			return err //nolint:wrapcheck
		}),
	}

	cacheStatsCmd = &cobra.Command{ //nolint:gochecknoglobals
		Use:   "stats",
		Short: "Print the cache tier state",
		RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon) error {
			return printJSON(cmd, d.Manager().Stats())
		}),
	}

	permissionCmd = &cobra.Command{ //nolint:gochecknoglobals
		Use:   "permission",
		Short: "Inspect the permission catalogue",
	}

	permissionStatsCmd = &cobra.Command{ //nolint:gochecknoglobals
		Use:   "stats",
		Short: "Print permission catalogue statistics",
		RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon) error {
			stats, err := d.Service().Stats(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck
			}

			return printJSON(cmd, stats)
		}),
	}
)

// withDaemon builds the daemon without serving, runs fn and stops it.
func withDaemon(fn func(cmd *cobra.Command, d *daemon.Daemon) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		d, err := daemon.New(cfg, daemon.Options{NoRedis: flags.GetBool(flagNoRedis)})
		if err != nil {
			return err //nolint:wrapcheck
		}
		defer d.Stop()

		return fn(cmd, d)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(v) //nolint:wrapcheck
}
