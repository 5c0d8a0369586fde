package app

import (
	"github.com/spf13/cobra"

	"github.com/pmhub/pmhub/internal/daemon"
)

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "start",
	Short: "Start the pmhub web service",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		d, err := daemon.New(cfg, daemon.Options{NoRedis: flags.GetBool(flagNoRedis)})
		if err != nil {
			return err //nolint:wrapcheck
		}

		return d.Start() //nolint:wrapcheck
	},
}
