package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/iris/pkg/config"
	"github.com/charlie0129/iris/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)

			daemonVersion, err := newClient().GetVersion()
			if err != nil {
				logrus.WithError(err).Debug("daemon version unavailable")
				return
			}
			if daemonVersion != version.Version {
				logrus.WithFields(logrus.Fields{
					"clientVersion": version.Version,
					"daemonVersion": daemonVersion,
				}).Warn("Version mismatch between client and daemon.")
			}
		},
	}
}

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Show the effective configuration",
		GroupID: gDaemon,
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			raw, err := config.NewRawFileConfigFromConfig(conf)
			if err != nil {
				return err
			}
			fmt.Printf("Config file: %s\n", configPath)
			fmt.Printf("Data store: %s\n", orDefault(*raw.DataStore))
			fmt.Printf("Config store: %s\n", orDefault(*raw.ConfigStore))
			fmt.Printf("Device: %s\n", bold("%s", *raw.Device))
			fmt.Printf("Gfx: %s\n", bold("%s", *raw.Gfx))
			fmt.Printf("Measure timeout: %s\n", conf.MeasureTimeout())
			fmt.Printf("Poll interval: %s\n", conf.PollInterval())
			fmt.Printf("Ramp levels: %d\n", *raw.RampLevels)
			fmt.Printf("Weight exponent: %g\n", *raw.WeightExponent)
			fmt.Printf("Socket: %s\n", *raw.Socket)
			return nil
		},
	}
	return cmd
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}
