package main

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/iris/pkg/daemon"
	daemonutil "github.com/charlie0129/iris/pkg/utils/daemon"
	"github.com/charlie0129/iris/pkg/version"
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run iris daemon in the foreground",
		GroupID: gDaemon,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("iris daemon starting")
			return daemon.Run(configPath, unixSocketPath)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Install iris daemon as a systemd user service",
			RunE: func(_ *cobra.Command, _ []string) error {
				dir, err := daemonutil.UnitDir()
				if err != nil {
					return err
				}
				abs, err := filepath.Abs(configPath)
				if err != nil {
					return err
				}
				if err := daemonutil.Install(dir, abs); err != nil {
					return err
				}
				logrus.Infof("installation succeeded")
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Stop and remove the iris daemon service",
			RunE: func(_ *cobra.Command, _ []string) error {
				dir, err := daemonutil.UnitDir()
				if err != nil {
					return err
				}
				if err := daemonutil.Uninstall(dir); err != nil {
					return err
				}
				logrus.Infof("successfully uninstalled iris daemon")
				return nil
			},
		},
	)

	return cmd
}
