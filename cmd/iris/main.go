package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/iris/pkg/capture"
	"github.com/charlie0129/iris/pkg/client"
	"github.com/charlie0129/iris/pkg/config"
	"github.com/charlie0129/iris/pkg/pr655"
	"github.com/charlie0129/iris/pkg/store"
)

var (
	logLevel       = "info"
	unixSocketPath = ""
	configPath     = config.DefaultPath()

	conf *config.File
)

var (
	gCapture      = "Capture:"
	gStore        = "Store:"
	gDaemon       = "Daemon:"
	commandGroups = []string{
		gCapture,
		gStore,
		gDaemon,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: iris daemon is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'iris daemon', or drop '--daemon' to read the store directly.")
	case errors.Is(err, client.ErrPermissionDenied):
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Check the permissions of the daemon socket", socketPath())
	case errors.Is(err, store.ErrNoCalibration):
		fmt.Fprintln(os.Stderr, "\nError: no calibration matches this display")
		fmt.Fprintln(os.Stderr, "  - Run 'iris calibrate' and 'iris fit rgb2lms --save' for this monitor, link and settings")
	case errors.Is(err, store.ErrReadOnly):
		fmt.Fprintln(os.Stderr, "\nError: the config store is read-only")
	case errors.Is(err, capture.ErrHardware), errors.Is(err, pr655.ErrShortRead):
		fmt.Fprintln(os.Stderr, "\nError: the measurement hardware failed")
		if conf != nil {
			fmt.Fprintln(os.Stderr, "  - Is the spectroradiometer connected to", conf.Device(), "and switched on?")
		}
	}
}

func socketPath() string {
	if unixSocketPath != "" {
		return unixSocketPath
	}
	if conf != nil {
		return conf.Socket()
	}
	return config.DefaultSocket
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iris",
		Short: "iris calibrates displays for colorimetric stimulus presentation",
		Long: `iris calibrates displays for colorimetric stimulus presentation.

It measures the spectral output of a monitor with a spectroradiometer, fits
gamma and RGB to cone (LMS) transforms, and stores the results per monitor,
link and settings profile so that renderers can look them up later.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			conf, err = config.NewFile(configPath)
			if err != nil {
				return err
			}
			logrus.WithFields(conf.LogrusFields()).Debug("config loaded")

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "iris daemon unix socket path (defaults to the config value)")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewVersionCommand(),
		NewCalibrateCommand(),
		NewLEDCommand(),
		NewFitCommand(),
		NewMonitorCommand(),
		NewSettingsCommand(),
		NewDisplayCommand(),
		NewRGB2LMSCommand(),
		NewConfigCommand(),
		NewDaemonCommand(),
	)

	return cmd
}
