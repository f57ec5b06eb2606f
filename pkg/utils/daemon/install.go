// Package daemon installs the iris daemon as a systemd user service.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const unitName = "iris.service"

const unitTemplate = `[Unit]
Description=iris display calibration lookup daemon

[Service]
ExecStart=/path/to/iris daemon --config /path/to/config
Restart=on-failure

[Install]
WantedBy=default.target
`

// systemctl is replaced in tests.
var systemctl = func(args ...string) error {
	return exec.Command("systemctl", append([]string{"--user"}, args...)...).Run()
}

// UnitDir returns ~/.config/systemd/user.
func UnitDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "systemd", "user"), nil
}

// Unit renders the service unit for the executable at exePath.
func Unit(exePath, configPath string) string {
	r := strings.NewReplacer(
		"/path/to/iris", exePath,
		"/path/to/config", configPath,
	)
	return r.Replace(unitTemplate)
}

// Install writes the unit into unitDir and starts the service.
func Install(unitDir, configPath string) error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	// mkdir -p
	err = os.MkdirAll(unitDir, 0755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", unitDir, err)
	}

	unitPath := filepath.Join(unitDir, unitName)

	// warn if the file already exists
	_, err = os.Stat(unitPath)
	if err == nil {
		logrus.Warnf("%s already exists, overwriting", unitPath)
	}

	logrus.Infof("writing %s", unitPath)
	err = os.WriteFile(unitPath, []byte(Unit(exePath, configPath)), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", unitPath, err)
	}

	logrus.Infof("starting iris daemon")

	if err := systemctl("daemon-reload"); err != nil {
		return fmt.Errorf("failed to reload systemd: %w", err)
	}
	if err := systemctl("enable", "--now", unitName); err != nil {
		return fmt.Errorf("failed to enable %s: %w", unitName, err)
	}

	return nil
}
