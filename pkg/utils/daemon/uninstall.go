package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

func Uninstall(unitDir string) error {
	logrus.Infof("stopping iris daemon")

	err := systemctl("disable", "--now", unitName)
	if err != nil {
		logrus.Warnf("failed to disable %s: %v", unitName, err)
	}

	logrus.Infof("removing service unit")

	unitPath := filepath.Join(unitDir, unitName)

	// if the file doesn't exist, we don't need to remove it
	_, err = os.Stat(unitPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", unitPath, err)
	}

	err = os.Remove(unitPath)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", unitPath, err)
	}

	return systemctl("daemon-reload")
}
