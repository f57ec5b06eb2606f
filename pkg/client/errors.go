package client

import (
	"errors"

	"github.com/charlie0129/iris/pkg/store"
)

var (
	// ErrDaemonNotRunning means nothing listens on the daemon socket.
	ErrDaemonNotRunning = errors.New("iris daemon not running")

	// ErrPermissionDenied means the daemon socket is not accessible to this user.
	ErrPermissionDenied = errors.New("permission denied on daemon socket")

	// ErrNotFound is store.ErrNotFound. A missing calibration also matches
	// store.ErrNoCalibration.
	ErrNotFound = store.ErrNotFound
)
