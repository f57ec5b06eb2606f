package daemon

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/iris/pkg/store"
)

const logFieldsKey = "iris.logFields"

// logField attaches a field to the request's log line. Handlers use it to
// report what a request resolved to.
func logField(c *gin.Context, key string, value any) {
	fields, _ := c.Get(logFieldsKey)
	f, ok := fields.(logrus.Fields)
	if !ok {
		f = logrus.Fields{}
		c.Set(logFieldsKey, f)
	}
	f[key] = value
}

// logDisplay reports the calibration context of a request.
func logDisplay(c *gin.Context, d store.Display) {
	logField(c, "monitor", d.MonitorID)
	logField(c, "gfx", d.Gfx)
	if d.LinkID != "" {
		logField(c, "link", d.LinkID)
	}
	if d.SettingsID != "" {
		logField(c, "settings", d.SettingsID)
	}
}

// requestLogger logs one line per request against the route template, with
// the monitor of the route and whatever the handler attached via logField.
// A lookup that finds no calibration is an answer, not a failure, and is
// logged at info.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"route":   route,
			"status":  status,
			"latency": latency.Round(time.Microsecond).String(),
		})
		if id := c.Param("id"); id != "" {
			entry = entry.WithField("monitor", id)
		}
		if fields, ok := c.Get(logFieldsKey); ok {
			entry = entry.WithFields(fields.(logrus.Fields))
		}

		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
			entry = entry.WithError(err)
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case errors.Is(err, store.ErrNoCalibration):
			entry.Info("no calibration for display")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}
