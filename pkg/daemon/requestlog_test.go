package daemon

import (
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/charlie0129/iris/pkg/store"
	"github.com/charlie0129/iris/pkg/types"
)

func TestRequestLog(t *testing.T) {
	s, _ := newTestServer(t)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s.logger = logger

	display := store.Display{MonitorID: testMonitor.ID, Gfx: "DP-1", LinkID: "dp1-cable"}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		level  logrus.Level
		msg    string
		fields logrus.Fields
	}{
		{
			name:   "make display",
			method: http.MethodPost,
			path:   "/displays",
			body:   types.DisplayRequest{Monitor: testMonitor.ID, Gfx: "DP-1"},
			level:  logrus.DebugLevel,
			msg:    "request served",
			fields: logrus.Fields{"route": "/displays", "monitor": testMonitor.ID, "gfx": "DP-1", "link": "dp1-cable"},
		},
		{
			name:   "lookup without calibration",
			method: http.MethodPost,
			path:   "/rgb2lms/lookup",
			body:   display,
			level:  logrus.InfoLevel,
			msg:    "no calibration for display",
			fields: logrus.Fields{"route": "/rgb2lms/lookup", "monitor": testMonitor.ID, "status": http.StatusNotFound},
		},
		{
			name:   "unknown monitor",
			method: http.MethodGet,
			path:   "/monitors/nope",
			level:  logrus.WarnLevel,
			msg:    "request rejected",
			fields: logrus.Fields{"route": "/monitors/:id", "monitor": "nope"},
		},
		{
			name:   "unlinked gfx",
			method: http.MethodPost,
			path:   "/displays",
			body:   types.DisplayRequest{Monitor: testMonitor.ID, Gfx: "HDMI-2"},
			level:  logrus.WarnLevel,
			msg:    "request rejected",
			fields: logrus.Fields{"gfx": "HDMI-2", "monitor": testMonitor.ID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook.Reset()
			do(t, s, tt.method, tt.path, tt.body)

			e := hook.LastEntry()
			if e == nil {
				t.Fatal("no request logged")
			}
			if e.Level != tt.level || e.Message != tt.msg {
				t.Fatalf("got %s %q, want %s %q", e.Level, e.Message, tt.level, tt.msg)
			}
			for k, v := range tt.fields {
				if e.Data[k] != v {
					t.Fatalf("field %s = %v, want %v (all fields %v)", k, e.Data[k], v, e.Data)
				}
			}
		})
	}
}
