package client

import (
	"errors"
	"net"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/charlie0129/iris/pkg/daemon"
	"github.com/charlie0129/iris/pkg/store"
	"github.com/charlie0129/iris/pkg/types"
)

func TestClientAgainstDaemon(t *testing.T) {
	data, err := store.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	m := store.Monitor{ID: "dell-u2415", Name: "U2415", Vendor: "Dell", DefaultMode: store.Mode{Width: 1920, Height: 1200, Refresh: 60}}
	if err := data.SaveMonitor(m); err != nil {
		t.Fatal(err)
	}
	if err := data.SaveLink("HDMI-1", m.ID, "hdmi"); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(daemon.NewServer(data, nil).Handler())
	defer srv.Close()
	c := NewClientWithHTTP(srv.Client(), srv.URL)

	if _, err := c.GetVersion(); err != nil {
		t.Fatalf("GetVersion: %v", err)
	}

	if _, err := c.GetDefaultMonitor(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.SetDefaultMonitor(m.ID); err != nil {
		t.Fatalf("SetDefaultMonitor: %v", err)
	}
	got, err := c.GetDefaultMonitor()
	if err != nil || got != m {
		t.Fatalf("GetDefaultMonitor: %+v, %v", got, err)
	}

	d, err := c.MakeDisplay(types.DisplayRequest{Gfx: "HDMI-1"})
	if err != nil {
		t.Fatalf("MakeDisplay: %v", err)
	}
	if d.LinkID != "hdmi" || d.Mode != m.DefaultMode {
		t.Fatalf("unexpected display %+v", d)
	}

	_, err = c.LookupRGB2LMS(d)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDaemonNotRunning(t *testing.T) {
	c := NewClient(t.TempDir() + "/missing.sock")
	if _, err := c.GetVersion(); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	data, err := store.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	m := store.Monitor{ID: "dell-u2415", DefaultMode: store.Mode{Width: 1920, Height: 1200, Refresh: 60}}
	if err := data.SaveMonitor(m); err != nil {
		t.Fatal(err)
	}
	if err := data.SaveLink("HDMI-1", m.ID, "hdmi"); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(daemon.NewServer(data, nil).Handler())
	defer srv.Close()
	c := NewClientWithHTTP(srv.Client(), srv.URL)

	tests := []struct {
		name    string
		call    func() error
		want    error
		notWant error
	}{
		{
			name: "lookup without calibration",
			call: func() error {
				_, err := c.LookupRGB2LMS(store.Display{MonitorID: m.ID, Gfx: "HDMI-1", LinkID: "hdmi"})
				return err
			},
			want: store.ErrNoCalibration,
		},
		{
			name: "unknown monitor",
			call: func() error {
				_, err := c.GetMonitor("nope")
				return err
			},
			want:    ErrNotFound,
			notWant: store.ErrNoCalibration,
		},
		{
			name: "unlinked gfx",
			call: func() error {
				_, err := c.MakeDisplay(types.DisplayRequest{Monitor: m.ID, Gfx: "DP-9"})
				return err
			},
			want:    store.ErrNotFound,
			notWant: store.ErrNoCalibration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if tt.notWant != nil && errors.Is(err, tt.notWant) {
				t.Fatalf("did not expect %v, got %v", tt.notWant, err)
			}
		})
	}
}

func TestStaleSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "stale.sock")
	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	// A crashed daemon leaves its socket file behind.
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	l.Close()

	if _, err := NewClient(sock).GetVersion(); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}
