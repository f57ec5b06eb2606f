// Package daemon serves calibration lookups over a unix socket so renderers
// can fetch the transform for the display they draw on without touching the
// store themselves.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/iris/pkg/config"
	"github.com/charlie0129/iris/pkg/store"
)

// Server answers lookups against a data tree and, optionally, a config tree.
type Server struct {
	mu   sync.RWMutex
	data *store.Store
	conf *store.Store

	logger logrus.FieldLogger
}

// NewServer returns a server over data. conf, when not nil, overrides
// monitor descriptors and the default monitor.
func NewServer(data, conf *store.Store) *Server {
	return &Server{data: data, conf: conf, logger: logrus.StandardLogger()}
}

func (s *Server) setStores(data, conf *store.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data, s.conf = data, conf
}

func (s *Server) catalog() store.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.Catalog{Data: s.data, Config: s.conf}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))
	router.GET("/version", getVersion)
	router.GET("/monitors", s.listMonitors)
	router.GET("/monitors/:id", s.getMonitor)
	router.GET("/monitors/:id/settings", s.listSettings)
	router.GET("/monitors/:id/rgb2lms", s.listRGB2LMS)
	router.GET("/default-monitor", s.getDefaultMonitor)
	router.PUT("/default-monitor", s.setDefaultMonitor)
	router.POST("/displays", s.makeDisplay)
	router.POST("/rgb2lms/lookup", s.lookupRGB2LMS)

	return router
}

// OpenStores opens the trees named by c, falling back to the default
// locations. A missing config tree is not an error.
func OpenStores(c config.Config) (data, conf *store.Store, err error) {
	dataRoot := c.DataStore()
	if dataRoot == "" {
		if dataRoot, err = store.DefaultDataRoot(); err != nil {
			return nil, nil, err
		}
	}
	data, err = store.OpenData(dataRoot)
	if err != nil {
		return nil, nil, pkgerrors.Wrapf(err, "failed to open data store %s", dataRoot)
	}

	confRoot := c.ConfigStore()
	if confRoot == "" {
		if confRoot, err = store.DefaultConfigRoot(); err != nil {
			return nil, nil, err
		}
	}
	conf, err = store.Open(confRoot, store.ConfigLayout)
	if errors.Is(err, store.ErrNotFound) {
		logrus.WithField("root", confRoot).Info("no config store, monitors are read from the data store")
		return data, nil, nil
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrapf(err, "failed to open config store %s", confRoot)
	}
	return data, conf, nil
}

func Run(configPath string, unixSocketPath string) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to parse config during startup")
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	if unixSocketPath == "" {
		unixSocketPath = conf.Socket()
	}

	data, confStore, err := OpenStores(conf)
	if err != nil {
		return err
	}
	s := NewServer(data, confStore)

	// Receive SIGHUP to reload config and reopen the stores
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := conf.Load(); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			data, confStore, err := OpenStores(conf)
			if err != nil {
				logrus.Errorf("failed to reopen stores: %v", err)
				continue
			}
			s.setStores(data, confStore)
			logrus.Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: s.Handler(),
	}

	// A stale socket from a previous run would make Listen fail.
	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		return pkgerrors.Wrapf(err, "failed to remove stale socket %s", unixSocketPath)
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", unixSocketPath)
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("exiting")
	return nil
}
